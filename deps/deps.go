// Package deps wires together every shared component constructed once at
// process startup, replacing the teacher's Deps struct (which only ever
// held a *gorm.DB and a document store) with the full dependency graph this
// core actually needs.
package deps

import (
	"gorm.io/gorm"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/alertsink"
	"github.com/n0remac/visionguard/auth"
	"github.com/n0remac/visionguard/config"
	"github.com/n0remac/visionguard/dedup"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/recorder"
	"github.com/n0remac/visionguard/registry"
	"github.com/n0remac/visionguard/store"
	"github.com/n0remac/visionguard/webrtc"
)

// Deps is constructed once in main and handed to the api package's router.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB

	Manager  *models.Manager
	Registry *registry.Registry
	Hub      *alerthub.Hub
	Recorder *recorder.Recorder
	Index    *recorder.Index
	Sink     *alertsink.Sink
	Cooldown *dedup.Window

	Authenticator auth.Authenticator
	Access        store.AccessChecker

	Endpoint *webrtc.Endpoint
	TURN     *webrtc.TURNCredentials
}
