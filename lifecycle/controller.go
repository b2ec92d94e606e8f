// Package lifecycle implements the Lifecycle Controller (C10): loads the
// Model Manager at startup, owns the one optional background poller's
// start/stop transitions, and drains every live resource on shutdown.
package lifecycle

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/registry"
)

// DrainTimeout bounds graceful shutdown per spec.md §4.10.
const DrainTimeout = 10 * time.Second

// Controller is the Lifecycle Controller. Its pollActive flag is the
// controller's own internal state machine for its one
// optional poller, replacing the source's two overlapping bot-polling code
// paths (each keeping its own module-level "is it running" flag) per
// spec.md §9's redesign note.
type Controller struct {
	Manager  *models.Manager
	Registry *registry.Registry
	Hub      *alerthub.Hub

	// Poll, if non-nil, is run in its own goroutine from Start until ctx is
	// cancelled — the shape of "long-poll the optional external bot"
	// without implementing the bot integration itself, which is out of
	// scope per spec.md §1.
	Poll func(ctx context.Context)

	pollCancel context.CancelFunc
	pollActive atomic.Bool
}

// Start runs C1.load() then, if configured, starts the optional poller.
func (c *Controller) Start(cfg models.Config) error {
	if err := c.Manager.Load(cfg); err != nil {
		return err
	}
	if c.Poll != nil {
		ctx, cancel := context.WithCancel(context.Background())
		c.pollCancel = cancel
		c.pollActive.Store(true)
		go func() {
			defer c.pollActive.Store(false)
			c.Poll(ctx)
		}()
	}
	return nil
}

// Shutdown cancels polling, closes every Alert Hub channel with reason
// "server_shutdown", tears down every registered peer connection, then
// calls C1.cleanup() — in that order, per spec.md §4.10 — bounded by
// DrainTimeout.
func (c *Controller) Shutdown() {
	if c.pollCancel != nil {
		c.pollCancel()
	}
	c.Hub.CloseAll(alerthub.CloseNormal, "server_shutdown")

	done := make(chan struct{})
	go func() {
		c.drainRegistry()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(DrainTimeout):
		log.Printf("[lifecycle] drain timed out after %s; forcing cleanup", DrainTimeout)
	}

	c.Manager.Cleanup()
}

func (c *Controller) drainRegistry() {
	for _, h := range c.Registry.All() {
		c.Registry.Remove(h.StreamID)
	}
}
