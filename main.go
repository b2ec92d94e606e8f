package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/pion/webrtc/v4"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/alertsink"
	"github.com/n0remac/visionguard/api"
	"github.com/n0remac/visionguard/auth"
	"github.com/n0remac/visionguard/config"
	"github.com/n0remac/visionguard/dedup"
	"github.com/n0remac/visionguard/deps"
	"github.com/n0remac/visionguard/lifecycle"
	"github.com/n0remac/visionguard/metrics"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/recorder"
	"github.com/n0remac/visionguard/registry"
	"github.com/n0remac/visionguard/store"
	"github.com/n0remac/visionguard/stream"
	vwebrtc "github.com/n0remac/visionguard/webrtc"
)

func main() {
	cfg := config.Load()

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	if err := store.Migrate(db); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	index, err := recorder.OpenIndex("anomaly_index.bleve")
	if err != nil {
		log.Printf("[WARN] search index unavailable: %v", err)
		index = nil
	}

	manager := models.New()
	reg := registry.New()
	hub := alerthub.New()
	rec := recorder.New(db, "evidence", index, cfg.OpenAIAPIKey)

	var sink *alertsink.Sink
	if cfg.AlertSinkURL != "" {
		sink = alertsink.New(cfg.AlertSinkToken)
	}
	cooldown := dedup.New(10000, cfg.PersonCooldownSeconds)

	endpoint, err := vwebrtc.NewEndpoint(
		[]webrtc.ICEServer{{URLs: []string{"stun:stun.l.google.com:19302"}}},
		20000,
	)
	if err != nil {
		log.Fatalf("build signaling endpoint: %v", err)
	}
	endpoint.Authenticator = auth.NewJWTAuthenticator(cfg.JWTSecret)
	endpoint.Access = store.NewGormAccessChecker(db)
	endpoint.Registry = reg
	endpoint.Manager = manager
	endpoint.Hub = hub
	endpoint.Recorder = rec
	endpoint.Sink = sink
	endpoint.SinkURL = cfg.AlertSinkURL
	endpoint.Cooldown = cooldown
	endpoint.Thresholds = stream.Thresholds{
		PersonConfidence: cfg.PersonDetectionConfidence,
		AnomalyThreshold: cfg.AnomalyThreshold,
		HighCut:          cfg.HighCut,
		MediumCut:        cfg.MediumCut,
	}

	d := &deps.Deps{
		Config:        cfg,
		DB:            db,
		Manager:       manager,
		Registry:      reg,
		Hub:           hub,
		Recorder:      rec,
		Index:         index,
		Sink:          sink,
		Cooldown:      cooldown,
		Authenticator: endpoint.Authenticator,
		Access:        endpoint.Access,
		Endpoint:      endpoint,
		TURN:          vwebrtc.NewTURNCredentials(cfg.TURNSecret, cfg.TURNTTL),
	}

	ctl := &lifecycle.Controller{Manager: manager, Registry: reg, Hub: hub}
	if err := ctl.Start(models.Config{
		YOLOModelPath:    cfg.YOLOModelPath,
		PoseModelPath:    cfg.PoseModelPath,
		AnomalyModelPath: cfg.AnomalyModelPath,
		Device:           cfg.Device,
		SequenceLength:   cfg.SequenceLength,
		WorkerPoolSize:   cfg.WorkerPoolSize,
	}); err != nil {
		log.Fatalf("lifecycle start: %v", err)
	}

	metricsSrv := metrics.Serve(cfg.MetricsAddr)

	srv := &http.Server{
		Addr:    cfg.ServerHost + ":" + cfg.ServerPort,
		Handler: api.NewRouter(d),
	}
	go func() {
		log.Printf("visionguard listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("serve: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down")
	ctl.Shutdown()
	_ = srv.Shutdown(context.Background())
	_ = metricsSrv.Shutdown(context.Background())
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	switch cfg.DatabaseDriver {
	case "postgres":
		return gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	default:
		return gorm.Open(sqlite.Open(cfg.DatabaseDSN), &gorm.Config{})
	}
}
