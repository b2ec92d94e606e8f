// Package metrics carries the ambient observability stack per SPEC_FULL.md
// §10 — not excluded by any Non-goal, unlike multi-node coordination or
// training.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_frames_processed_total",
		Help: "Decoded video frames run through the per-stream pipeline.",
	}, []string{"stream_id"})

	FramesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_frames_dropped_total",
		Help: "Frames dropped by the bounded per-stream pipeline, under back-pressure or after a detector failure.",
	}, []string{"stream_id"})

	ClassifierLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "visionguard_classifier_latency_seconds",
		Help:    "Anomaly classifier forward-pass latency.",
		Buckets: prometheus.DefBuckets,
	})

	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "visionguard_anomalies_detected_total",
		Help: "Positive anomaly classifications, by confidence bucket.",
	}, []string{"confidence"})

	ActiveStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visionguard_active_streams",
		Help: "Currently registered peer-connection streams.",
	})

	AlertHubConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "visionguard_alert_hub_connections",
		Help: "Currently attached per-user Alert Hub channels.",
	})
)

// Serve starts the /metrics HTTP endpoint on addr. The caller owns the
// returned server and stops it on shutdown (main does so after the
// Lifecycle Controller's Shutdown).
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
