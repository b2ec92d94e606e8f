package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestFramesProcessedIncrementsPerStream(t *testing.T) {
	FramesProcessed.WithLabelValues("stream-metrics-test").Inc()
	FramesProcessed.WithLabelValues("stream-metrics-test").Inc()

	assert.Equal(t, float64(2), testutil.ToFloat64(FramesProcessed.WithLabelValues("stream-metrics-test")))
}

func TestAnomaliesDetectedTracksConfidenceBucket(t *testing.T) {
	AnomaliesDetected.WithLabelValues("HIGH").Inc()
	assert.GreaterOrEqual(t, testutil.ToFloat64(AnomaliesDetected.WithLabelValues("HIGH")), float64(1))
}

func TestActiveStreamsGauge(t *testing.T) {
	ActiveStreams.Set(0)
	ActiveStreams.Inc()
	ActiveStreams.Inc()
	ActiveStreams.Dec()
	assert.Equal(t, float64(1), testutil.ToFloat64(ActiveStreams))
}
