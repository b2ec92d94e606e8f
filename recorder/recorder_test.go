package recorder

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/store"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(db))
	return db
}

func baseParams() RecordParams {
	return RecordParams{
		ShopID:        uuid.New(),
		Location:      "front door",
		AnnotatedJPEG: []byte{0xFF, 0xD8, 0xFF, 0xD9},
		Detection: DetectionResult{
			PersonID:       1,
			FrameNumber:    42,
			Score:          -3.2,
			BBox:           models.BBox{X: 1, Y: 2, W: 3, H: 4},
			Confidence:     "HIGH",
			Classification: "Abnormal",
		},
		AnomalyType: "behavioral_anomaly",
		PoseDict:    map[int][]models.PoseFrame{},
		StreamID:    "stream-1",
	}
}

func TestRecordPersistsEventAndTrainingSample(t *testing.T) {
	db := openTestDB(t)
	r := New(db, t.TempDir(), nil, "")

	id, err := r.Record(context.Background(), baseParams())
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)

	var event store.AnomalyEvent
	require.NoError(t, db.First(&event, "id = ?", id).Error)
	assert.Equal(t, store.SeverityHigh, event.Severity)
	assert.Equal(t, store.StatusPending, event.Status)
	assert.NotEmpty(t, event.Description)

	var sample store.TrainingSample
	require.NoError(t, db.First(&sample, "anomaly_id = ?", id).Error)
	assert.Equal(t, "stream-1", sample.StreamID)
	assert.Equal(t, 42, sample.FrameNumber)
}

func TestResolveSeverityEscalatesOnCriticalFlag(t *testing.T) {
	db := openTestDB(t)
	r := New(db, t.TempDir(), nil, "")

	params := baseParams()
	params.ExtraFields = map[string]any{"critical": true}

	id, err := r.Record(context.Background(), params)
	require.NoError(t, err)

	var event store.AnomalyEvent
	require.NoError(t, db.First(&event, "id = ?", id).Error)
	assert.Equal(t, store.SeverityCritical, event.Severity)
}

func TestConfidenceBucketMapsToSeverity(t *testing.T) {
	assert.Equal(t, store.SeverityHigh, confidenceBucket("HIGH"))
	assert.Equal(t, store.SeverityMedium, confidenceBucket("MEDIUM"))
	assert.Equal(t, store.SeverityLow, confidenceBucket("LOW"))
	assert.Equal(t, store.SeverityLow, confidenceBucket("unknown"))
}

func TestGenerateDescriptionFallsBackWithoutAPIKey(t *testing.T) {
	r := New(openTestDB(t), t.TempDir(), nil, "")
	desc := r.generateDescription(context.Background(), baseParams())
	assert.Contains(t, desc, "behavioral_anomaly")
	assert.Contains(t, desc, "HIGH")
}
