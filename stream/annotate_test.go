package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/tracking"
)

func TestAnnotateProducesNonEmptyJPEG(t *testing.T) {
	mat := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer mat.Close()
	frame := models.Frame{Mat: mat}

	tracked := []tracking.TrackedPerson{
		{PersonID: 1, BBox: models.BBox{X: 10, Y: 10, W: 20, H: 40}},
	}
	verdicts := []verdict{
		{person: tracked[0], score: -3.2, abnormal: true, confidence: "HIGH"},
	}

	jpeg, err := annotate(frame, tracked, verdicts)
	require.NoError(t, err)
	assert.NotEmpty(t, jpeg)
	// JPEG magic bytes.
	assert.Equal(t, byte(0xFF), jpeg[0])
	assert.Equal(t, byte(0xD8), jpeg[1])
}

func TestAnnotateHandlesPersonWithoutVerdict(t *testing.T) {
	mat := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer mat.Close()
	frame := models.Frame{Mat: mat}

	tracked := []tracking.TrackedPerson{{PersonID: 2, BBox: models.BBox{X: 0, Y: 0, W: 10, H: 10}}}

	jpeg, err := annotate(frame, tracked, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, jpeg)
}

func TestMaxInt(t *testing.T) {
	assert.Equal(t, 5, maxInt(5, 3))
	assert.Equal(t, 5, maxInt(3, 5))
}
