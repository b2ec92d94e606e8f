package tracking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/n0remac/visionguard/models"
)

// stubPose returns a fixed pose without touching frame.Mat, so these tests
// never need a real decoded frame.
type stubPose struct{}

func (stubPose) Estimate(frame models.Frame, bbox models.BBox) (models.PoseFrame, error) {
	var pf models.PoseFrame
	pf[0] = models.Keypoint{X: float64(bbox.X), Y: float64(bbox.Y), Confidence: 1}
	return pf, nil
}

func det(x, y, w, h int, conf float64) models.Detection {
	return models.Detection{BBox: models.BBox{X: x, Y: y, W: w, H: h}, Confidence: conf, Class: "person"}
}

func TestUpdateAssignsNewIDsToFirstFrame(t *testing.T) {
	tr := New(stubPose{})
	out, err := tr.Update([]models.Detection{det(0, 0, 10, 10, 0.9), det(100, 100, 10, 10, 0.8)}, models.Frame{})
	assert.NoError(t, err)
	assert.Len(t, out, 2)
	assert.ElementsMatch(t, []int{1, 2}, []int{out[0].PersonID, out[1].PersonID})
}

func TestUpdateKeepsStableIDAcrossFrames(t *testing.T) {
	tr := New(stubPose{})
	first, err := tr.Update([]models.Detection{det(0, 0, 20, 20, 0.9)}, models.Frame{})
	assert.NoError(t, err)
	assert.Len(t, first, 1)
	id := first[0].PersonID

	// Slightly shifted bbox still overlaps enough to match the same track.
	second, err := tr.Update([]models.Detection{det(2, 2, 20, 20, 0.9)}, models.Frame{})
	assert.NoError(t, err)
	assert.Len(t, second, 1)
	assert.Equal(t, id, second[0].PersonID)
}

func TestUpdateIgnoresNonPersonDetections(t *testing.T) {
	tr := New(stubPose{})
	out, err := tr.Update([]models.Detection{{BBox: models.BBox{X: 0, Y: 0, W: 5, H: 5}, Confidence: 0.9, Class: "car"}}, models.Frame{})
	assert.NoError(t, err)
	assert.Empty(t, out)
}

func TestUpdateDestroysTrackAfterMaxAge(t *testing.T) {
	tr := New(stubPose{}).WithMaxAge(2)
	_, err := tr.Update([]models.Detection{det(0, 0, 10, 10, 0.9)}, models.Frame{})
	assert.NoError(t, err)

	// A track is destroyed once its missed-frame count exceeds max age, so
	// with max age 2 it goes on the third frame without a match.
	for i := 0; i < 3; i++ {
		out, err := tr.Update(nil, models.Frame{})
		assert.NoError(t, err)
		assert.Empty(t, out)
	}
	assert.Equal(t, []int{1}, tr.Destroyed())
}

func TestUpdateConflictResolvesByHigherConfidence(t *testing.T) {
	tr := New(stubPose{})
	first, err := tr.Update([]models.Detection{det(0, 0, 20, 20, 0.9)}, models.Frame{})
	assert.NoError(t, err)
	trackID := first[0].PersonID

	// Two detections with equal IoU against the existing track next frame;
	// the higher-confidence one should win the existing track and the loser
	// gets a new id.
	out, err := tr.Update([]models.Detection{
		det(2, 0, 20, 20, 0.4),
		det(0, 2, 20, 20, 0.95),
	}, models.Frame{})
	assert.NoError(t, err)
	assert.Len(t, out, 2)

	ids := map[int]bool{out[0].PersonID: true, out[1].PersonID: true}
	assert.True(t, ids[trackID])
	assert.Equal(t, trackID, out[1].PersonID)
}
