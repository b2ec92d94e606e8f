package stream

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/tracking"
)

var (
	colorNormal   = color.RGBA{0, 200, 0, 0}
	colorAbnormal = color.RGBA{220, 0, 0, 0}
)

// verdict is the classify outcome for one tracked person in one frame.
type verdict struct {
	person     tracking.TrackedPerson
	score      float64
	abnormal   bool
	confidence string
}

type verdictLookup struct {
	score      float64
	confidence string
	abnormal   bool
}

// annotate draws every tracked bbox in green (normal) or red (abnormal),
// overlaid with person_id/score/confidence, and JPEG-encodes the result per
// spec.md §4.4 step 5.
func annotate(frame models.Frame, tracked []tracking.TrackedPerson, verdicts []verdict) ([]byte, error) {
	lookup := make(map[int]verdictLookup, len(verdicts))
	for _, v := range verdicts {
		lookup[v.person.PersonID] = verdictLookup{score: v.score, confidence: v.confidence, abnormal: v.abnormal}
	}

	out := gocv.NewMat()
	defer out.Close()
	frame.Mat.CopyTo(&out)

	for _, tp := range tracked {
		rect := image.Rect(tp.BBox.X, tp.BBox.Y, tp.BBox.X+tp.BBox.W, tp.BBox.Y+tp.BBox.H)
		v, known := lookup[tp.PersonID]
		drawColor := colorNormal
		label := fmt.Sprintf("id=%d", tp.PersonID)
		if known {
			if v.abnormal {
				drawColor = colorAbnormal
			}
			label = fmt.Sprintf("id=%d score=%.2f %s", tp.PersonID, v.score, v.confidence)
		}
		gocv.Rectangle(&out, rect, drawColor, 2)
		gocv.PutText(&out, label, image.Pt(rect.Min.X, maxInt(rect.Min.Y-6, 12)),
			gocv.FontHersheySimplex, 0.5, drawColor, 1)
	}

	// spec.md §4.8/§6: evidence frames are stored at JPEG quality 90.
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{gocv.IMWriteJpegQuality, 90})
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	raw := buf.GetBytes()
	jpeg := make([]byte, len(raw))
	copy(jpeg, raw)
	return jpeg, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
