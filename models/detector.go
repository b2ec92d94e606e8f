package models

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// Frame wraps a decoded BGR image. Using a thin wrapper rather than a bare
// gocv.Mat keeps the models package the only one that needs to import gocv
// directly in its public surface.
type Frame struct {
	Mat gocv.Mat
}

// BBox is (x, y, w, h) in pixel coordinates, as in spec.md §3.
type BBox struct {
	X, Y, W, H int
}

// Detection is ephemeral per frame per spec.md §3.
type Detection struct {
	BBox       BBox
	Confidence float64
	Class      string
}

// Detector is the person-detector half of the Model Manager.
type Detector interface {
	// Detect returns every detection above the detector's own minimum
	// confidence; callers filter further by class/threshold.
	Detect(frame Frame) ([]Detection, error)
}

// CascadeDetector is a gocv Haar-cascade detector standing in for the
// spec's YOLO-family weights file — the same "CV pipeline runs a cascade
// classifier over a CLAHE-preprocessed frame" shape the teacher's own
// cvpipe package uses for its face-detection path, generalized here to
// person detection.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	clahe      gocv.CLAHE
}

func NewCascadeDetector(modelPath string) (*CascadeDetector, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("YOLO_MODEL_PATH is empty")
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("stat model artifact: %w", err)
	}
	cc := gocv.NewCascadeClassifier()
	if !cc.Load(modelPath) {
		cc.Close()
		return nil, fmt.Errorf("cascade classifier failed to load %q", modelPath)
	}
	return &CascadeDetector{
		classifier: cc,
		clahe:      gocv.NewCLAHE(),
	}, nil
}

func (d *CascadeDetector) Detect(frame Frame) ([]Detection, error) {
	if frame.Mat.Empty() {
		return nil, fmt.Errorf("empty frame")
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(frame.Mat, &gray, gocv.ColorBGRToGray)

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	d.clahe.Apply(gray, &enhanced)

	rects := d.classifier.DetectMultiScale(enhanced)
	out := make([]Detection, 0, len(rects))
	for _, r := range rects {
		out = append(out, Detection{
			BBox:       BBox{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()},
			Confidence: 0.9, // DetectMultiScale does not expose per-box scores
			Class:      "person",
		})
	}
	return out, nil
}

func (d *CascadeDetector) Close() error {
	d.clahe.Close()
	return d.classifier.Close()
}
