package models

// NumKeypoints is the fixed COCO keypoint count per spec.md §3 ("17 COCO
// keypoints").
const NumKeypoints = 17

// Keypoint is one COCO joint: (x, y, confidence).
type Keypoint struct {
	X, Y, Confidence float64
}

// PoseFrame is the per-frame, per-person pose estimate fed into the Frame
// Buffer Manager (C3).
type PoseFrame [NumKeypoints]Keypoint

// PoseSequence is the fixed-length tensor the classifier consumes:
// {person_id -> [N frames x 17 keypoints x 3]} per spec.md §3, narrowed
// here to a single person's sequence since that is what C3 emits and what
// C1's classifier scores.
type PoseSequence struct {
	PersonID int
	Frames   []PoseFrame
}
