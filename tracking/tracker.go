// Package tracking implements the Person Tracker (C2): a per-stream,
// single-owner component assigning stable integer ids to detections across
// frames via greedy IoU matching, and producing the pose keypoints for each
// matched detection.
package tracking

import (
	"sort"

	"github.com/n0remac/visionguard/models"
)

const (
	// IoUThreshold is the minimum overlap to associate a detection with an
	// existing track, per spec.md §4.2.
	IoUThreshold = 0.3
	// DefaultMaxAge is the missed_frames budget before a track is
	// destroyed, per spec.md §4.2's stated design default.
	DefaultMaxAge = 30
)

// Track is one tracked person's mutable state.
type Track struct {
	PersonID     int
	LastBBox     models.BBox
	MissedFrames int
}

// TrackedPerson is the per-frame output of Update.
type TrackedPerson struct {
	PersonID  int
	BBox      models.BBox
	Keypoints models.PoseFrame
}

// PoseEstimator produces the 17-keypoint pose for a detection cropped to
// its bbox. The Tracker hosts this call per spec.md §4.2 ("the tracker also
// hosts the pose-estimation call").
type PoseEstimator interface {
	Estimate(frame models.Frame, bbox models.BBox) (models.PoseFrame, error)
}

// Tracker is per-stream and single-owner: nothing outside the owning Stream
// Processor mutates it, per spec.md §3 ownership rules.
type Tracker struct {
	maxAge     int
	nextID     int
	tracks     map[int]*Track
	pose       PoseEstimator
	lastDestroyed []int
}

func New(pose PoseEstimator) *Tracker {
	return &Tracker{
		maxAge: DefaultMaxAge,
		nextID: 1,
		tracks: make(map[int]*Track),
		pose:   pose,
	}
}

// WithMaxAge overrides the design-default max age (mainly for tests).
func (t *Tracker) WithMaxAge(maxAge int) *Tracker {
	t.maxAge = maxAge
	return t
}

// candidatePair is one (detection index, track id) match candidate used
// during greedy assignment.
type candidatePair struct {
	detIdx  int
	trackID int
	iou     float64
	conf    float64
}

// Update associates detections against existing tracks by IoU, resolves
// conflicts greedily by descending IoU (equal IoU broken by higher
// detection confidence, then lower person_id), ages out unmatched
// tracks, and returns the keypoints for every matched/new track this frame.
// Destroyed tracks (per-person state no longer tracked) are implicitly
// signaled by their person_id simply never appearing again; the Stream
// Processor calls Destroyed() after Update to learn which ids to drop from
// the Frame Buffer Manager.
func (t *Tracker) Update(detections []models.Detection, frame models.Frame) ([]TrackedPerson, error) {
	t.lastDestroyed = t.lastDestroyed[:0]

	personDets := make([]models.Detection, 0, len(detections))
	for _, d := range detections {
		if d.Class == "person" {
			personDets = append(personDets, d)
		}
	}

	candidates := make([]candidatePair, 0, len(personDets)*len(t.tracks))
	for di, d := range personDets {
		for id, tr := range t.tracks {
			iou := iouOf(d.BBox, tr.LastBBox)
			if iou >= IoUThreshold {
				candidates = append(candidates, candidatePair{detIdx: di, trackID: id, iou: iou, conf: d.Confidence})
			}
		}
	}
	// Greedy assignment: highest IoU first, tie-broken by higher detection
	// confidence, then by lower existing person_id (keeps ids stable) per
	// spec.md §4.2 tie-break rule.
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].iou != candidates[j].iou {
			return candidates[i].iou > candidates[j].iou
		}
		if candidates[i].conf != candidates[j].conf {
			return candidates[i].conf > candidates[j].conf
		}
		return candidates[i].trackID < candidates[j].trackID
	})

	assignedDet := make(map[int]bool, len(personDets))
	assignedTrack := make(map[int]bool, len(t.tracks))
	matchedTrackForDet := make(map[int]int, len(personDets))
	for _, c := range candidates {
		if assignedDet[c.detIdx] || assignedTrack[c.trackID] {
			continue
		}
		assignedDet[c.detIdx] = true
		assignedTrack[c.trackID] = true
		matchedTrackForDet[c.detIdx] = c.trackID
	}

	var out []TrackedPerson
	for di, d := range personDets {
		var id int
		if tid, ok := matchedTrackForDet[di]; ok {
			id = tid
			t.tracks[id].LastBBox = d.BBox
			t.tracks[id].MissedFrames = 0
		} else {
			id = t.nextID
			t.nextID++
			t.tracks[id] = &Track{PersonID: id, LastBBox: d.BBox}
			assignedTrack[id] = true
		}
		kp, err := t.pose.Estimate(frame, d.BBox)
		if err != nil {
			continue
		}
		out = append(out, TrackedPerson{PersonID: id, BBox: d.BBox, Keypoints: kp})
	}

	for id, tr := range t.tracks {
		if assignedTrack[id] {
			continue
		}
		tr.MissedFrames++
		if tr.MissedFrames > t.maxAge {
			delete(t.tracks, id)
			t.lastDestroyed = append(t.lastDestroyed, id)
		}
	}

	return out, nil
}

// Destroyed returns the person ids the most recent Update call aged out, so
// callers can drop their corresponding Frame Buffer Manager entries.
func (t *Tracker) Destroyed() []int { return t.lastDestroyed }

func iouOf(a, b models.BBox) float64 {
	ax2, ay2 := a.X+a.W, a.Y+a.H
	bx2, by2 := b.X+b.W, b.Y+b.H
	ix1, iy1 := max(a.X, b.X), max(a.Y, b.Y)
	ix2, iy2 := min(ax2, bx2), min(ay2, by2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := float64(iw * ih)
	areaA := float64(a.W * a.H)
	areaB := float64(b.W * b.H)
	union := areaA + areaB - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
