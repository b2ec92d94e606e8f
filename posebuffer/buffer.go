// Package posebuffer implements the Frame Buffer Manager (C3): a per-stream,
// per-person bounded FIFO of pose frames that only ever yields a sequence
// once it is exactly N long.
package posebuffer

import (
	"github.com/n0remac/visionguard/models"
)

// Manager is per-stream and single-owner, per spec.md §3 ownership rules.
type Manager struct {
	n       int
	buffers map[int][]models.PoseFrame
}

func New(n int) *Manager {
	return &Manager{n: n, buffers: make(map[int][]models.PoseFrame)}
}

// Push appends pose to person_id's buffer, evicting the oldest frame if
// already at capacity.
func (m *Manager) Push(personID int, pose models.PoseFrame) {
	buf := m.buffers[personID]
	buf = append(buf, pose)
	if len(buf) > m.n {
		buf = buf[len(buf)-m.n:]
	}
	m.buffers[personID] = buf
}

// Sequence returns the full N-length tensor for person_id only once the
// buffer is full; otherwise ok is false. The invariant that the classifier
// never sees a partial sequence (spec.md §4.3) is enforced here, at the
// only place sequences are read out.
func (m *Manager) Sequence(personID int) (models.PoseSequence, bool) {
	buf, ok := m.buffers[personID]
	if !ok || len(buf) != m.n {
		return models.PoseSequence{}, false
	}
	frames := make([]models.PoseFrame, m.n)
	copy(frames, buf)
	return models.PoseSequence{PersonID: personID, Frames: frames}, true
}

// Drop removes person_id's buffer entirely, called when the Tracker
// destroys the corresponding track.
func (m *Manager) Drop(personID int) {
	delete(m.buffers, personID)
}

// SnapshotAll returns the current buffered state for every tracked person,
// used by the Anomaly Recorder to preserve evidence alongside a positive
// classification.
func (m *Manager) SnapshotAll() map[int][]models.PoseFrame {
	out := make(map[int][]models.PoseFrame, len(m.buffers))
	for id, buf := range m.buffers {
		cp := make([]models.PoseFrame, len(buf))
		copy(cp, buf)
		out[id] = cp
	}
	return out
}
