// Package registry implements the Stream Registry (C6): an in-process index
// of active peer-connection handles keyed by stream id and user id.
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Handle is the PeerConnection handle from spec.md §3. Teardown is a
// caller-supplied function invoked by RemoveAll/Remove so the registry
// never has to know about pion or the Stream Processor directly.
type Handle struct {
	StreamID  string
	UserID    uuid.UUID
	ShopID    uuid.UUID
	CreatedAt int64
	Teardown  func()
}

// Registry guards both indexes (stream_id -> handle, user_id -> set of
// stream_id) under one lock so they are always updated together, per
// spec.md §4.6.
type Registry struct {
	mu       sync.Mutex
	byStream map[string]*Handle
	byUser   map[uuid.UUID]map[string]struct{}
}

func New() *Registry {
	return &Registry{
		byStream: make(map[string]*Handle),
		byUser:   make(map[uuid.UUID]map[string]struct{}),
	}
}

// Add registers a handle. Each stream_id maps to at most one live handle
// per spec.md §3; Add overwrites any stale entry for the same stream_id
// after tearing it down, though in practice stream ids are never reused.
func (r *Registry) Add(h *Handle) {
	r.mu.Lock()
	prev, had := r.byStream[h.StreamID]
	if had {
		if set, ok := r.byUser[prev.UserID]; ok {
			delete(set, h.StreamID)
			if len(set) == 0 {
				delete(r.byUser, prev.UserID)
			}
		}
	}
	r.byStream[h.StreamID] = h
	set, ok := r.byUser[h.UserID]
	if !ok {
		set = make(map[string]struct{})
		r.byUser[h.UserID] = set
	}
	set[h.StreamID] = struct{}{}
	r.mu.Unlock()
	if had && prev != h && prev.Teardown != nil {
		prev.Teardown()
	}
}

// Remove tears down and deregisters one stream.
func (r *Registry) Remove(streamID string) {
	r.mu.Lock()
	h, ok := r.byStream[streamID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.byStream, streamID)
	if set, ok := r.byUser[h.UserID]; ok {
		delete(set, streamID)
		if len(set) == 0 {
			delete(r.byUser, h.UserID)
		}
	}
	r.mu.Unlock()
	if h.Teardown != nil {
		h.Teardown()
	}
}

// RemoveAll tears down and deregisters every stream for a user.
func (r *Registry) RemoveAll(userID uuid.UUID) {
	r.mu.Lock()
	set := r.byUser[userID]
	streamIDs := make([]string, 0, len(set))
	for id := range set {
		streamIDs = append(streamIDs, id)
	}
	r.mu.Unlock()
	for _, id := range streamIDs {
		r.Remove(id)
	}
}

// Get returns the handle for a stream id, if live.
func (r *Registry) Get(streamID string) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.byStream[streamID]
	return h, ok
}

// All returns every currently live handle, used by the Lifecycle
// Controller to drain the registry on shutdown.
func (r *Registry) All() []*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Handle, 0, len(r.byStream))
	for _, h := range r.byStream {
		out = append(out, h)
	}
	return out
}

// List returns the stream ids currently live for a user.
func (r *Registry) List(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.byUser[userID]
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
