// Package dedup implements the optional per-person cooldown window noted as
// an enhancement in spec.md §9 ("it may be worth adding a cool-down...").
// It is opt-in and disabled by default (PERSON_COOLDOWN_SECONDS=0) so the
// default behavior matches spec.md exactly: every positive classification
// reaches the Recorder and Alert Hub with no suppression.
package dedup

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Window suppresses repeat events for the same (stream_id, person_id) pair
// within a configurable cooldown, grounded on the adjacent pack's
// LRU-backed event dedup (ts-vms internal/nvr/event_dedup.go).
type Window struct {
	cache *lru.Cache[string, time.Time]
	ttl   time.Duration
}

// New returns nil (a nil *Window, meaning "disabled") when seconds <= 0.
func New(maxKeys, seconds int) *Window {
	if seconds <= 0 {
		return nil
	}
	c, _ := lru.New[string, time.Time](maxKeys)
	return &Window{cache: c, ttl: time.Duration(seconds) * time.Second}
}

// Suppress reports whether an event for (streamID, personID) should be
// suppressed because one was already emitted within the cooldown window. A
// nil *Window never suppresses.
func (w *Window) Suppress(streamID string, personID int) bool {
	if w == nil {
		return false
	}
	key := buildKey(streamID, personID)
	if last, ok := w.cache.Get(key); ok && time.Since(last) < w.ttl {
		return true
	}
	w.cache.Add(key, time.Now())
	return false
}

func buildKey(streamID string, personID int) string {
	return fmt.Sprintf("%s|%d", streamID, personID)
}
