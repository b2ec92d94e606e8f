// Package alerthub implements the Alert Hub (C7): the per-user persistent
// message channel that fans anomaly events from all of a user's Stream
// Processors to that user's client.
package alerthub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/n0remac/visionguard/apperr"
)

// AnomalyResult is the inner "result" object of the anomaly_detected
// message per spec.md §4.7's message table.
type AnomalyResult struct {
	PersonID       int     `json:"person_id"`
	FrameNumber    int     `json:"frame_number"`
	Score          float64 `json:"score"`
	Classification string  `json:"classification"`
	Confidence     string  `json:"confidence"`
	BBox           [4]int  `json:"bbox"`
}

// Hub owns the channel map: at most one Channel per user_id, per spec.md
// §3's invariant. This is the adaptation of the teacher's room-keyed
// websocket.Hub (websocket/websocket.go) down to a user-keyed single
// channel, removing the room broadcast semantics entirely.
type Hub struct {
	mu       sync.Mutex
	channels map[uuid.UUID]*Channel
}

func New() *Hub {
	return &Hub{channels: make(map[uuid.UUID]*Channel)}
}

// Attach registers conn as the channel for userID. If a prior channel
// exists it is closed with reason "superseded" (code 4000) and replaced,
// per spec.md §4.7. The caller is responsible for having already verified
// the bearer credential binds to userID before calling Attach.
func (h *Hub) Attach(userID uuid.UUID, conn *websocket.Conn) *Channel {
	ch := newChannel(userID, conn)

	h.mu.Lock()
	prev, had := h.channels[userID]
	h.channels[userID] = ch
	h.mu.Unlock()

	if had {
		prev.close(CloseSuperseded, "superseded")
	}

	go ch.writePump()
	go ch.heartbeatLoop()
	return ch
}

// Detach removes userID's channel if it is still the one given (a stale
// detach from a superseded connection must not remove the new one).
func (h *Hub) Detach(userID uuid.UUID, ch *Channel) {
	h.mu.Lock()
	if cur, ok := h.channels[userID]; ok && cur == ch {
		delete(h.channels, userID)
	}
	h.mu.Unlock()
	ch.close(CloseNormal, "detached")
}

// RunReadLoop blocks reading client frames (pong/ack) and updating the
// channel's heartbeat until the connection errors or closes. It is the
// per-channel analogue of the teacher's WebsocketClient.ReadPump.
func (h *Hub) RunReadLoop(ch *Channel) {
	defer h.Detach(ch.UserID, ch)
	for {
		_, data, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		ch.touchHeartbeat()
		var msg wireMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ack" {
			log.Printf("[alerthub] ack from %s for stream %s", ch.UserID, msg.StreamID)
		}
	}
}

// Publish delivers an anomaly_detected message for userID, applying
// back-pressure to the caller if the channel's mailbox is full rather than
// dropping it, per spec.md §5. If the user has no attached channel the
// event is silently dropped, per spec.md §4.7 Detach semantics.
func (h *Hub) Publish(ctx context.Context, userID uuid.UUID, streamID string, result AnomalyResult, annotatedJPEG []byte) error {
	h.mu.Lock()
	ch, ok := h.channels[userID]
	h.mu.Unlock()
	if !ok {
		return nil
	}

	msg := wireMessage{
		Type:           "anomaly_detected",
		UserID:         userID.String(),
		StreamID:       streamID,
		Result:         result,
		AnnotatedFrame: base64.StdEncoding.EncodeToString(annotatedJPEG),
		FrameFormat:    "jpeg",
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		return apperr.Wrap(apperr.TransportError, "marshal anomaly_detected", err)
	}

	done := make(chan struct{})
	go func() {
		ch.enqueue(payload)
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns observability for one user, per spec.md §4.7.
func (h *Hub) Stats(userID uuid.UUID) (Stats, bool) {
	h.mu.Lock()
	ch, ok := h.channels[userID]
	h.mu.Unlock()
	if !ok {
		return Stats{}, false
	}
	return ch.stats(), true
}

// StatsAll returns observability for every currently attached user.
func (h *Hub) StatsAll() map[uuid.UUID]Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[uuid.UUID]Stats, len(h.channels))
	for id, ch := range h.channels {
		out[id] = ch.stats()
	}
	return out
}

// CloseAll closes every channel with the given reason, used by the
// Lifecycle Controller on shutdown.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.Lock()
	channels := make([]*Channel, 0, len(h.channels))
	for _, ch := range h.channels {
		channels = append(channels, ch)
	}
	h.channels = make(map[uuid.UUID]*Channel)
	h.mu.Unlock()
	for _, ch := range channels {
		ch.close(code, reason)
	}
}
