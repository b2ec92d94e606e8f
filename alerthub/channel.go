package alerthub

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	heartbeatInterval = 30 * time.Second
	heartbeatTimeout  = 60 * time.Second
	sendBufferSize    = 64
)

// Close codes per spec.md §6.
const (
	CloseNormal            = 1000
	CloseUnauthenticated    = 4401
	CloseSuperseded         = 4000
	CloseHeartbeatTimeout   = 4001
)

type wireMessage struct {
	Type          string `json:"type"`
	Timestamp     string `json:"timestamp,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	StreamID      string `json:"stream_id,omitempty"`
	Result        any    `json:"result,omitempty"`
	AnnotatedFrame string `json:"annotated_frame,omitempty"`
	FrameFormat   string `json:"frame_format,omitempty"`
}

// Channel is the single persistent bidirectional message channel for one
// user, per spec.md §4.7. It adapts the teacher's websocket.Hub
// single-writer-goroutine pattern (websocket/websocket.go's
// WebsocketClient.Send/WritePump) from a room broadcast model to a
// strictly one-channel-per-user model with symmetric heartbeats.
type Channel struct {
	UserID      uuid.UUID
	conn        *websocket.Conn
	send        chan []byte
	connectedAt time.Time

	lastHeartbeat atomic.Int64 // unix nanos

	closeOnce sync.Once
	closed    chan struct{}
}

func newChannel(userID uuid.UUID, conn *websocket.Conn) *Channel {
	c := &Channel{
		UserID:      userID,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
		closed:      make(chan struct{}),
	}
	c.touchHeartbeat()
	return c
}

func (c *Channel) touchHeartbeat() {
	c.lastHeartbeat.Store(time.Now().UnixNano())
}

func (c *Channel) lastHeartbeatAt() time.Time {
	return time.Unix(0, c.lastHeartbeat.Load())
}

// close shuts the channel down exactly once, sending a WebSocket close frame
// with the given code/reason first (best effort).
func (c *Channel) close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
		_ = c.conn.Close()
	})
}

// writePump is the single writer goroutine for this channel's connection:
// every outbound write (heartbeats and alerts alike) goes through here so
// neither ever interleaves a partial write of the other, per spec.md §5.
func (c *Channel) writePump() {
	for {
		select {
		case <-c.closed:
			return
		case payload := <-c.send:
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.close(CloseNormal, "write error")
				return
			}
		}
	}
}

// heartbeatLoop sends a ping every 30s and closes the channel if the client
// goes silent for more than 60s, per spec.md §4.7.
func (c *Channel) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
			if time.Since(c.lastHeartbeatAt()) > heartbeatTimeout {
				c.close(CloseHeartbeatTimeout, "heartbeat_timeout")
				return
			}
			ping, _ := json.Marshal(wireMessage{Type: "ping", Timestamp: time.Now().UTC().Format(time.RFC3339)})
			select {
			case c.send <- ping:
			case <-c.closed:
				return
			}
		}
	}
}

// enqueue blocks until the message is queued or the channel closes — an
// abnormal burst applies back-pressure to its producer rather than leaking
// memory, per spec.md §5.
func (c *Channel) enqueue(payload []byte) {
	select {
	case c.send <- payload:
	case <-c.closed:
	}
}

// Stats is the per-user observability shape from spec.md §4.7.
type Stats struct {
	Connected            bool      `json:"connected"`
	ConnectedAt          time.Time `json:"connected_at"`
	UptimeSeconds         float64  `json:"uptime_seconds"`
	LastHeartbeatAt       time.Time `json:"last_heartbeat_at"`
	SecondsSinceHeartbeat float64  `json:"seconds_since_heartbeat"`
}

func (c *Channel) stats() Stats {
	now := time.Now()
	return Stats{
		Connected:             true,
		ConnectedAt:           c.connectedAt,
		UptimeSeconds:         now.Sub(c.connectedAt).Seconds(),
		LastHeartbeatAt:       c.lastHeartbeatAt(),
		SecondsSinceHeartbeat: now.Sub(c.lastHeartbeatAt()).Seconds(),
	}
}
