package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/apperr"
)

// connectionsAll handles GET /ws/connections, Alert Hub observability for
// every attached user per spec.md §4.7.
func (h *handlers) connectionsAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Hub.StatsAll())
}

// connectionsOne handles GET /ws/connections/{user_id}.
func (h *handlers) connectionsOne(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "parse user_id", err))
		return
	}
	stats, ok := h.deps.Hub.Stats(userID)
	if !ok {
		writeError(w, apperr.New(apperr.NotFound, "no attached channel for user"))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// wsAlerts handles GET /ws/alerts/{user_id}?token=<bearer>, the Alert Hub's
// (C7) single entry point: upgrade, verify, attach, run. Close codes per
// spec.md §6: 1000 normal, 4401 unauth, 4000 superseded, 4001
// heartbeat_timeout.
func (h *handlers) wsAlerts(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	claims, err := h.deps.Authenticator.Verify(bearerToken(r))
	if err != nil || claims.UserID != userID {
		upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		if conn, uerr := upgrader.Upgrade(w, r, nil); uerr == nil {
			msg := websocket.FormatCloseMessage(alerthub.CloseUnauthenticated, "unauthenticated")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
			_ = conn.Close()
			return
		}
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin:     func(req *http.Request) bool { return h.deps.Config.AllowOrigin(req.Header.Get("Origin")) },
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := h.deps.Hub.Attach(userID, conn)
	h.deps.Hub.RunReadLoop(ch)
}
