// Package api implements the HTTP/WebSocket surface: the request shapes
// documented in spec.md §6, dispatched with a plain net/http.ServeMux in
// the teacher's own routing style (main.go/videoconference.go never reached
// for chi or gorilla/mux for HTTP routing, only for the WebSocket upgrade
// itself).
package api

import (
	"net/http"

	"github.com/n0remac/visionguard/deps"
)

// NewRouter builds the full HTTP surface for one process.
func NewRouter(d *deps.Deps) http.Handler {
	mux := http.NewServeMux()

	h := &handlers{deps: d}

	mux.HandleFunc("POST /offer", h.offer)
	mux.HandleFunc("GET /users/{user_id}/streams", h.listStreams)
	mux.HandleFunc("DELETE /users/{user_id}/streams/{stream_id}", h.deleteStream)
	mux.HandleFunc("DELETE /users/{user_id}", h.deleteUser)

	mux.HandleFunc("GET /ws/connections", h.connectionsAll)
	mux.HandleFunc("GET /ws/connections/{user_id}", h.connectionsOne)
	mux.HandleFunc("GET /ws/alerts/{user_id}", h.wsAlerts)

	mux.HandleFunc("GET /turn-credentials", h.turnCredentials)

	return mux
}

type handlers struct {
	deps *deps.Deps
}
