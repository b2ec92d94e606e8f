package api

import "net/http"

// turnCredentials mirrors the teacher's /turn-credentials endpoint, now
// backed by the single TURNCredentials controller instead of two
// independently-maintained copies.
func (h *handlers) turnCredentials(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	username, password := h.deps.TURN.Generate(user)
	writeJSON(w, http.StatusOK, map[string]string{"username": username, "password": password})
}
