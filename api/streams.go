package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/n0remac/visionguard/apperr"
)

type streamListBody struct {
	StreamIDs []string `json:"stream_ids"`
}

// requireCallerIsUser authenticates the bearer token and verifies its
// claims identify pathUserID, per spec.md §6's "(must equal caller)" on
// every /users/{user_id}/... route. Mirrors the check webrtc.Endpoint.Offer
// runs for POST /offer.
func (h *handlers) requireCallerIsUser(r *http.Request, pathUserID uuid.UUID) error {
	claims, err := h.deps.Authenticator.Verify(bearerToken(r))
	if err != nil {
		return apperr.Wrap(apperr.Unauthenticated, "verify bearer token", err)
	}
	if claims.UserID != pathUserID {
		return apperr.New(apperr.Forbidden, "user_id does not match bearer token")
	}
	return nil
}

// listStreams handles GET /users/{user_id}/streams via the Stream
// Registry's (C6) list(user_id) operation.
func (h *handlers) listStreams(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "parse user_id", err))
		return
	}
	if err := h.requireCallerIsUser(r, userID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streamListBody{StreamIDs: h.deps.Registry.List(userID)})
}

// deleteStream handles DELETE /users/{user_id}/streams/{stream_id}: tears
// down one stream, only if it belongs to user_id.
func (h *handlers) deleteStream(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "parse user_id", err))
		return
	}
	if err := h.requireCallerIsUser(r, userID); err != nil {
		writeError(w, err)
		return
	}
	streamID := r.PathValue("stream_id")
	handle, ok := h.deps.Registry.Get(streamID)
	if !ok || handle.UserID != userID {
		writeError(w, apperr.New(apperr.NotFound, "stream not found"))
		return
	}
	h.deps.Registry.Remove(streamID)
	w.WriteHeader(http.StatusNoContent)
}

// deleteUser handles DELETE /users/{user_id}: tears down every stream for
// the user via remove_all(user_id).
func (h *handlers) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(r.PathValue("user_id"))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "parse user_id", err))
		return
	}
	if err := h.requireCallerIsUser(r, userID); err != nil {
		writeError(w, err)
		return
	}
	h.deps.Registry.RemoveAll(userID)
	w.WriteHeader(http.StatusNoContent)
}
