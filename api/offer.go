package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/n0remac/visionguard/apperr"
	"github.com/n0remac/visionguard/webrtc"
)

type offerRequestBody struct {
	SDP            string `json:"sdp"`
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	ShopID         string `json:"shop_id"`
	StreamMetadata struct {
		Location string `json:"location"`
	} `json:"stream_metadata"`
}

type offerResponseBody struct {
	SDP      string `json:"sdp"`
	Type     string `json:"type"`
	UserID   string `json:"user_id"`
	StreamID string `json:"stream_id"`
}

// offer handles POST /offer, the Signaling Endpoint's (C5) single
// operation per spec.md §4.5.
func (h *handlers) offer(w http.ResponseWriter, r *http.Request) {
	var body offerRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "decode request body", err))
		return
	}
	userID, err := uuid.Parse(body.UserID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "parse user_id", err))
		return
	}
	shopID, err := uuid.Parse(body.ShopID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.BadRequest, "parse shop_id", err))
		return
	}

	resp, err := h.deps.Endpoint.Offer(r.Context(), bearerToken(r), webrtc.OfferRequest{
		SDP:            body.SDP,
		Type:           body.Type,
		UserID:         userID,
		ShopID:         shopID,
		StreamMetadata: webrtc.StreamMetadata{Location: body.StreamMetadata.Location},
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, offerResponseBody{
		SDP:      resp.SDP,
		Type:     resp.Type,
		UserID:   resp.UserID.String(),
		StreamID: resp.StreamID,
	})
}
