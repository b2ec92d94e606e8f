// Package alertsink implements the External Alert Sink (C9): an optional
// best-effort secondary fan-out, invoked after the primary WebSocket push
// and never allowed to block or fail it. Grounded on the adjacent pack's
// internal HTTP client idiom (ts-vms internal/sfu/client.go's bounded-timeout
// *http.Client + JSON-over-HTTP helper).
package alertsink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const requestTimeout = 5 * time.Second

type Sink struct {
	httpClient *http.Client
	token      string
}

func New(token string) *Sink {
	return &Sink{
		httpClient: &http.Client{Timeout: requestTimeout},
		token:      token,
	}
}

type textSummary struct {
	ShopID      string `json:"shop_id"`
	AnomalyType string `json:"anomaly_type"`
	Severity    string `json:"severity"`
	Location    string `json:"location"`
	Summary     string `json:"summary"`
}

// Notify posts a compact text summary (no image) to target best-effort. A
// failure is logged at WARN and never propagated, per spec.md §4.9.
func (s *Sink) Notify(ctx context.Context, target string, summary textSummary) {
	if target == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	body, err := json.Marshal(summary)
	if err != nil {
		log.Printf("[WARN] alertsink: marshal summary: %v", err)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		log.Printf("[WARN] alertsink: build request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.token))
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		log.Printf("[WARN] alertsink: request to %s failed: %v", target, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		log.Printf("[WARN] alertsink: %s responded %d", target, resp.StatusCode)
	}
}

// NewSummary builds the compact text payload from a recorded anomaly.
func NewSummary(shopID, anomalyType, severity, location string) textSummary {
	return textSummary{
		ShopID:      shopID,
		AnomalyType: anomalyType,
		Severity:    severity,
		Location:    location,
		Summary:     fmt.Sprintf("%s anomaly (%s) at %s", severity, anomalyType, location),
	}
}
