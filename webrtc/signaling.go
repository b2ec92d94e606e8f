// Package webrtc implements the Signaling Endpoint (C5): a single
// SDP-offer/answer exchange per inbound stream, attaching a Stream
// Processor to the negotiated video track. Adapted from the teacher's
// full-mesh SFU (sfu.go) down to the one-publisher-no-fan-out shape this
// spec calls for — the MediaEngine/codec/ICE setup below is the teacher's
// newSFUAPI()/sfuIceServers, kept verbatim in purpose and trimmed of
// everything room- and subscriber-related.
package webrtc

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/alertsink"
	"github.com/n0remac/visionguard/apperr"
	"github.com/n0remac/visionguard/auth"
	"github.com/n0remac/visionguard/dedup"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/recorder"
	"github.com/n0remac/visionguard/registry"
	"github.com/n0remac/visionguard/store"
	"github.com/n0remac/visionguard/stream"
)

// OfferRequest is the operation's input per spec.md §4.5.
type OfferRequest struct {
	SDP            string
	Type           string
	UserID         uuid.UUID
	ShopID         uuid.UUID
	StreamMetadata StreamMetadata
}

type StreamMetadata struct {
	Location string
}

// OfferResponse is the operation's output per spec.md §4.5.
type OfferResponse struct {
	SDP      string
	Type     string
	UserID   uuid.UUID
	StreamID string
}

// Endpoint wires C5's dependencies: authentication, access control, the
// Stream Registry (C6), the Model Manager (C1), the Alert Hub (C7), the
// Anomaly Recorder (C8), and the optional External Alert Sink (C9).
type Endpoint struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	Authenticator auth.Authenticator
	Access        store.AccessChecker
	Registry      *registry.Registry
	Manager       *models.Manager
	Hub           *alerthub.Hub
	Recorder      *recorder.Recorder
	Sink          *alertsink.Sink
	SinkURL       string
	Cooldown      *dedup.Window
	Thresholds    stream.Thresholds

	decodePortBase int
	portCounter    atomic.Int64
}

func NewEndpoint(iceServers []webrtc.ICEServer, decodePortBase int) (*Endpoint, error) {
	api, err := newAPI()
	if err != nil {
		return nil, err
	}
	return &Endpoint{api: api, iceServers: iceServers, decodePortBase: decodePortBase}, nil
}

// newAPI rebuilds the teacher's MediaEngine (Opus + H264 baseline,
// packetization-mode=1) with the default interceptor registry — identical
// codec/feedback setup to newSFUAPI(), since the inbound media contract
// does not change even though there is no longer any fan-out.
func newAPI() (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2,
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio); err != nil {
		return nil, fmt.Errorf("register opus: %w", err)
	}
	if err := m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:     webrtc.MimeTypeH264,
			ClockRate:    90000,
			SDPFmtpLine:  "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f",
			RTCPFeedback: []webrtc.RTCPFeedback{{Type: "nack"}, {Type: "nack", Parameter: "pli"}, {Type: "goog-remb"}},
		},
		PayloadType: 96,
	}, webrtc.RTPCodecTypeVideo); err != nil {
		return nil, fmt.Errorf("register h264: %w", err)
	}
	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	return webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(ir)), nil
}

// sinkURLFor resolves the External Alert Sink target for a shop: its
// per-shop Shop.ExternalAlertTarget override (spec.md §3) if set, else the
// process-wide default from config. A lookup failure falls back to the
// default rather than failing the offer over an optional feature.
func (e *Endpoint) sinkURLFor(ctx context.Context, shopID uuid.UUID) string {
	if e.Access == nil {
		return e.SinkURL
	}
	shop, err := e.Access.ShopByID(ctx, shopID)
	if err != nil || shop.ExternalAlertTarget == "" {
		return e.SinkURL
	}
	return shop.ExternalAlertTarget
}

// Offer implements the eight-step contract of spec.md §4.5.
func (e *Endpoint) Offer(ctx context.Context, bearerToken string, req OfferRequest) (OfferResponse, error) {
	// Step 1: authenticate.
	claims, err := e.Authenticator.Verify(bearerToken)
	if err != nil {
		return OfferResponse{}, apperr.Wrap(apperr.Unauthenticated, "verify bearer token", err)
	}

	// Step 2: caller identity and shop access.
	if claims.UserID != req.UserID {
		return OfferResponse{}, apperr.New(apperr.Forbidden, "user_id does not match bearer token")
	}
	ok, err := e.Access.HasAccess(ctx, claims.UserID, store.Role(claims.Role), req.ShopID)
	if err != nil {
		return OfferResponse{}, apperr.Wrap(apperr.Forbidden, "check shop access", err)
	}
	if !ok {
		return OfferResponse{}, apperr.New(apperr.Forbidden, "no access to shop")
	}

	// Step 3: only offers are accepted.
	if req.Type != "offer" {
		return OfferResponse{}, apperr.New(apperr.BadRequest, "type must be \"offer\"")
	}

	// Step 4: allocate a fresh stream id.
	streamID := uuid.New().String()

	// Steps 5-7 run under an overall 10s deadline (spec.md §5); a timeout
	// tears down whatever peer connection was partially built.
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// Step 5: create the peer connection and attach the Stream Processor
	// on the inbound video track.
	pc, err := e.api.NewPeerConnection(webrtc.Configuration{ICEServers: e.iceServers})
	if err != nil {
		return OfferResponse{}, apperr.Wrap(apperr.TransportError, "create peer connection", err)
	}

	sinkURL := e.sinkURLFor(ctx, req.ShopID)

	procCtx, procCancel := context.WithCancel(context.Background())
	proc := stream.New(
		stream.Params{StreamID: streamID, UserID: req.UserID, ShopID: req.ShopID, Location: req.StreamMetadata.Location},
		e.Thresholds, e.Manager, e.Hub, e.Recorder, e.Sink, sinkURL, e.Cooldown,
	)

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeVideo {
			return
		}
		port := e.decodePortBase + int(e.portCounter.Add(1))
		go func() {
			if err := proc.Run(procCtx, remote, 640, 480, port); err != nil {
				log.Printf("[webrtc] stream %s processor exited: %v", streamID, err)
			}
		}()
	})

	terminal := func() {
		e.Registry.Remove(streamID)
	}
	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		switch state {
		case webrtc.ICEConnectionStateFailed, webrtc.ICEConnectionStateClosed:
			terminal()
		case webrtc.ICEConnectionStateDisconnected:
			go func() {
				time.Sleep(10 * time.Second)
				if pc.ICEConnectionState() == webrtc.ICEConnectionStateDisconnected {
					terminal()
				}
			}()
		}
	})

	// Step 6: apply the offer, create and apply the answer. Step 7:
	// register the handle. Run on a goroutine so a deadline firing mid-way
	// can still tear down the partially-built connection below.
	type outcome struct {
		resp OfferResponse
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP}
		if err := pc.SetRemoteDescription(offer); err != nil {
			done <- outcome{err: apperr.Wrap(apperr.Unknown, "set remote description", err)}
			return
		}
		answer, err := pc.CreateAnswer(nil)
		if err != nil {
			done <- outcome{err: apperr.Wrap(apperr.Unknown, "create answer", err)}
			return
		}
		if err := pc.SetLocalDescription(answer); err != nil {
			done <- outcome{err: apperr.Wrap(apperr.Unknown, "set local description", err)}
			return
		}

		e.Registry.Add(&registry.Handle{
			StreamID:  streamID,
			UserID:    req.UserID,
			ShopID:    req.ShopID,
			CreatedAt: time.Now().Unix(),
			Teardown: func() {
				procCancel()
				proc.Stop()
				_ = pc.Close()
			},
		})

		done <- outcome{resp: OfferResponse{
			SDP:      pc.LocalDescription().SDP,
			Type:     "answer",
			UserID:   req.UserID,
			StreamID: streamID,
		}}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			procCancel()
			_ = pc.Close()
			return OfferResponse{}, out.err
		}
		return out.resp, nil
	case <-ctx.Done():
		procCancel()
		_ = pc.Close()
		return OfferResponse{}, apperr.Wrap(apperr.Timeout, "offer handling exceeded 10s deadline", ctx.Err())
	}
}
