package webrtc

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0remac/visionguard/alerthub"
	"github.com/n0remac/visionguard/apperr"
	"github.com/n0remac/visionguard/auth"
	"github.com/n0remac/visionguard/models"
	"github.com/n0remac/visionguard/registry"
	"github.com/n0remac/visionguard/store"
)

type fakeAuthenticator struct {
	claims *auth.Claims
	err    error
}

func (f *fakeAuthenticator) Verify(token string) (*auth.Claims, error) { return f.claims, f.err }

type fakeAccessChecker struct {
	allow       bool
	err         error
	alertTarget string
}

func (f *fakeAccessChecker) HasAccess(ctx context.Context, userID uuid.UUID, role store.Role, shopID uuid.UUID) (bool, error) {
	return f.allow, f.err
}

func (f *fakeAccessChecker) ShopByID(ctx context.Context, shopID uuid.UUID) (*store.Shop, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &store.Shop{ID: shopID, ExternalAlertTarget: f.alertTarget}, nil
}

// clientOfferSDP builds a real offer SDP via a throwaway client-side
// PeerConnection, the same way a WebRTC browser client would.
func clientOfferSDP(t *testing.T) string {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pc.Close() })

	_, err = pc.CreateDataChannel("control", nil)
	require.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	require.NoError(t, err)
	require.NoError(t, pc.SetLocalDescription(offer))
	return offer.SDP
}

func newTestEndpoint(t *testing.T, authr auth.Authenticator, access store.AccessChecker) *Endpoint {
	t.Helper()
	e, err := NewEndpoint([]webrtc.ICEServer{}, 20000)
	require.NoError(t, err)
	e.Authenticator = authr
	e.Access = access
	e.Registry = registry.New()
	e.Manager = models.New()
	e.Hub = alerthub.New()
	return e
}

func TestOfferRejectsInvalidBearerToken(t *testing.T) {
	e := newTestEndpoint(t, &fakeAuthenticator{err: auth.ErrInvalidToken}, &fakeAccessChecker{allow: true})
	_, err := e.Offer(context.Background(), "bad-token", OfferRequest{Type: "offer"})
	require.Error(t, err)
	assert.Equal(t, apperr.Unauthenticated, apperr.KindOf(err))
}

func TestOfferRejectsUserIDMismatch(t *testing.T) {
	claims := &auth.Claims{UserID: uuid.New(), Role: "OWNER"}
	e := newTestEndpoint(t, &fakeAuthenticator{claims: claims}, &fakeAccessChecker{allow: true})

	_, err := e.Offer(context.Background(), "tok", OfferRequest{Type: "offer", UserID: uuid.New()})
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestOfferRejectsWithoutShopAccess(t *testing.T) {
	userID := uuid.New()
	claims := &auth.Claims{UserID: userID, Role: "MANAGER"}
	e := newTestEndpoint(t, &fakeAuthenticator{claims: claims}, &fakeAccessChecker{allow: false})

	_, err := e.Offer(context.Background(), "tok", OfferRequest{Type: "offer", UserID: userID})
	require.Error(t, err)
	assert.Equal(t, apperr.Forbidden, apperr.KindOf(err))
}

func TestOfferRejectsNonOfferType(t *testing.T) {
	userID := uuid.New()
	claims := &auth.Claims{UserID: userID, Role: "OWNER"}
	e := newTestEndpoint(t, &fakeAuthenticator{claims: claims}, &fakeAccessChecker{allow: true})

	_, err := e.Offer(context.Background(), "tok", OfferRequest{Type: "answer", UserID: userID})
	require.Error(t, err)
	assert.Equal(t, apperr.BadRequest, apperr.KindOf(err))
}

func TestSinkURLForPrefersShopOverride(t *testing.T) {
	e := newTestEndpoint(t, &fakeAuthenticator{}, &fakeAccessChecker{alertTarget: "https://shop.example/hook"})
	e.SinkURL = "https://default.example/hook"

	assert.Equal(t, "https://shop.example/hook", e.sinkURLFor(context.Background(), uuid.New()))
}

func TestSinkURLForFallsBackToDefaultWithoutOverride(t *testing.T) {
	e := newTestEndpoint(t, &fakeAuthenticator{}, &fakeAccessChecker{})
	e.SinkURL = "https://default.example/hook"

	assert.Equal(t, "https://default.example/hook", e.sinkURLFor(context.Background(), uuid.New()))
}

func TestSinkURLForFallsBackOnLookupError(t *testing.T) {
	e := newTestEndpoint(t, &fakeAuthenticator{}, &fakeAccessChecker{err: assert.AnError})
	e.SinkURL = "https://default.example/hook"

	assert.Equal(t, "https://default.example/hook", e.sinkURLFor(context.Background(), uuid.New()))
}

func TestOfferSucceedsAndRegistersStream(t *testing.T) {
	userID := uuid.New()
	shopID := uuid.New()
	claims := &auth.Claims{UserID: userID, Role: "OWNER"}
	e := newTestEndpoint(t, &fakeAuthenticator{claims: claims}, &fakeAccessChecker{allow: true})

	sdp := clientOfferSDP(t)
	resp, err := e.Offer(context.Background(), "tok", OfferRequest{
		SDP: sdp, Type: "offer", UserID: userID, ShopID: shopID,
		StreamMetadata: StreamMetadata{Location: "front door"},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.Type)
	assert.NotEmpty(t, resp.SDP)
	assert.NotEmpty(t, resp.StreamID)

	_, ok := e.Registry.Get(resp.StreamID)
	assert.True(t, ok)
}
