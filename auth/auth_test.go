package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueThenVerifyRoundTrips(t *testing.T) {
	a := NewJWTAuthenticator("test-secret")
	userID := uuid.New()

	token, err := a.Issue(userID, "OWNER", time.Hour)
	require.NoError(t, err)

	claims, err := a.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "OWNER", claims.Role)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	a := NewJWTAuthenticator("test-secret")
	token, err := a.Issue(uuid.New(), "MANAGER", -time.Hour)
	require.NoError(t, err)

	_, err = a.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	a := NewJWTAuthenticator("secret-a")
	token, err := a.Issue(uuid.New(), "OWNER", time.Hour)
	require.NoError(t, err)

	b := NewJWTAuthenticator("secret-b")
	_, err = b.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	a := NewJWTAuthenticator("test-secret")
	_, err := a.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyFailsWithEmptySecret(t *testing.T) {
	a := NewJWTAuthenticator("")
	_, err := a.Verify("anything")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
