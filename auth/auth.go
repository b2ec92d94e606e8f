// Package auth provides the pluggable credential-verification boundary that
// sits in front of the core. Full JWT issuance/refresh is out of scope per
// spec.md §1 ("JWT-based auth ... specified only as interface contracts in
// §6"); this package supplies the minimal side of that contract the core
// actually calls: turn a bearer token into a verified user id.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid bearer token")

// Claims is the minimal shape the core needs out of a verified token,
// mirroring the adjacent pack's tokens.Claims (ts-vms) but trimmed to what
// spec.md actually consumes: a user id and a role.
type Claims struct {
	UserID uuid.UUID
	Role   string
}

// Authenticator verifies a bearer token and returns the identity it binds
// to. The Signaling Endpoint (C5) and Alert Hub attach (C7) both depend on
// this interface rather than on any concrete token format.
type Authenticator interface {
	Verify(token string) (*Claims, error)
}

// JWTAuthenticator is the default implementation, grounded on the adjacent
// pack's golang-jwt usage (ts-vms/internal/tokens, orbo) — HMAC-signed
// tokens carrying a "sub" (user id) and "role" claim.
type JWTAuthenticator struct {
	secret []byte
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

func (a *JWTAuthenticator) Verify(tokenString string) (*Claims, error) {
	if len(a.secret) == 0 {
		return nil, ErrInvalidToken
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	mc, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	sub, _ := mc["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return nil, ErrInvalidToken
	}
	role, _ := mc["role"].(string)
	return &Claims{UserID: id, Role: role}, nil
}

// Issue is a small helper used by tests and local tooling to mint tokens
// without standing up a full auth service.
func (a *JWTAuthenticator) Issue(userID uuid.UUID, role string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"sub":  userID.String(),
		"role": role,
		"exp":  time.Now().Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}
