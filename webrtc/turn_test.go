package webrtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateDefaultsAnonymousUser(t *testing.T) {
	tc := NewTURNCredentials("secret", 3600)
	username, _ := tc.Generate("")
	parts := strings.SplitN(username, ":", 2)
	assert.Len(t, parts, 2)
	assert.Equal(t, "anonymous", parts[1])
}

func TestGenerateUsernameEmbedsExpiry(t *testing.T) {
	tc := NewTURNCredentials("secret", 60)
	before := time.Now().Unix()
	username, _ := tc.Generate("alice")
	after := time.Now().Unix()

	parts := strings.SplitN(username, ":", 2)
	assert.Equal(t, "alice", parts[1])
	expires, err := strconv.ParseInt(parts[0], 10, 64)
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, expires, before+60)
	assert.LessOrEqual(t, expires, after+60)
}

func TestGeneratePasswordIsValidHMAC(t *testing.T) {
	tc := NewTURNCredentials("topsecret", 3600)
	username, password := tc.Generate("bob")

	mac := hmac.New(sha1.New, []byte("topsecret"))
	mac.Write([]byte(username))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, password)
}

func TestNewTURNCredentialsDefaultsTTL(t *testing.T) {
	tc := NewTURNCredentials("s", 0)
	assert.Equal(t, int64(3600), tc.ttl)

	tc = NewTURNCredentials("s", -10)
	assert.Equal(t, int64(3600), tc.ttl)
}
