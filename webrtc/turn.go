package webrtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"
)

// TURNCredentials issues time-limited Coturn credentials. The teacher
// carried two copies of this exact logic (root main.go and
// webrtc/videoconference.go, diverging only in which handler called them);
// this collapses both into the one controller the signaling endpoint and
// the config-driven TURN secret actually need.
type TURNCredentials struct {
	secret string
	ttl    int64
}

func NewTURNCredentials(secret string, ttlSeconds int64) *TURNCredentials {
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	return &TURNCredentials{secret: secret, ttl: ttlSeconds}
}

// Generate creates a Coturn username and HMAC-SHA1-signed password for user.
func (t *TURNCredentials) Generate(user string) (username, password string) {
	if user == "" {
		user = "anonymous"
	}
	expires := time.Now().Unix() + t.ttl
	username = fmt.Sprintf("%d:%s", expires, user)
	mac := hmac.New(sha1.New, []byte(t.secret))
	mac.Write([]byte(username))
	password = base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return username, password
}
