package policy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"
)

var ErrEmptySecret = errors.New("csrf secret must not be empty")

// CSRF issues and validates stateless tokens bound to a client identity.
// A token is "<unix expiry>.<base64url hmac(identity|expiry)>".
type CSRF struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewCSRF(secret string, ttl time.Duration) (*CSRF, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &CSRF{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a fresh token for clientIdentity.
func (c *CSRF) Issue(clientIdentity string) string {
	expiry := strconv.FormatInt(c.now().Add(c.ttl).Unix(), 10)
	return expiry + "." + c.sign(clientIdentity, expiry)
}

// Validate checks the signature and expiry of token.
func (c *CSRF) Validate(clientIdentity, token string) bool {
	expiry, sig, ok := strings.Cut(token, ".")
	if !ok {
		return false
	}
	unix, err := strconv.ParseInt(expiry, 10, 64)
	if err != nil || c.now().Unix() > unix {
		return false
	}
	return hmac.Equal([]byte(sig), []byte(c.sign(clientIdentity, expiry)))
}

func (c *CSRF) sign(clientIdentity, expiry string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(clientIdentity))
	mac.Write([]byte{'|'})
	mac.Write([]byte(expiry))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
