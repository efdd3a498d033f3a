package authority

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrCredentialMissing means no bearer token is configured.
	ErrCredentialMissing = errors.New("no credential configured")
	// ErrCredentialExpired means the token's exp claim is in the past.
	ErrCredentialExpired = errors.New("credential expired")
)

// Credential holds the opaque bearer token. When the token happens to be a
// JWT its exp claim is read without verifying the signature, so an expired
// token fails locally instead of costing a round trip.
type Credential struct {
	mu    sync.RWMutex
	token string
	now   func() time.Time
}

func NewCredential(token string) *Credential {
	return &Credential{token: strings.TrimSpace(token), now: time.Now}
}

// Set replaces the token, e.g. after a re-login.
func (c *Credential) Set(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Token returns the token if it is present and not known to be expired.
func (c *Credential) Token() (string, error) {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	if token == "" {
		return "", ErrCredentialMissing
	}
	if exp, ok := expiry(token); ok && !c.now().Before(exp) {
		return "", ErrCredentialExpired
	}
	return token, nil
}

// expiry reports the exp claim of a JWT. Opaque tokens report ok=false.
func expiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
