package authsdk

import (
	"sync"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/jwtx"
)

// RefreshMargin is how long before expiry a session is treated as stale.
const RefreshMargin = 60 * time.Second

// NeedsRefresh reports whether a session expiring at expiresAt should be
// refreshed now. An unknown (zero) expiry always needs a refresh.
func NeedsRefresh(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return true
	}
	return expiresAt.Sub(now) < RefreshMargin
}

// expiryCache remembers the expiry decoded for the last access token seen,
// for sessions whose provider did not report one.
type expiryCache struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func (c *expiryCache) expiry(s *Session) time.Time {
	if !s.ExpiresAt.IsZero() {
		return s.ExpiresAt
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == s.AccessToken {
		return c.expiresAt
	}

	exp, err := jwtx.ExpiresAt(s.AccessToken)
	if err != nil {
		exp = time.Time{}
	}
	c.token, c.expiresAt = s.AccessToken, exp
	return exp
}

func (c *expiryCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token, c.expiresAt = "", time.Time{}
}
