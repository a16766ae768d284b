package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/medrec/pkg/storage"
)

// loadLocked reads the persisted session. c.mu must be held. An unreadable
// entry is discarded rather than failing every later call.
func (c *Client) loadLocked(ctx context.Context) error {
	raw, err := c.store.Get(ctx, c.storageKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.session, c.loaded = nil, true
		return nil
	case err != nil:
		return fmt.Errorf("identity: load session: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		c.log.Warn("discarding unreadable persisted session")
		_ = c.store.Remove(ctx, c.storageKey)
		c.session, c.loaded = nil, true
		return nil
	}

	c.session, c.loaded = &s, true
	return nil
}

func (c *Client) setSession(ctx context.Context, s *Session) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("identity: encode session: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Set(ctx, c.storageKey, string(b)); err != nil {
		return fmt.Errorf("identity: persist session: %w", err)
	}
	cp := *s
	c.session, c.loaded = &cp, true
	return nil
}

func (c *Client) clearSession(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Remove(ctx, c.storageKey); err != nil {
		return fmt.Errorf("identity: remove session: %w", err)
	}
	c.session, c.loaded = nil, true
	return nil
}
