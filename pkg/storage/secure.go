package storage

import (
	"context"
	"fmt"

	"github.com/aussiebroadwan/medrec/pkg/cryptox"
)

// Secure seals every value with a cryptox.Sealer before it reaches the inner
// Storage, and opens it on the way out. A value that fails authentication is
// reported as an error, never returned.
type Secure struct {
	inner  Storage
	sealer *cryptox.Sealer
}

func NewSecure(inner Storage, sealer *cryptox.Sealer) *Secure {
	return &Secure{inner: inner, sealer: sealer}
}

func (s *Secure) Get(ctx context.Context, key string) (string, error) {
	sealed, err := s.inner.Get(ctx, key)
	if err != nil {
		return "", err
	}

	v, err := s.sealer.OpenString(sealed)
	if err != nil {
		return "", fmt.Errorf("storage: open %q: %w", key, err)
	}
	return v, nil
}

func (s *Secure) Set(ctx context.Context, key, value string) error {
	sealed, err := s.sealer.SealString(value)
	if err != nil {
		return fmt.Errorf("storage: seal %q: %w", key, err)
	}
	return s.inner.Set(ctx, key, sealed)
}

func (s *Secure) Remove(ctx context.Context, key string) error {
	return s.inner.Remove(ctx, key)
}
