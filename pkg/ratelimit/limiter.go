package ratelimit

import (
	"context"
	"time"
)

// Store is the attempt ledger backing a Limiter.
type Store interface {
	// RecordIfAllowed prunes timestamps at or before now-window, then records
	// now and returns true if fewer than limit remain. It returns false and
	// records nothing otherwise. The check and the record are atomic.
	RecordIfAllowed(ctx context.Context, key string, now time.Time, window time.Duration, limit int) (bool, error)

	// Delete forgets every attempt recorded under key.
	Delete(ctx context.Context, key string) error
}

// Limiter gates attempts per key against a Store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New creates a Limiter over store.
func New(store Store, opts ...Option) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}

	l := &Limiter{store: store, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// IsAllowed reports whether another attempt under key fits in the trailing
// window and, if so, records it.
func (l *Limiter) IsAllowed(ctx context.Context, key string, maxAttempts int, window time.Duration) (bool, error) {
	if key == "" {
		return false, ErrKeyRequired
	}
	if maxAttempts <= 0 {
		return false, ErrInvalidLimit
	}
	if window <= 0 {
		return false, ErrInvalidWindow
	}

	return l.store.RecordIfAllowed(ctx, key, l.now(), window, maxAttempts)
}

// Reset clears every attempt recorded for key.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if key == "" {
		return ErrKeyRequired
	}
	return l.store.Delete(ctx, key)
}
