package ratelimit_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/medrec/pkg/ratelimit"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newLimiter(t *testing.T) (*ratelimit.Limiter, *fakeClock, *ratelimit.MemoryStore) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := ratelimit.NewMemoryStore()
	l, err := ratelimit.New(store, ratelimit.WithClock(clock.Now))
	require.NoError(t, err)
	return l, clock, store
}

func TestLimiter_BudgetAndReset(t *testing.T) {
	l, _, _ := newLimiter(t)
	ctx := context.Background()

	for i := range 3 {
		ok, err := l.IsAllowed(ctx, "k", 3, time.Second)
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i+1)
	}

	ok, err := l.IsAllowed(ctx, "k", 3, time.Second)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, l.Reset(ctx, "k"))

	ok, err = l.IsAllowed(ctx, "k", 3, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, clock, _ := newLimiter(t)
	ctx := context.Background()

	ok, _ := l.IsAllowed(ctx, "k", 2, time.Minute)
	require.True(t, ok)
	clock.Advance(30 * time.Second)
	ok, _ = l.IsAllowed(ctx, "k", 2, time.Minute)
	require.True(t, ok)
	ok, _ = l.IsAllowed(ctx, "k", 2, time.Minute)
	require.False(t, ok)

	// First attempt ages out exactly at the window edge.
	clock.Advance(30 * time.Second)
	ok, _ = l.IsAllowed(ctx, "k", 2, time.Minute)
	require.True(t, ok)
	ok, _ = l.IsAllowed(ctx, "k", 2, time.Minute)
	require.False(t, ok)
}

func TestLimiter_RefusedAttemptsAreNotRecorded(t *testing.T) {
	l, clock, _ := newLimiter(t)
	ctx := context.Background()

	ok, _ := l.IsAllowed(ctx, "k", 1, time.Minute)
	require.True(t, ok)

	for range 10 {
		clock.Advance(time.Second)
		ok, _ = l.IsAllowed(ctx, "k", 1, time.Minute)
		require.False(t, ok)
	}

	// Only the first attempt counts, so the budget frees up one window after it.
	clock.Advance(time.Minute - 10*time.Second)
	ok, _ = l.IsAllowed(ctx, "k", 1, time.Minute)
	require.True(t, ok)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _, store := newLimiter(t)
	ctx := context.Background()

	ok, _ := l.IsAllowed(ctx, "a@example.com", 1, time.Minute)
	require.True(t, ok)
	ok, _ = l.IsAllowed(ctx, "b@example.com", 1, time.Minute)
	require.True(t, ok)
	ok, _ = l.IsAllowed(ctx, "a@example.com", 1, time.Minute)
	require.False(t, ok)

	require.Equal(t, 2, store.Len())
	require.NoError(t, l.Reset(ctx, "a@example.com"))
	require.Equal(t, 1, store.Len())
}

func TestLimiter_InvalidArguments(t *testing.T) {
	l, _, _ := newLimiter(t)
	ctx := context.Background()

	_, err := l.IsAllowed(ctx, "", 1, time.Second)
	require.ErrorIs(t, err, ratelimit.ErrKeyRequired)
	_, err = l.IsAllowed(ctx, "k", 0, time.Second)
	require.ErrorIs(t, err, ratelimit.ErrInvalidLimit)
	_, err = l.IsAllowed(ctx, "k", 1, 0)
	require.ErrorIs(t, err, ratelimit.ErrInvalidWindow)
	require.ErrorIs(t, l.Reset(ctx, ""), ratelimit.ErrKeyRequired)

	_, err = ratelimit.New(nil)
	require.ErrorIs(t, err, ratelimit.ErrStoreRequired)
}

func TestLimiter_ConcurrentCallersNeverOvershoot(t *testing.T) {
	l, _, _ := newLimiter(t)
	ctx := context.Background()

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.IsAllowed(ctx, "k", 5, time.Minute); ok {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(5), allowed.Load())
}
