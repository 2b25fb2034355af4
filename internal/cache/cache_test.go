package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func TestCache_SetGetExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := New[string, int](0, WithClock(clock.Now))
	defer c.Close()

	c.Set(ctx, "a", 1, time.Minute)

	v, ok := c.Get(ctx, "a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	clock.Advance(59 * time.Second)
	_, ok = c.Get(ctx, "a")
	assert.True(t, ok)

	clock.Advance(time.Second)
	_, ok = c.Get(ctx, "a")
	assert.False(t, ok, "entry must be invalid once its age reaches the ttl")
}

func TestCache_DeleteFunc(t *testing.T) {
	ctx := context.Background()
	c := New[string, int](0)
	defer c.Close()

	c.Set(ctx, "x:mainnet", 1, time.Hour)
	c.Set(ctx, "y:mainnet", 2, time.Hour)
	c.Set(ctx, "x:polygon", 3, time.Hour)

	n := c.DeleteFunc(ctx, func(k string) bool { return strings.HasSuffix(k, ":mainnet") })
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, c.Len())

	_, ok := c.Get(ctx, "x:polygon")
	assert.True(t, ok)

	c.Clear(ctx)
	assert.Zero(t, c.Len())
}

func TestCache_EvictExpired(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := New[string, string](0, WithClock(clock.Now))
	defer c.Close()

	c.Set(ctx, "short", "v", time.Second)
	c.Set(ctx, "long", "v", time.Hour)
	clock.Advance(2 * time.Second)

	c.evictExpired()
	assert.Equal(t, 1, c.Len())
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	c := New[int, int](10 * time.Millisecond)
	c.Close()
	assert.NotPanics(t, c.Close)
}
