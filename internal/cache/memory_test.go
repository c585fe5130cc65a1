package cache

import (
	"context"
	"errors"
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
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func newTestCache(sweepEvery int) (*MemoryCache, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewMemoryCache(MemoryConfig{DefaultTTL: time.Minute, SweepEvery: sweepEvery, Clock: clock.Now}), clock
}

func TestMemoryCache_GetSet(t *testing.T) {
	c, _ := newTestCache(0)
	ctx := context.Background()

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	value := []byte("v1")
	require.NoError(t, c.Set(ctx, "k", value, 0))
	value[0] = 'x'

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	ok, err := c.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryCache_LazyExpiry(t *testing.T) {
	c, clock := newTestCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Second))
	clock.Advance(9 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_Sweep(t *testing.T) {
	c, clock := newTestCache(0)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "short", []byte("v"), time.Second))
	require.NoError(t, c.Set(ctx, "long", []byte("v"), time.Hour))
	clock.Advance(time.Minute)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 1, c.Sweep())
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_SweepOnWrite(t *testing.T) {
	c, clock := newTestCache(2)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", []byte("v"), time.Second))
	clock.Advance(time.Minute)
	require.NoError(t, c.Set(ctx, "b", []byte("v"), time.Hour))

	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_GetOrSet(t *testing.T) {
	c, clock := newTestCache(0)
	ctx := context.Background()
	calls := 0
	fn := func() ([]byte, error) {
		calls++
		return []byte("computed"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrSet(ctx, "k", time.Minute, fn)
		require.NoError(t, err)
		assert.Equal(t, []byte("computed"), v)
	}
	assert.Equal(t, 1, calls)

	clock.Advance(2 * time.Minute)
	_, err := c.GetOrSet(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	boom := errors.New("boom")
	_, err = c.GetOrSet(ctx, "other", time.Minute, func() ([]byte, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	ok, _ := c.Exists(ctx, "other")
	assert.False(t, ok)
}

func TestMemoryCache_Clear(t *testing.T) {
	c, _ := newTestCache(0)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", []byte("v"), 0))
	require.NoError(t, c.Set(ctx, "b", []byte("v"), 0))

	require.NoError(t, c.Clear(ctx))
	assert.Equal(t, 0, c.Len())
}
