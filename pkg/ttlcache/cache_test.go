package ttlcache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonny/chatbridge/pkg/ttlcache"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestCache_FreshHitAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	var calls atomic.Int32
	c := ttlcache.New(350*time.Second, func(_ context.Context, key string) (int, error) {
		return int(calls.Add(1)), nil
	}, ttlcache.WithClock(clock.Now))
	ctx := context.Background()

	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	clock.Advance(100 * time.Second)
	v, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, v, "entry within ttl must be served from cache")

	clock.Advance(400 * time.Second)
	v, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, v, "stale entry must be refetched")
	assert.Equal(t, int32(2), calls.Load())
}

func TestCache_ErrorsAreNotCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")
	c := ttlcache.New(time.Minute, func(_ context.Context, _ string) (string, error) {
		if calls.Add(1) == 1 {
			return "", boom
		}
		return "ok", nil
	})

	_, err := c.Get(context.Background(), "k")
	require.ErrorIs(t, err, boom)

	v, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestCache_ConcurrentRefreshSharesOneFetch(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := ttlcache.New(time.Minute, func(_ context.Context, _ string) (int, error) {
		calls.Add(1)
		<-release
		return 42, nil
	})

	const callers = 10
	var wg sync.WaitGroup
	results := make([]int, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k")
			if err == nil {
				results[i] = v
			}
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestCache_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := ttlcache.New(time.Minute, func(_ context.Context, _ string) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCache_PeekAndInvalidate(t *testing.T) {
	c := ttlcache.New(time.Minute, func(_ context.Context, key string) (string, error) {
		return "v-" + key, nil
	})

	_, ok := c.Peek("a")
	assert.False(t, ok)

	_, err := c.Get(context.Background(), "a")
	require.NoError(t, err)
	v, ok := c.Peek("a")
	assert.True(t, ok)
	assert.Equal(t, "v-a", v)

	c.Invalidate("a")
	_, ok = c.Peek("a")
	assert.False(t, ok)
}

func TestFresh(t *testing.T) {
	now := time.Unix(1000, 0)
	assert.False(t, ttlcache.Fresh(time.Time{}, now, time.Hour))
	assert.True(t, ttlcache.Fresh(now.Add(-time.Second), now, time.Minute))
	assert.False(t, ttlcache.Fresh(now.Add(-time.Minute), now, time.Minute))
}
