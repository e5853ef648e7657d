package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
)

type fakeFetcher struct {
	calls     atomic.Int32
	token     string
	expiresIn time.Duration
	err       error
	delay     time.Duration
}

func (f *fakeFetcher) FetchToken(_ context.Context) (string, time.Duration, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.token, f.expiresIn, f.err
}

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

func TestTokenCache_ReusesTokenUntilRefreshMargin(t *testing.T) {
	fetcher := &fakeFetcher{token: "tok-1", expiresIn: time.Hour}
	clock := &fakeClock{now: epoch}
	cache := NewTokenCache(fetcher, WithClock(clock.Now))

	ctx := context.Background()
	token, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)

	clock.Advance(54 * time.Minute)
	_, err = cache.Token(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, fetcher.calls.Load())

	// Inside the five minute margin the token is refreshed.
	clock.Advance(2 * time.Minute)
	fetcher.token = "tok-2"
	token, err = cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", token)
	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestTokenCache_CustomRefreshMargin(t *testing.T) {
	fetcher := &fakeFetcher{token: "tok-1", expiresIn: time.Hour}
	clock := &fakeClock{now: epoch}
	cache := NewTokenCache(fetcher, WithClock(clock.Now), WithRefreshMargin(time.Minute))

	ctx := context.Background()
	_, err := cache.Token(ctx)
	require.NoError(t, err)

	// 56 minutes in is past the default margin but outside a one minute one.
	clock.Advance(56 * time.Minute)
	token, err := cache.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", token)
	assert.EqualValues(t, 1, fetcher.calls.Load())

	clock.Advance(3 * time.Minute)
	_, err = cache.Token(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetcher.calls.Load())
}

func TestTokenCache_FailsClosed(t *testing.T) {
	fetcher := &fakeFetcher{err: errors.New("401 unauthorized")}
	cache := NewTokenCache(fetcher)

	token, err := cache.Token(context.Background())
	assert.Empty(t, token)
	assert.ErrorIs(t, err, domain.ErrTokenUnavailable)
}

func TestTokenCache_EmptyTokenIsFailure(t *testing.T) {
	cache := NewTokenCache(&fakeFetcher{expiresIn: time.Hour})

	_, err := cache.Token(context.Background())
	assert.ErrorIs(t, err, domain.ErrTokenUnavailable)
}

func TestTokenCache_SingleFlightRefresh(t *testing.T) {
	fetcher := &fakeFetcher{token: "tok", expiresIn: time.Hour, delay: 50 * time.Millisecond}
	cache := NewTokenCache(fetcher)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token, err := cache.Token(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", token)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, fetcher.calls.Load())
}
