package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
	"github.com/JeanGrijp/presence-gateway/internal/metrics"
)

// DefaultRefreshMargin is how long before expiry a cached token is replaced.
const DefaultRefreshMargin = 5 * time.Minute

// TokenCache guarda uma única credencial upstream e a renova antes de expirar.
// Renovações concorrentes são agrupadas em uma só chamada ao provedor.
type TokenCache struct {
	fetcher ports.TokenFetcher
	margin  time.Duration
	now     func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

var _ ports.TokenSource = (*TokenCache)(nil)

type TokenCacheOption func(*TokenCache)

func WithRefreshMargin(d time.Duration) TokenCacheOption {
	return func(c *TokenCache) { c.margin = d }
}

func WithClock(now func() time.Time) TokenCacheOption {
	return func(c *TokenCache) { c.now = now }
}

func NewTokenCache(fetcher ports.TokenFetcher, opts ...TokenCacheOption) *TokenCache {
	c := &TokenCache{
		fetcher: fetcher,
		margin:  DefaultRefreshMargin,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached credential, refreshing it when absent or close to expiry.
// Failures are reported as domain.ErrTokenUnavailable and leave the cache untouched.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	v, err, _ := c.group.Do("token", func() (interface{}, error) {
		// Another flight may have refreshed while we waited on the group.
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	return c.token, c.now().Before(c.expiresAt.Add(-c.margin))
}

func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	token, expiresIn, err := c.fetcher.FetchToken(ctx)
	if err == nil && token == "" {
		err = fmt.Errorf("empty access token")
	}
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		logging.Ctx(ctx).Error().Err(err).Msg("upstream auth failed")
		return "", fmt.Errorf("%w: %v", domain.ErrTokenUnavailable, err)
	}

	c.mu.Lock()
	c.token = token
	c.expiresAt = c.now().Add(expiresIn)
	c.mu.Unlock()

	metrics.TokenRefreshes.WithLabelValues("success").Inc()
	logging.Ctx(ctx).Debug().Dur("expires_in", expiresIn).Msg("upstream token refreshed")
	return token, nil
}
