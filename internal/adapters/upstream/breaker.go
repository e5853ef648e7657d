package upstream

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
	"github.com/JeanGrijp/presence-gateway/internal/metrics"
)

type BreakerConfig struct {
	// ConsecutiveFailures opens the circuit. Default 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the circuit stays open before probing. Default 30s.
	OpenTimeout time.Duration
	// Interval clears closed-state counts. Default 1m.
	Interval time.Duration
}

// BreakerProvider guards a MetadataProvider with a circuit breaker so a failing
// upstream is not hammered by every client request.
type BreakerProvider struct {
	name string
	next ports.MetadataProvider
	cb   *gobreaker.CircuitBreaker[domain.Metadata]
}

var _ ports.MetadataProvider = (*BreakerProvider)(nil)

func WithBreaker(name string, next ports.MetadataProvider, cfg BreakerConfig) *BreakerProvider {
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	metrics.UpstreamBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[domain.Metadata](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		// Caller cancellations say nothing about upstream health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("provider", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state transition")
			metrics.UpstreamBreakerState.WithLabelValues(name).Set(stateValue(to))
		},
	})

	return &BreakerProvider{name: name, next: next, cb: cb}
}

func (p *BreakerProvider) Search(ctx context.Context, query string) (domain.Metadata, error) {
	result, err := p.cb.Execute(func() (domain.Metadata, error) {
		return p.next.Search(ctx, query)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.UpstreamRequests.WithLabelValues(p.name, "rejected").Inc()
			return domain.Metadata{}, fmt.Errorf("%w: %s: %v", domain.ErrUpstreamUnavailable, p.name, err)
		}
		metrics.UpstreamRequests.WithLabelValues(p.name, "failure").Inc()
		return domain.Metadata{}, err
	}

	metrics.UpstreamRequests.WithLabelValues(p.name, "success").Inc()
	return result, nil
}

// State exposes the breaker state, mostly for tests.
func (p *BreakerProvider) State() gobreaker.State {
	return p.cb.State()
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
