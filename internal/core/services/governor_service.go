package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
	"github.com/JeanGrijp/presence-gateway/internal/metrics"
)

const defaultRetryAfter = time.Second

// Config agrega os limites utilizados pelo governor.
type Config struct {
	Rule domain.GovernorRule
	// FailOpen admits requests when the state store cannot be consulted.
	// Otherwise they are rejected with RetryAfter.
	FailOpen   bool
	RetryAfter time.Duration
}

// GovernorService implementa a máquina de estados de contagem e banimento por cliente.
type GovernorService struct {
	store  ports.StateStore
	config Config
}

var _ ports.Governor = (*GovernorService)(nil)

// NewGovernorService cria uma nova instância do serviço.
func NewGovernorService(store ports.StateStore, cfg Config) (*GovernorService, error) {
	if store == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if cfg.Rule.MaxRequests <= 0 || cfg.Rule.Window <= 0 {
		return nil, fmt.Errorf("governor rule must have positive max requests and window")
	}
	if cfg.Rule.BanDuration < 0 {
		return nil, fmt.Errorf("governor ban duration must not be negative")
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = defaultRetryAfter
	}

	return &GovernorService{store: store, config: cfg}, nil
}

// Evaluate aplica uma requisição do cliente identificado no instante now.
// Nunca retorna erro: falhas do store viram Rejected ou Admit conforme FailOpen.
func (s *GovernorService) Evaluate(ctx context.Context, identifier string, now time.Time) domain.Decision {
	identifier = strings.TrimSpace(identifier)
	rule := s.config.Rule

	var decision domain.Decision
	err := s.store.Apply(ctx, identifier, now, func(state *domain.ClientState) time.Time {
		decision = state.Evaluate(now, rule)
		return state.RetainUntil(rule)
	})
	if err != nil {
		metrics.GovernorStoreErrors.Inc()
		logging.Ctx(ctx).Error().Err(err).Str("uuid", identifier).Bool("fail_open", s.config.FailOpen).Msg("governor state store failed")
		if s.config.FailOpen {
			decision = domain.Admit(identifier, 0)
		} else {
			decision = domain.Rejected(identifier, int((s.config.RetryAfter+time.Second-1)/time.Second))
		}
	}

	metrics.GovernorDecisions.WithLabelValues(decision.Kind.String()).Inc()

	switch {
	case decision.Escalated:
		metrics.GovernorBans.Inc()
		logging.Ctx(ctx).Warn().
			Str("uuid", identifier).
			Int("max_requests", rule.MaxRequests).
			Dur("window", rule.Window).
			Msg("[BANNING] client exceeded request limit")
	case decision.Kind == domain.DecisionBanned:
		logging.Ctx(ctx).Warn().
			Str("uuid", identifier).
			Int("remaining_seconds", decision.Seconds).
			Msg("[BLOCKED] client is banned")
	}

	return decision
}

// Rule returns the limits the governor enforces.
func (s *GovernorService) Rule() domain.GovernorRule {
	return s.config.Rule
}

// GovernorStats is a point-in-time view of the governor state.
type GovernorStats struct {
	TrackedClients int
}

// Stats counts the identifiers held by the state store and publishes the
// tracked clients gauge.
func (s *GovernorService) Stats(ctx context.Context) (GovernorStats, error) {
	n, err := s.store.Len(ctx)
	if err != nil {
		return GovernorStats{}, fmt.Errorf("count tracked clients: %w", err)
	}
	metrics.GovernorTrackedClients.Set(float64(n))
	return GovernorStats{TrackedClients: n}, nil
}
