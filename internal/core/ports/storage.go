// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
)

// ApplyFunc mutates a client state in place and returns the instant until which
// the store must retain it.
type ApplyFunc func(state *domain.ClientState) (retainUntil time.Time)

// StateStore owns the per-client governor state.
//
// Apply loads the state for identifier, or a fresh one created at now, runs fn
// and persists the result. Calls for the same identifier are serialized; fn may
// run more than once when the store retries an optimistic transaction.
type StateStore interface {
	Apply(ctx context.Context, identifier string, now time.Time, fn ApplyFunc) error
	Len(ctx context.Context) (int, error)
}
