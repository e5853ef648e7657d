// Package ports define contratos que conectam o domínio a implementações externas.
package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
)

// Governor decides whether a request from an identified client may proceed.
type Governor interface {
	Evaluate(ctx context.Context, identifier string, now time.Time) domain.Decision
}
