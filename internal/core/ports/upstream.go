package ports

import (
	"context"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
)

// MetadataProvider looks up the best match for a free text query.
type MetadataProvider interface {
	Search(ctx context.Context, query string) (domain.Metadata, error)
}

// TokenFetcher obtains a fresh upstream credential and its lifetime.
type TokenFetcher interface {
	FetchToken(ctx context.Context) (token string, expiresIn time.Duration, err error)
}

// TokenSource hands out a valid upstream credential.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}
