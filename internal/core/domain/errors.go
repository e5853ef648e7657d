package domain

import "errors"

var (
	ErrTokenUnavailable    = errors.New("upstream token unavailable")
	ErrUpstream            = errors.New("upstream request failed")
	ErrUpstreamUnavailable = errors.New("upstream temporarily unavailable")
	ErrStoreContention     = errors.New("client state store contention")
)

// IsUnavailableError reports whether err should surface as a service-unavailable response.
func IsUnavailableError(err error) bool {
	return errors.Is(err, ErrTokenUnavailable) || errors.Is(err, ErrUpstreamUnavailable)
}
