package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/http/handlers"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
	"github.com/JeanGrijp/presence-gateway/internal/metrics"
)

// NewUnidentifiedFloodGuard limits requests per real IP for clients that send no
// identifier. Identified clients pass straight through and are left to the
// governor. A non-positive limit disables the guard.
func NewUnidentifiedFloodGuard(limit int, window time.Duration) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	limiter := httprate.Limit(limit, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.GateOutcomes.WithLabelValues("unidentified_flood").Inc()
			logging.Ctx(r.Context()).Warn().Str("remote_addr", r.RemoteAddr).Msg("unidentified client flood limited")
			handlers.WriteError(w, http.StatusTooManyRequests, "Too many requests.")
		}),
	)

	return func(next http.Handler) http.Handler {
		limited := limiter(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ClientIdentifier(r) != "" {
				next.ServeHTTP(w, r)
				return
			}
			limited.ServeHTTP(w, r)
		})
	}
}
