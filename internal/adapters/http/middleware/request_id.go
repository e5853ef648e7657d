package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/JeanGrijp/presence-gateway/internal/logging"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates or generates a request id and attaches a logger carrying it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)

		ctx := logging.WithContext(r.Context(), map[string]string{"request_id": requestID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
