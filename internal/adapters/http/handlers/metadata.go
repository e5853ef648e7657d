package handlers

import (
	"net/http"
	"strings"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
)

// MetadataHandler dispatches lookups to the provider registered for each media kind.
type MetadataHandler struct {
	providers map[domain.MediaKind]ports.MetadataProvider
}

func NewMetadataHandler(providers map[domain.MediaKind]ports.MetadataProvider) *MetadataHandler {
	return &MetadataHandler{providers: providers}
}

// Lookup serves GET /api/metadata/{kind}?q=...
//
// Music requires a query; the other kinds answer found=false without one.
func (h *MetadataHandler) Lookup(kind domain.MediaKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := strings.TrimSpace(r.URL.Query().Get("q"))
		if query == "" {
			if kind == domain.MediaMusic {
				WriteError(w, http.StatusBadRequest, "No query provided")
				return
			}
			WriteJSON(w, http.StatusOK, MetadataResponse{Found: false})
			return
		}

		provider, ok := h.providers[kind]
		if !ok {
			WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
			return
		}

		result, err := provider.Search(r.Context(), query)
		if err != nil {
			logging.Ctx(r.Context()).Error().Err(err).Str("kind", string(kind)).Str("query", query).Msg("metadata lookup failed")
			if domain.IsUnavailableError(err) {
				WriteError(w, http.StatusServiceUnavailable, "Service unavailable")
				return
			}
			WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}

		WriteJSON(w, http.StatusOK, NewMetadataResponse(result))
	}
}
