// Package handlers agrupa os handlers HTTP do gateway.
package handlers

import (
	"net/http"

	json "github.com/goccy/go-json"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
)

// MetadataResponse is the normalized payload the desktop client renders.
// Line1 and Line2 are only used by update prompts.
type MetadataResponse struct {
	Found  bool   `json:"found"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Line1  string `json:"line1,omitempty"`
	Line2  string `json:"line2,omitempty"`
	Image  string `json:"image,omitempty"`
	URL    string `json:"url,omitempty"`
}

func NewMetadataResponse(m domain.Metadata) MetadataResponse {
	if !m.Found {
		return MetadataResponse{Found: false}
	}
	return MetadataResponse{
		Found:  true,
		Title:  m.Title,
		Artist: m.Artist,
		Album:  m.Album,
		Image:  m.Image,
		URL:    m.URL,
	}
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// NotFoundHandler answers every unmatched route.
func NotFoundHandler(w http.ResponseWriter, _ *http.Request) {
	WriteError(w, http.StatusNotFound, "Not Found")
}

func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
