// Package middleware disponibiliza middlewares HTTP específicos da aplicação.
package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/mod/semver"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/http/handlers"
	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
	"github.com/JeanGrijp/presence-gateway/internal/metrics"
)

const (
	ClientUUIDHeader = "X-Client-UUID"
	AppVersionHeader = "X-App-Version"

	// Unknown stands in for a missing identifier or version header.
	Unknown = "UNKNOWN"

	ModeStrict = "STRICT"

	configRoutePrefix = "/api/config/"

	defaultUnidentifiedImage = "https://malvinarum.com/plexrpc_update.png"
	defaultOutdatedImage     = "https://raw.githubusercontent.com/malvinarum/Plex-Rich-Presence/refs/heads/main/assets/icon.png"
)

type GateConfig struct {
	// Mode is LOG_ONLY or STRICT. Only STRICT enforces anything.
	Mode          string
	LatestVersion string
	UpdateURL     string
	// Images shown in the update prompt; defaults apply when empty.
	UnidentifiedImage string
	OutdatedImage     string
	Now               func() time.Time
}

// NewClientGate logs every request and, in STRICT mode, applies the caller policy
// around the governor:
//
//   - config routes are never gated;
//   - clients without an identifier get an update prompt and never reach the governor;
//   - identified clients are evaluated and get a 429 when banned or rejected;
//   - identified clients older than LatestVersion get an update prompt.
func NewClientGate(governor ports.Governor, cfg GateConfig) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.UnidentifiedImage == "" {
		cfg.UnidentifiedImage = defaultUnidentifiedImage
	}
	if cfg.OutdatedImage == "" {
		cfg.OutdatedImage = defaultOutdatedImage
	}
	strict := strings.EqualFold(cfg.Mode, ModeStrict)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			version := headerOrUnknown(r, AppVersionHeader)
			uuid := ClientIdentifier(r)
			if uuid == "" {
				uuid = Unknown
			}
			isConfigRoute := strings.HasPrefix(r.URL.Path, configRoutePrefix)

			logging.Ctx(r.Context()).Info().
				Str("mode", cfg.Mode).
				Str("path", r.URL.Path).
				Str("version", version).
				Str("uuid", uuid).
				Msg("request")

			if !strict || isConfigRoute {
				next.ServeHTTP(w, r)
				return
			}

			if uuid == Unknown {
				metrics.GateOutcomes.WithLabelValues("unidentified").Inc()
				handlers.WriteJSON(w, http.StatusOK, updatePrompt(cfg.LatestVersion, cfg.UnidentifiedImage, cfg.UpdateURL))
				return
			}

			if governor != nil {
				decision := governor.Evaluate(r.Context(), uuid, cfg.Now())
				if !decision.Allowed() {
					writeTooManyRequests(w, decision)
					return
				}
			}

			if version != Unknown && isOutdated(version, cfg.LatestVersion) {
				metrics.GateOutcomes.WithLabelValues("outdated").Inc()
				handlers.WriteJSON(w, http.StatusOK, updatePrompt(cfg.LatestVersion, cfg.OutdatedImage, cfg.UpdateURL))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIdentifier returns the trimmed client UUID header, or "" when absent.
func ClientIdentifier(r *http.Request) string {
	id := strings.TrimSpace(r.Header.Get(ClientUUIDHeader))
	if id == Unknown {
		return ""
	}
	return id
}

func headerOrUnknown(r *http.Request, name string) string {
	if v := strings.TrimSpace(r.Header.Get(name)); v != "" {
		return v
	}
	return Unknown
}

// isOutdated compares dotted numeric versions. Versions that do not parse are
// never considered outdated.
func isOutdated(version, latest string) bool {
	v := canonicalVersion(version)
	l := canonicalVersion(latest)
	if v == "" || l == "" {
		return false
	}
	return semver.Compare(v, l) < 0
}

func canonicalVersion(version string) string {
	v := strings.TrimSpace(version)
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return ""
	}
	return semver.Canonical(v)
}

func updatePrompt(latest, image, updateURL string) handlers.MetadataResponse {
	return handlers.MetadataResponse{
		Found: true,
		Title: fmt.Sprintf("Update to v%s", latest),
		Line1: "⚠️ Update Required",
		Line2: fmt.Sprintf("Please install v%s", latest),
		Image: image,
		URL:   updateURL,
	}
}

func writeTooManyRequests(w http.ResponseWriter, decision domain.Decision) {
	var message string
	switch {
	case decision.Kind == domain.DecisionRejected:
		message = fmt.Sprintf("Too many requests. Retry in %d seconds.", decision.Seconds)
	case decision.Escalated:
		message = fmt.Sprintf("Rate limit exceeded. You are banned for %s.", humanizeSeconds(decision.Seconds))
	default:
		message = fmt.Sprintf("Too many requests. You are banned for %d seconds.", decision.Seconds)
	}

	w.Header().Set("Retry-After", strconv.Itoa(decision.Seconds))
	handlers.WriteError(w, http.StatusTooManyRequests, message)
}

func humanizeSeconds(seconds int) string {
	switch {
	case seconds == 60:
		return "1 minute"
	case seconds > 0 && seconds%60 == 0:
		return fmt.Sprintf("%d minutes", seconds/60)
	case seconds == 1:
		return "1 second"
	default:
		return fmt.Sprintf("%d seconds", seconds)
	}
}
