// Package router monta o roteador chi com middlewares e rotas do gateway.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/http/handlers"
	httpMiddleware "github.com/JeanGrijp/presence-gateway/internal/adapters/http/middleware"
	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
)

type Dependencies struct {
	Governor            ports.Governor
	Providers           map[domain.MediaKind]ports.MetadataProvider
	Gate                httpMiddleware.GateConfig
	DiscordClientID     string
	UnidentifiedIPLimit int
	// MetricsHandler defaults to promhttp.Handler().
	MetricsHandler http.Handler
}

func New(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(httpMiddleware.RequestID)
	r.Use(httpMiddleware.Metrics)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", httpMiddleware.ClientUUIDHeader, httpMiddleware.AppVersionHeader},
		MaxAge:         300,
	}))

	r.Get("/health", handlers.HealthHandler)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	// Every other path, unknown ones included, goes through the caller policy.
	// Routes match on path alone, whatever the method.
	floodGuard := httpMiddleware.NewUnidentifiedFloodGuard(deps.UnidentifiedIPLimit, time.Minute)
	gate := httpMiddleware.NewClientGate(deps.Governor, deps.Gate)
	notFound := floodGuard(gate(http.HandlerFunc(handlers.NotFoundHandler)))
	r.NotFound(notFound.ServeHTTP)
	r.MethodNotAllowed(notFound.ServeHTTP)

	metadata := handlers.NewMetadataHandler(deps.Providers)

	r.Group(func(r chi.Router) {
		r.Use(floodGuard, gate)

		r.HandleFunc("/api/metadata/music", metadata.Lookup(domain.MediaMusic))
		r.HandleFunc("/api/metadata/movie", metadata.Lookup(domain.MediaMovie))
		r.HandleFunc("/api/metadata/tv", metadata.Lookup(domain.MediaTV))
		r.HandleFunc("/api/metadata/book", metadata.Lookup(domain.MediaBook))
		r.HandleFunc("/api/config/discord-id", handlers.DiscordConfigHandler(deps.DiscordClientID, deps.Gate.LatestVersion))
	})

	return r
}
