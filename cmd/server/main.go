package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/adapters/http/middleware"
	"github.com/JeanGrijp/presence-gateway/internal/adapters/http/router"
	memorystorage "github.com/JeanGrijp/presence-gateway/internal/adapters/storage/memory"
	redisstorage "github.com/JeanGrijp/presence-gateway/internal/adapters/storage/redis"
	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream"
	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream/googlebooks"
	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream/spotify"
	"github.com/JeanGrijp/presence-gateway/internal/adapters/upstream/tmdb"
	"github.com/JeanGrijp/presence-gateway/internal/config"
	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/core/services"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
)

const (
	sweepInterval = time.Minute
	statsInterval = 15 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Error().Err(err).Msg("failed to load config")
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storage, closeFn, err := initStorage(ctx, cfg)
	if err != nil {
		logging.Error().Err(err).Msg("failed to init storage")
		os.Exit(1)
	}
	defer closeFn()

	governor, err := services.NewGovernorService(storage, services.Config{
		Rule:     cfg.Governor.Rule(),
		FailOpen: cfg.Governor.FailOpen,
	})
	if err != nil {
		logging.Error().Err(err).Msg("failed to create governor")
		os.Exit(1)
	}

	handler := router.New(router.Dependencies{
		Governor:  governor,
		Providers: initProviders(cfg.Upstream),
		Gate: middleware.GateConfig{
			Mode:          cfg.Security.Mode,
			LatestVersion: cfg.Security.LatestClientVersion,
			UpdateURL:     cfg.Security.UpdateURL,
		},
		DiscordClientID:     cfg.Security.DiscordClientID,
		UnidentifiedIPLimit: cfg.Security.UnidentifiedIPLimit,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	rule := governor.Rule()
	logging.Info().
		Str("addr", srv.Addr).
		Str("mode", cfg.Security.Mode).
		Str("store", cfg.Storage.Type).
		Int("max_requests", rule.MaxRequests).
		Dur("window", rule.Window).
		Dur("ban_duration", rule.BanDuration).
		Msg("starting gateway")

	go publishStats(ctx, governor)

	errCh := make(chan error, 1)
	go func() {
		err := srv.ListenAndServe()
		if err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func initStorage(ctx context.Context, cfg config.Config) (ports.StateStore, func(), error) {
	switch cfg.Storage.Type {
	case config.StorageMemory:
		storage := memorystorage.New(memorystorage.Config{MaxClients: cfg.Governor.MaxClients})
		storage.OnEvict(func(identifier string) {
			logging.Warn().Str("uuid", identifier).Msg("client state evicted at capacity")
		})
		go sweep(ctx, storage)
		return storage, func() {}, nil
	case config.StorageRedis:
		redisCfg := redisstorage.Config{
			Addr:     fmt.Sprintf("%s:%d", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port),
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		}
		storage, err := redisstorage.New(redisCfg)
		if err != nil {
			return nil, nil, err
		}
		logging.Warn().Str("addr", redisCfg.Addr).Msg("governor state shared through redis; limits apply across all instances")
		return storage, func() {
			if err := storage.Close(); err != nil {
				logging.Error().Err(err).Msg("failed to close redis storage")
			}
		}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

// sweep drops idle client states from the memory store.
func sweep(ctx context.Context, storage *memorystorage.Storage) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := storage.Sweep(now); removed > 0 {
				logging.Debug().Int("removed", removed).Msg("swept idle client states")
			}
		}
	}
}

// publishStats refreshes the tracked client gauge for whichever store is in use.
func publishStats(ctx context.Context, governor *services.GovernorService) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := governor.Stats(ctx); err != nil {
				logging.Warn().Err(err).Msg("failed to collect governor stats")
			}
		}
	}
}

func initProviders(cfg config.UpstreamConfig) map[domain.MediaKind]ports.MetadataProvider {
	httpClient := upstream.NewHTTPClient(cfg.Timeout)

	spotifyClient := spotify.New(httpClient, spotify.Config{
		ClientID:     cfg.SpotifyClientID,
		ClientSecret: cfg.SpotifyClientSecret,
	})
	spotifyClient.UseTokens(services.NewTokenCache(spotifyClient, services.WithRefreshMargin(cfg.TokenRefreshMargin)))

	tmdbCfg := tmdb.Config{APIKey: cfg.TMDBAPIKey}
	breaker := upstream.BreakerConfig{}

	return map[domain.MediaKind]ports.MetadataProvider{
		domain.MediaMusic: upstream.WithBreaker("spotify", spotifyClient, breaker),
		domain.MediaMovie: upstream.WithBreaker("tmdb-movie", tmdb.New(httpClient, tmdbCfg, tmdb.Movie), breaker),
		domain.MediaTV:    upstream.WithBreaker("tmdb-tv", tmdb.New(httpClient, tmdbCfg, tmdb.TV), breaker),
		domain.MediaBook:  upstream.WithBreaker("google-books", googlebooks.New(httpClient, googlebooks.Config{APIKey: cfg.GoogleBooksAPIKey}), breaker),
	}
}
