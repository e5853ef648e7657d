// Package config centraliza o carregamento de configurações da aplicação.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
)

const (
	ModeLogOnly = "LOG_ONLY"
	ModeStrict  = "STRICT"

	StorageMemory = "memory"
	StorageRedis  = "redis"
)

type Config struct {
	Server   ServerConfig
	Security SecurityConfig
	Governor GovernorConfig
	Storage  StorageConfig
	Upstream UpstreamConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port string `validate:"required"`
}

type SecurityConfig struct {
	Mode                string `validate:"oneof=LOG_ONLY STRICT"`
	LatestClientVersion string `validate:"required"`
	UpdateURL           string `validate:"required,url"`
	DiscordClientID     string
	// UnidentifiedIPLimit caps requests per minute per IP for clients without an
	// identifier. Zero leaves them unlimited.
	UnidentifiedIPLimit int `validate:"gte=0"`
}

// GovernorConfig mirrors the recognized options windowMs, maxRequests and banDurationMs.
type GovernorConfig struct {
	WindowMs      int `validate:"gt=0"`
	MaxRequests   int `validate:"gt=0"`
	BanDurationMs int `validate:"gte=0"`
	MaxClients    int `validate:"gt=0"`
	FailOpen      bool
}

// Rule converts the millisecond options into a domain rule.
func (g GovernorConfig) Rule() domain.GovernorRule {
	return domain.GovernorRule{
		MaxRequests: g.MaxRequests,
		Window:      time.Duration(g.WindowMs) * time.Millisecond,
		BanDuration: time.Duration(g.BanDurationMs) * time.Millisecond,
	}
}

type StorageConfig struct {
	Type  string `validate:"oneof=memory redis"`
	Redis RedisConfig
}

type RedisConfig struct {
	Host     string
	Port     int `validate:"gt=0,lte=65535"`
	Password string
	DB       int `validate:"gte=0"`
}

type UpstreamConfig struct {
	SpotifyClientID     string
	SpotifyClientSecret string
	TMDBAPIKey          string
	GoogleBooksAPIKey   string
	Timeout             time.Duration `validate:"gt=0"`
	// TokenRefreshMargin is how long before expiry the Spotify token is renewed.
	TokenRefreshMargin  time.Duration `validate:"gte=0"`
}

type LogConfig struct {
	Level  string `validate:"oneof=trace debug info warn error"`
	Format string `validate:"oneof=json console"`
}

func Load() (Config, error) {
	_ = godotenv.Load()

	governor, err := buildGovernorConfig()
	if err != nil {
		return Config{}, err
	}

	redisConfig, err := buildRedisConfig()
	if err != nil {
		return Config{}, err
	}

	security, err := buildSecurityConfig()
	if err != nil {
		return Config{}, err
	}

	timeoutSeconds, err := getInt("UPSTREAM_TIMEOUT_SECONDS", 10)
	if err != nil {
		return Config{}, err
	}

	refreshMarginSeconds, err := getInt("UPSTREAM_TOKEN_REFRESH_MARGIN_SECONDS", 300)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server:   ServerConfig{Port: getEnv("SERVER_PORT", "8080")},
		Security: security,
		Governor: governor,
		Storage: StorageConfig{
			Type:  strings.ToLower(getEnv("GOVERNOR_STORE", StorageMemory)),
			Redis: redisConfig,
		},
		Upstream: UpstreamConfig{
			SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
			SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
			TMDBAPIKey:          os.Getenv("TMDB_API_KEY"),
			GoogleBooksAPIKey:   os.Getenv("GOOGLE_BOOKS_API_KEY"),
			Timeout:             time.Duration(timeoutSeconds) * time.Second,
			TokenRefreshMargin:  time.Duration(refreshMarginSeconds) * time.Second,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LOG_FORMAT", "json")),
		},
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildSecurityConfig() (SecurityConfig, error) {
	limit, err := getInt("UNIDENTIFIED_IP_LIMIT", 0)
	if err != nil {
		return SecurityConfig{}, err
	}

	return SecurityConfig{
		Mode:                strings.ToUpper(getEnv("SECURITY_MODE", ModeLogOnly)),
		LatestClientVersion: getEnv("LATEST_CLIENT_VERSION", "2.1.0"),
		UpdateURL:           getEnv("UPDATE_URL", "https://github.com/malvinarum/Plex-Rich-Presence/releases"),
		DiscordClientID:     os.Getenv("DISCORD_CLIENT_ID"),
		UnidentifiedIPLimit: limit,
	}, nil
}

func buildGovernorConfig() (GovernorConfig, error) {
	windowMs, err := getInt("GOVERNOR_WINDOW_MS", int(domain.DefaultWindow/time.Millisecond))
	if err != nil {
		return GovernorConfig{}, err
	}
	maxRequests, err := getInt("GOVERNOR_MAX_REQUESTS", domain.DefaultMaxRequests)
	if err != nil {
		return GovernorConfig{}, err
	}
	banDurationMs, err := getInt("GOVERNOR_BAN_DURATION_MS", int(domain.DefaultBanDuration/time.Millisecond))
	if err != nil {
		return GovernorConfig{}, err
	}
	maxClients, err := getInt("GOVERNOR_MAX_CLIENTS", 100_000)
	if err != nil {
		return GovernorConfig{}, err
	}
	failOpen, err := getBool("GOVERNOR_FAIL_OPEN", false)
	if err != nil {
		return GovernorConfig{}, err
	}

	return GovernorConfig{
		WindowMs:      windowMs,
		MaxRequests:   maxRequests,
		BanDurationMs: banDurationMs,
		MaxClients:    maxClients,
		FailOpen:      failOpen,
	}, nil
}

func buildRedisConfig() (RedisConfig, error) {
	port, err := getInt("REDIS_PORT", 6379)
	if err != nil {
		return RedisConfig{}, err
	}
	db, err := getInt("REDIS_DB", 0)
	if err != nil {
		return RedisConfig{}, err
	}

	return RedisConfig{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     port,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	}, nil
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) (int, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func getBool(key string, fallback bool) (bool, error) {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
