// Package redis disponibiliza a implementação do storage baseada em Redis.
//
// Com este storage o limite passa a ser global entre instâncias, e não mais por instância.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
)

const (
	keyPrefix         = "governor:client:"
	fieldCount        = "count"
	fieldWindowStart  = "window_start_ms"
	fieldBannedUntil  = "banned_until_ms"
	defaultMaxRetries = 10
)

type Storage struct {
	client     redis.UniversalClient
	maxRetries int
}

var _ ports.StateStore = (*Storage)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	// MaxRetries bounds optimistic transaction retries under contention on one identifier.
	MaxRetries int
}

func New(cfg Config) (*Storage, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewWithClient(client, cfg.MaxRetries), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client redis.UniversalClient, maxRetries int) *Storage {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Storage{client: client, maxRetries: maxRetries}
}

func (s *Storage) Close() error {
	return s.client.Close()
}

// Apply runs fn inside a WATCH/MULTI transaction on the identifier's hash so
// concurrent gateways never lose an update for the same client.
func (s *Storage) Apply(ctx context.Context, identifier string, now time.Time, fn ports.ApplyFunc) error {
	key := buildKey(identifier)

	txf := func(tx *redis.Tx) error {
		values, err := tx.HGetAll(ctx, key).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		state, err := decodeState(identifier, values, now)
		if err != nil {
			return err
		}

		retainUntil := fn(&state)
		ttl := retainUntil.Sub(now) + time.Millisecond
		if ttl < time.Millisecond {
			ttl = time.Millisecond
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key,
				fieldCount, state.Count,
				fieldWindowStart, toMillis(state.WindowStart),
				fieldBannedUntil, toMillis(state.BannedUntil),
			)
			pipe.PExpire(ctx, key, ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("%w: %s", domain.ErrStoreContention, identifier)
}

// Len counts tracked identifiers with SCAN; it is linear in the keyspace.
func (s *Storage) Len(ctx context.Context) (int, error) {
	n := 0
	iter := s.client.Scan(ctx, 0, keyPrefix+"*", 1000).Iterator()
	for iter.Next(ctx) {
		n++
	}
	if err := iter.Err(); err != nil {
		return 0, err
	}
	return n, nil
}

func buildKey(identifier string) string {
	return keyPrefix + strings.TrimSpace(identifier)
}

func decodeState(identifier string, values map[string]string, now time.Time) (domain.ClientState, error) {
	if len(values) == 0 {
		return domain.NewClientState(identifier, now), nil
	}

	count, err := strconv.Atoi(values[fieldCount])
	if err != nil {
		return domain.ClientState{}, fmt.Errorf("invalid %s for %s: %w", fieldCount, identifier, err)
	}
	windowStart, err := strconv.ParseInt(values[fieldWindowStart], 10, 64)
	if err != nil {
		return domain.ClientState{}, fmt.Errorf("invalid %s for %s: %w", fieldWindowStart, identifier, err)
	}
	bannedUntil, err := strconv.ParseInt(values[fieldBannedUntil], 10, 64)
	if err != nil {
		return domain.ClientState{}, fmt.Errorf("invalid %s for %s: %w", fieldBannedUntil, identifier, err)
	}

	return domain.ClientState{
		Identifier:  identifier,
		Count:       count,
		WindowStart: fromMillis(windowStart),
		BannedUntil: fromMillis(bannedUntil),
	}, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
