package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
	"github.com/JeanGrijp/presence-gateway/internal/metrics"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func at(ms int) time.Time {
	return epoch.Add(time.Duration(ms) * time.Millisecond)
}

func TestGovernor_AdmitsWithinLimit(t *testing.T) {
	service := newTestGovernor(t, newMockStore(), Config{
		Rule: domain.GovernorRule{MaxRequests: 3, Window: time.Second, BanDuration: time.Minute},
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		decision := service.Evaluate(ctx, "11111111-2222-3333-4444-555555555555", at(i*10))
		require.True(t, decision.Allowed(), "request %d", i+1)
		assert.Equal(t, i+1, decision.CurrentCount)
	}
}

func TestGovernor_BansAfterExceedingLimit(t *testing.T) {
	store := newMockStore()
	service := newTestGovernor(t, store, Config{
		Rule: domain.GovernorRule{MaxRequests: 2, Window: time.Second, BanDuration: time.Minute},
	})

	ctx := context.Background()
	service.Evaluate(ctx, "client", at(0))
	service.Evaluate(ctx, "client", at(1))

	decision := service.Evaluate(ctx, "client", at(2))
	assert.Equal(t, domain.DecisionBanned, decision.Kind)
	assert.Equal(t, 60, decision.Seconds)
	assert.True(t, decision.Escalated)

	// Once banned, the next call is short-circuited without touching the window.
	decision = service.Evaluate(ctx, "client", at(3))
	assert.Equal(t, domain.DecisionBanned, decision.Kind)
	assert.False(t, decision.Escalated)
	assert.Equal(t, 3, store.states["client"].Count)
}

func TestGovernor_IdentifiersAreIndependent(t *testing.T) {
	service := newTestGovernor(t, newMockStore(), Config{
		Rule: domain.GovernorRule{MaxRequests: 1, Window: time.Second, BanDuration: time.Minute},
	})

	ctx := context.Background()
	service.Evaluate(ctx, "a", at(0))
	require.Equal(t, domain.DecisionBanned, service.Evaluate(ctx, "a", at(1)).Kind)
	assert.True(t, service.Evaluate(ctx, "b", at(2)).Allowed())
}

func TestGovernor_StoreFailureFailsClosed(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("connection refused")
	service := newTestGovernor(t, store, Config{
		Rule:       domain.DefaultGovernorRule(),
		RetryAfter: 1500 * time.Millisecond,
	})

	decision := service.Evaluate(context.Background(), "client", at(0))
	assert.Equal(t, domain.DecisionRejected, decision.Kind)
	assert.Equal(t, 2, decision.Seconds)
}

func TestGovernor_StoreFailureFailOpen(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("connection refused")
	service := newTestGovernor(t, store, Config{Rule: domain.DefaultGovernorRule(), FailOpen: true})

	assert.True(t, service.Evaluate(context.Background(), "client", at(0)).Allowed())
}

func TestGovernor_StatsAndRule(t *testing.T) {
	rule := domain.GovernorRule{MaxRequests: 5, Window: time.Second, BanDuration: time.Minute}
	service := newTestGovernor(t, newMockStore(), Config{Rule: rule})
	assert.Equal(t, rule, service.Rule())

	ctx := context.Background()
	service.Evaluate(ctx, "a", at(0))
	service.Evaluate(ctx, "b", at(1))
	service.Evaluate(ctx, "a", at(2))

	stats, err := service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TrackedClients)
	assert.Equal(t, float64(2), testutil.ToFloat64(metrics.GovernorTrackedClients))
}

func TestGovernor_StatsStoreFailure(t *testing.T) {
	store := newMockStore()
	store.err = errors.New("connection refused")
	service := newTestGovernor(t, store, Config{Rule: domain.DefaultGovernorRule()})

	_, err := service.Stats(context.Background())
	assert.Error(t, err)
}

func TestNewGovernorService_Validation(t *testing.T) {
	_, err := NewGovernorService(nil, Config{Rule: domain.DefaultGovernorRule()})
	assert.Error(t, err)

	_, err = NewGovernorService(newMockStore(), Config{Rule: domain.GovernorRule{Window: time.Second}})
	assert.Error(t, err)

	_, err = NewGovernorService(newMockStore(), Config{Rule: domain.GovernorRule{MaxRequests: 1, Window: time.Second, BanDuration: -1}})
	assert.Error(t, err)
}

func TestGovernor_ConcurrentEvaluationsAreSerialized(t *testing.T) {
	store := newMockStore()
	service := newTestGovernor(t, store, Config{
		Rule: domain.GovernorRule{MaxRequests: 1000, Window: time.Hour, BanDuration: time.Minute},
	})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				service.Evaluate(context.Background(), "shared", at(1))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 500, store.states["shared"].Count)
}

func TestGovernor_Properties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		// A ban longer than the window guarantees the window has elapsed once
		// the ban runs out, as with the default 1m window and 5m ban.
		windowMs := rapid.IntRange(1, 5000).Draw(t, "window")
		rule := domain.GovernorRule{
			MaxRequests: rapid.IntRange(1, 20).Draw(t, "max"),
			Window:      time.Duration(windowMs) * time.Millisecond,
			BanDuration: time.Duration(windowMs+rapid.IntRange(1, 10000).Draw(t, "extra")) * time.Millisecond,
		}
		store := newMockStore()
		service, err := NewGovernorService(store, Config{Rule: rule})
		if err != nil {
			t.Fatal(err)
		}
		ctx := context.Background()

		// Up to MaxRequests calls inside one window are all admitted.
		n := rapid.IntRange(1, rule.MaxRequests).Draw(t, "n")
		for i := 0; i < n; i++ {
			if d := service.Evaluate(ctx, "p", epoch); !d.Allowed() {
				t.Fatalf("call %d of %d not admitted: %+v", i+1, n, d)
			}
		}
		for i := n; i < rule.MaxRequests; i++ {
			service.Evaluate(ctx, "p", epoch)
		}

		d := service.Evaluate(ctx, "p", epoch)
		if d.Kind != domain.DecisionBanned || !d.Escalated {
			t.Fatalf("call %d should ban, got %+v", rule.MaxRequests+1, d)
		}
		banSeconds := int((rule.BanDuration + time.Second - 1) / time.Second)
		if d.Seconds != banSeconds {
			t.Fatalf("ban seconds = %d, want %d", d.Seconds, banSeconds)
		}

		// Remaining time never increases while banned.
		bannedUntil := epoch.Add(rule.BanDuration)
		last := d.Seconds
		now := epoch
		for _, step := range rapid.SliceOfN(rapid.IntRange(0, 1000), 0, 10).Draw(t, "steps") {
			now = now.Add(time.Duration(step) * time.Millisecond)
			if !now.Before(bannedUntil) {
				break
			}
			d := service.Evaluate(ctx, "p", now)
			if d.Kind != domain.DecisionBanned || d.Seconds > last {
				t.Fatalf("at %v: %+v after %d", now.Sub(epoch), d, last)
			}
			last = d.Seconds
		}

		// Another identifier is unaffected.
		if d := service.Evaluate(ctx, "other", epoch); !d.Allowed() || d.CurrentCount != 1 {
			t.Fatalf("independent identifier affected: %+v", d)
		}

		// The first call at or after bannedUntil opens a new window.
		d = service.Evaluate(ctx, "p", bannedUntil.Add(time.Duration(rapid.IntRange(0, 100).Draw(t, "late"))*time.Millisecond))
		if !d.Allowed() || d.CurrentCount != 1 {
			t.Fatalf("after ban: %+v", d)
		}
	})
}

// newTestGovernor is a helper that fails the test immediately if creation fails.
func newTestGovernor(t *testing.T, store *mockStore, cfg Config) *GovernorService {
	t.Helper()
	service, err := NewGovernorService(store, cfg)
	require.NoError(t, err, "failed to create governor service")
	return service
}

type mockStore struct {
	mu     sync.Mutex
	states map[string]domain.ClientState
	err    error
}

var _ ports.StateStore = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{states: make(map[string]domain.ClientState)}
}

func (m *mockStore) Apply(_ context.Context, identifier string, now time.Time, fn ports.ApplyFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return fmt.Errorf("apply %s: %w", identifier, m.err)
	}
	state, ok := m.states[identifier]
	if !ok {
		state = domain.NewClientState(identifier, now)
	}
	fn(&state)
	m.states[identifier] = state
	return nil
}

func (m *mockStore) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	return len(m.states), nil
}
