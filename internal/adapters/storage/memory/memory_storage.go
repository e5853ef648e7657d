// Package memory disponibiliza o storage em memória do processo, com capacidade limitada.
package memory

import (
	"container/list"
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/core/ports"
)

const (
	DefaultStripes    = 64
	DefaultMaxClients = 100_000
)

type Config struct {
	// MaxClients caps the number of tracked identifiers. Least recently seen
	// identifiers are evicted first once the cap is reached.
	MaxClients int
	Stripes    int
}

type entry struct {
	state       domain.ClientState
	retainUntil time.Time
}

// stripe serializes every identifier hashed to it and keeps them in LRU order.
type stripe struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	order    *list.List // front is most recently seen
	capacity int
}

type Storage struct {
	stripes []*stripe
	onEvict func(identifier string)
}

var _ ports.StateStore = (*Storage)(nil)

func New(cfg Config) *Storage {
	if cfg.Stripes <= 0 {
		cfg.Stripes = DefaultStripes
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.Stripes > cfg.MaxClients {
		cfg.Stripes = cfg.MaxClients
	}

	perStripe := (cfg.MaxClients + cfg.Stripes - 1) / cfg.Stripes
	s := &Storage{stripes: make([]*stripe, cfg.Stripes)}
	for i := range s.stripes {
		s.stripes[i] = &stripe{
			items:    make(map[string]*list.Element),
			order:    list.New(),
			capacity: perStripe,
		}
	}
	return s
}

// OnEvict registers a callback invoked when a live state is dropped for capacity.
func (s *Storage) OnEvict(fn func(identifier string)) {
	s.onEvict = fn
}

func (s *Storage) Apply(_ context.Context, identifier string, now time.Time, fn ports.ApplyFunc) error {
	st := s.stripeFor(identifier)
	st.mu.Lock()
	defer st.mu.Unlock()

	var e *entry
	if el, ok := st.items[identifier]; ok {
		e = el.Value.(*entry)
		if now.After(e.retainUntil) {
			e.state = domain.NewClientState(identifier, now)
		}
		st.order.MoveToFront(el)
	} else {
		e = &entry{state: domain.NewClientState(identifier, now)}
		st.items[identifier] = st.order.PushFront(e)
	}

	e.retainUntil = fn(&e.state)

	for st.order.Len() > st.capacity {
		oldest := st.order.Back()
		victim := oldest.Value.(*entry)
		st.order.Remove(oldest)
		delete(st.items, victim.state.Identifier)
		if s.onEvict != nil && !now.After(victim.retainUntil) {
			s.onEvict(victim.state.Identifier)
		}
	}
	return nil
}

// Sweep drops every state that no longer affects future decisions and returns
// how many were removed.
func (s *Storage) Sweep(now time.Time) int {
	removed := 0
	for _, st := range s.stripes {
		st.mu.Lock()
		for id, el := range st.items {
			if now.After(el.Value.(*entry).retainUntil) {
				st.order.Remove(el)
				delete(st.items, id)
				removed++
			}
		}
		st.mu.Unlock()
	}
	return removed
}

func (s *Storage) Len(_ context.Context) (int, error) {
	n := 0
	for _, st := range s.stripes {
		st.mu.Lock()
		n += len(st.items)
		st.mu.Unlock()
	}
	return n, nil
}

// Get returns a copy of the stored state, for inspection.
func (s *Storage) Get(identifier string) (domain.ClientState, bool) {
	st := s.stripeFor(identifier)
	st.mu.Lock()
	defer st.mu.Unlock()
	el, ok := st.items[identifier]
	if !ok {
		return domain.ClientState{}, false
	}
	return el.Value.(*entry).state, true
}

func (s *Storage) stripeFor(identifier string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(identifier))
	return s.stripes[h.Sum32()%uint32(len(s.stripes))]
}
