package mock

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/tillcache/till_sdk_go/internal/devseed"
)

const defaultLifespan = "default"

var (
	// ErrEmptyKey is returned when an operation receives an empty key.
	ErrEmptyKey = errors.New("mock till: key is required")
	// ErrUnknownLifespan is returned when a write names a lifespan the store does not define.
	ErrUnknownLifespan = errors.New("mock till: unknown lifespan")
)

// DefaultLifespans mirrors the single lifespan a stock Till install defines.
var DefaultLifespans = map[string]time.Duration{
	defaultLifespan: 24 * time.Hour,
}

type entry struct {
	value     string
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Mock implements an in-memory Till replacement with named lifespans.
type Mock struct {
	mu        sync.RWMutex
	items     map[string]*entry
	lifespans map[string]time.Duration
	now       func() time.Time
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used for lifespan bookkeeping (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithLifespans replaces the lifespan table. A zero duration never expires.
func WithLifespans(lifespans map[string]time.Duration) Option {
	return func(m *Mock) {
		if len(lifespans) == 0 {
			return
		}
		m.lifespans = make(map[string]time.Duration, len(lifespans))
		for name, d := range lifespans {
			m.lifespans[name] = d
		}
	}
}

// New creates an empty mock store.
func New(opts ...Option) *Mock {
	m := &Mock{
		items:     make(map[string]*entry),
		lifespans: make(map[string]time.Duration, len(DefaultLifespans)),
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for name, d := range DefaultLifespans {
		m.lifespans[name] = d
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Mock) clock() time.Time {
	if m.now == nil {
		return time.Now().UTC()
	}
	return m.now()
}

// Lifespan resolves a lifespan name to its duration. An empty name resolves
// to the default lifespan.
func (m *Mock) Lifespan(name string) (time.Duration, error) {
	if name == "" {
		name = defaultLifespan
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.lifespans[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLifespan, name)
	}
	return d, nil
}

// Seed loads initial items from seed entries (typically decoded via devseed.Load).
func (m *Mock) Seed(entries []devseed.Entry) error {
	for _, e := range entries {
		if err := m.Set(context.Background(), e.Key, e.Value, e.Lifespan); err != nil {
			return fmt.Errorf("mock till: seed %q: %w", e.Key, err)
		}
	}
	return nil
}

// Get returns the live value stored under key.
func (m *Mock) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ent, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if ent.expired(m.clock()) {
		delete(m.items, key)
		return "", false, nil
	}
	return ent.value, true, nil
}

// Set stores value under key using the named lifespan.
func (m *Mock) Set(ctx context.Context, key, value, lifespan string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	ttl, err := m.Lifespan(lifespan)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ent := &entry{value: value}
	if ttl > 0 {
		ent.expiresAt = m.clock().Add(ttl)
	}
	m.items[key] = ent
	return nil
}

// Delete removes key. Missing keys are not an error.
func (m *Mock) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Keys lists live keys in sorted order, purging expired entries on the way.
func (m *Mock) Keys(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock()
	keys := make([]string, 0, len(m.items))
	for key, ent := range m.items {
		if ent.expired(now) {
			delete(m.items, key)
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Backend adapts the mock to the till.Backend contract, answering with the
// status codes a Till server would send.
func (m *Mock) Backend() *Backend {
	return &Backend{store: m}
}

// Backend answers till.Backend calls from a Mock.
type Backend struct {
	store *Mock
}

func (b *Backend) Get(ctx context.Context, key string) (string, int, error) {
	if key == "" {
		return "", http.StatusBadRequest, nil
	}
	value, ok, err := b.store.Get(ctx, key)
	if err != nil {
		return "", 0, err
	}
	if !ok {
		return "", http.StatusNotFound, nil
	}
	return value, http.StatusOK, nil
}

func (b *Backend) Set(ctx context.Context, key, value, lifespan string) (int, error) {
	err := b.store.Set(ctx, key, value, lifespan)
	switch {
	case err == nil:
		return http.StatusCreated, nil
	case errors.Is(err, ErrEmptyKey), errors.Is(err, ErrUnknownLifespan):
		return http.StatusBadRequest, nil
	default:
		return 0, err
	}
}
