package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/tillcache/till_sdk_go/pkg/till/mock"
)

// memcache treats expirations above 30 days as absolute unix timestamps.
const maxRelativeExpiration = 30 * 24 * time.Hour

// MemcacheStore keeps sandbox objects in memcached instead of process memory,
// so several sandbox instances can share one dataset.
type MemcacheStore struct {
	mc        *memcache.Client
	lifespans map[string]time.Duration
	now       func() time.Time
}

// NewMemcacheStore connects to the given memcached servers. A nil or empty
// lifespan table falls back to mock.DefaultLifespans.
func NewMemcacheStore(lifespans map[string]time.Duration, servers ...string) *MemcacheStore {
	if len(lifespans) == 0 {
		lifespans = mock.DefaultLifespans
	}
	return &MemcacheStore{
		mc:        memcache.New(servers...),
		lifespans: lifespans,
		now:       time.Now,
	}
}

// Get fetches key from memcached.
func (s *MemcacheStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, mock.ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	item, err := s.mc.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("sandbox: memcache get: %w", err)
	}
	return string(item.Value), true, nil
}

// Set writes key to memcached with the expiration of the named lifespan.
func (s *MemcacheStore) Set(ctx context.Context, key, value, lifespan string) error {
	if key == "" {
		return mock.ErrEmptyKey
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	exp, err := s.expiration(lifespan)
	if err != nil {
		return err
	}
	err = s.mc.Set(&memcache.Item{Key: key, Value: []byte(value), Expiration: exp})
	if err != nil {
		return fmt.Errorf("sandbox: memcache set: %w", err)
	}
	return nil
}

// Ping checks that every configured memcached server answers.
func (s *MemcacheStore) Ping() error {
	return s.mc.Ping()
}

func (s *MemcacheStore) expiration(lifespan string) (int32, error) {
	if lifespan == "" {
		lifespan = "default"
	}
	d, ok := s.lifespans[lifespan]
	if !ok {
		return 0, fmt.Errorf("%w: %q", mock.ErrUnknownLifespan, lifespan)
	}
	return memcacheExpiration(d, s.now()), nil
}

func memcacheExpiration(d time.Duration, now time.Time) int32 {
	if d <= 0 {
		return 0
	}
	if d > maxRelativeExpiration {
		return int32(now.Add(d).Unix())
	}
	secs := int32(d / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
