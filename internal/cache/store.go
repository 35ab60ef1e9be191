// Package cache implements the read-through cache shared by the
// membership resolver and the business services.  Entries are never
// updated in place: a mutation deletes every key it could have staled and
// the next read repopulates from the database.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/taskflow/internal/config"
)

// Store is the key-value boundary behind the Layer.  Index operations
// group keys that must be dropped together, such as every page of one
// user's project listing.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int, error)
	Track(ctx context.Context, index, key string, ttl time.Duration) error
	Members(ctx context.Context, index string) ([]string, error)
}

// NewStore picks the backend named by cfg.  It returns nil when caching is
// disabled or Redis is selected but rdb is nil, which makes the Layer read
// straight through to the loader.
func NewStore(cfg config.CacheConfig, rdb *redis.Client) Store {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Backend == "memory" {
		return NewMemoryStore()
	}
	if rdb == nil {
		return nil
	}
	return NewRedisStore(rdb)
}

// RedisStore keeps entries as plain strings and indexes as sets.
type RedisStore struct{ rdb redis.Cmdable }

func NewRedisStore(rdb redis.Cmdable) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, val, ttl).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := s.rdb.Del(ctx, keys...).Result()
	return int(n), err
}

// Track adds key to the index set and pushes the set's expiry out to ttl,
// so an index never outlives the newest entry it lists.
func (s *RedisStore) Track(ctx context.Context, index, key string, ttl time.Duration) error {
	if err := s.rdb.SAdd(ctx, index, key).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, index, ttl).Err()
}

func (s *RedisStore) Members(ctx context.Context, index string) ([]string, error) {
	return s.rdb.SMembers(ctx, index).Result()
}

// MemoryStore is an in-process Store for single-instance deployments and
// tests.  Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	indexes map[string]map[string]struct{}
	now     func() time.Time
}

type memEntry struct {
	val []byte
	exp time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memEntry),
		indexes: make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && !s.now().Before(e.exp) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.val...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memEntry{val: append([]byte(nil), val...)}
	if ttl > 0 {
		e.exp = s.now().Add(ttl)
	}
	s.entries[key] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := s.entries[k]; ok {
			delete(s.entries, k)
			n++
		}
		if _, ok := s.indexes[k]; ok {
			delete(s.indexes, k)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Track(_ context.Context, index, key string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, ok := s.indexes[index]
	if !ok {
		set = make(map[string]struct{})
		s.indexes[index] = set
	}
	set[key] = struct{}{}
	return nil
}

func (s *MemoryStore) Members(_ context.Context, index string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.indexes[index]))
	for k := range s.indexes[index] {
		out = append(out, k)
	}
	return out, nil
}

// Len reports the number of live entries.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
