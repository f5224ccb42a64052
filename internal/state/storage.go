package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KeySession holds the serialized, sealed Session.
	KeySession = "auth"
	// KeySelectedStore holds the serialized Selected Store.
	KeySelectedStore = "store"
)

// ErrNoValue is returned by Storage when a key has never been written.
var ErrNoValue = errors.New("state: no value")

// Storage is the durable per-browser key/value store backing the context.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisStorage persists state under a per-browser key prefix.
type RedisStorage struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStorage returns storage rooted at "fixline:state".
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, prefix: "fixline:state", ttl: ttl}
}

// Scope returns storage isolated to one browser session id.
func (s *RedisStorage) Scope(id string) *RedisStorage {
	return &RedisStorage{client: s.client, prefix: s.prefix + ":" + id, ttl: s.ttl}
}

// Get implements Storage.
func (s *RedisStorage) Get(ctx context.Context, key string) ([]byte, error) {
	payload, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoValue
	}
	return payload, err
}

// Set implements Storage.
func (s *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

// Delete implements Storage.
func (s *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

func (s *RedisStorage) key(k string) string {
	return s.prefix + ":" + k
}

// MemoryStorage is an in-process Storage used by tests and tooling.
type MemoryStorage struct {
	mu     sync.Mutex
	values map[string][]byte
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{values: make(map[string][]byte)}
}

// Get implements Storage.
func (m *MemoryStorage) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return nil, ErrNoValue
	}
	return append([]byte(nil), v...), nil
}

// Set implements Storage.
func (m *MemoryStorage) Set(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements Storage.
func (m *MemoryStorage) Delete(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Has reports whether key currently holds a value.
func (m *MemoryStorage) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

var (
	_ Storage = (*RedisStorage)(nil)
	_ Storage = (*MemoryStorage)(nil)
)
