package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned by Load when no session is stored.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps Redis transport failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// Store persists the client's current session.
//
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	sess *Session
}

// NewMemoryStore returns an empty [MemoryStore].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load returns a copy of the stored session or [ErrNotFound].
func (m *MemoryStore) Load(context.Context) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.sess == nil {
		return nil, ErrNotFound
	}
	return m.sess.Clone(), nil
}

// Save replaces the stored session with a copy of sess.
func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	if sess == nil {
		return errors.New("nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = sess.Clone()
	return nil
}

// Clear drops the stored session. Clearing an empty store is not an error.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}

// RedisStore keeps the session in Redis under prefix:name.
type RedisStore struct {
	redis redis.UniversalClient
	key   string
	ttl   time.Duration
}

// NewRedisStore returns a [RedisStore] for the named session slot. A ttl of zero
// keeps the key until it is cleared.
//
//	Performance: one Redis command per operation.
func NewRedisStore(rdb redis.UniversalClient, prefix, name string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		redis: rdb,
		key:   slotKey(prefix, name, "session"),
		ttl:   ttl,
	}
}

func slotKey(prefix, name, kind string) string {
	if prefix == "" {
		prefix = "taskdesk"
	}
	if name == "" {
		name = "default"
	}
	return prefix + ":" + kind + ":" + name
}

// Load fetches and decodes the stored session.
func (s *RedisStore) Load(ctx context.Context) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Decode(data)
}

// Save encodes sess and writes it with the store TTL.
func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	data, err := Encode(sess)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Clear deletes the stored session. Deleting a missing key is not an error.
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
