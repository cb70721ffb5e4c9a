package theme

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists one mode per key. Get reports ok=false when nothing usable is
// stored.
type Store interface {
	Get(ctx context.Context, key string) (Mode, bool, error)
	Put(ctx context.Context, key string, m Mode) error
}

// MemoryStore keeps preferences for the life of the process.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]Mode
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{m: make(map[string]Mode)} }

func (s *MemoryStore) Get(_ context.Context, key string) (Mode, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.m[key]
	return m, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, m Mode) error {
	s.mu.Lock()
	s.m[key] = m
	s.mu.Unlock()
	return nil
}

// RedisKV is the part of a redis client the redis store needs.
type RedisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// RedisStore keeps preferences as plain string values. TTL zero means no
// expiry.
type RedisStore struct {
	rdb RedisKV
	ttl time.Duration
}

func NewRedisStore(rdb RedisKV, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Mode, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	m, ok := ParseMode(v)
	return m, ok, nil
}

func (s *RedisStore) Put(ctx context.Context, key string, m Mode) error {
	return s.rdb.Set(ctx, key, string(m), s.ttl).Err()
}

// PostgresStore keeps preferences in _map_prefs (see internal/migrate).
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore { return &PostgresStore{db: db} }

func (s *PostgresStore) Get(ctx context.Context, key string) (Mode, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM _map_prefs WHERE key=$1`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	m, ok := ParseMode(v)
	return m, ok, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, m Mode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO _map_prefs(key, value, updated_at) VALUES($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, updated_at=EXCLUDED.updated_at`,
		key, string(m))
	return err
}
