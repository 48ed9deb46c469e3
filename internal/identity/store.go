package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps codes in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{recs: make(map[string]Record)} }

func (m *MemoryStore) Put(_ context.Context, email string, rec Record) error {
	m.mu.Lock()
	m.recs[email] = rec
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, email string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[email]
	if !ok {
		return Record{}, ErrCodeNotFound
	}
	return rec, nil
}

func (m *MemoryStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	delete(m.recs, email)
	m.mu.Unlock()
	return nil
}

// RedisStore keeps codes in redis with a TTL matching their expiry, so
// several API replicas share them.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisStore returns a store using keys prefix:email.
func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &RedisStore{rdb: rdb, prefix: prefix}
}

func (r *RedisStore) key(email string) string { return r.prefix + ":" + email }

func (r *RedisStore) Put(ctx context.Context, email string, rec Record) error {
	ttl := time.Until(rec.ExpiresAt)
	if ttl <= 0 {
		return nil
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, r.key(email), b, ttl).Err()
}

func (r *RedisStore) Get(ctx context.Context, email string) (Record, error) {
	b, err := r.rdb.Get(ctx, r.key(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, ErrCodeNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("redis get: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return Record{}, fmt.Errorf("decode code record: %w", err)
	}
	return rec, nil
}

func (r *RedisStore) Delete(ctx context.Context, email string) error {
	return r.rdb.Del(ctx, r.key(email)).Err()
}
