package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/boijelux-1st/doublea/internal/cache"
	"github.com/boijelux-1st/doublea/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	statusInProgress = "IN_PROGRESS"
	statusCompleted  = "COMPLETED"

	// A crashed call must not hold its key forever.
	inProgressExpiry = 30 * time.Second
	completedExpiry  = 24 * time.Hour
)

// Store deduplicates purchase references and webhook event ids. Begin claims
// a key; a false return means the key is already claimed or completed and the
// caller must not process it again.
type Store interface {
	Begin(ctx context.Context, key string) (bool, error)
	Complete(ctx context.Context, key string) error
	Release(ctx context.Context, key string) error
}

// RedisStore backs idempotency keys with Redis so deduplication holds across
// replicas.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(cfg config.Config) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
	}
}

func (s *RedisStore) Begin(ctx context.Context, key string) (bool, error) {
	status, err := s.client.Get(ctx, key).Result()
	if err == nil && status == statusCompleted {
		return false, nil
	}

	set, err := s.client.SetNX(ctx, key, statusInProgress, inProgressExpiry).Result()
	if err != nil {
		return false, fmt.Errorf("redis SETNX: %w", err)
	}
	return set, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string) error {
	return s.client.Set(ctx, key, statusCompleted, completedExpiry).Err()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, key).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// MemoryStore is the single-node fallback used when no Redis address is
// configured. Tests run against it.
type MemoryStore struct {
	entries *cache.TTLCache[string, string]
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: cache.NewTTLCache[string, string]()}
}

func (s *MemoryStore) Begin(_ context.Context, key string) (bool, error) {
	if _, ok := s.entries.Get(key); ok {
		return false, nil
	}
	s.entries.Set(key, statusInProgress, inProgressExpiry)
	return true, nil
}

func (s *MemoryStore) Complete(_ context.Context, key string) error {
	s.entries.Set(key, statusCompleted, completedExpiry)
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.entries.Delete(key)
	return nil
}

// New picks the Redis store when an address is configured, otherwise the
// in-process fallback.
func New(cfg config.Config, log *zap.Logger) Store {
	if cfg.RedisAddr == "" {
		log.Info("idempotency store using in-process fallback")
		return NewMemoryStore()
	}
	store := NewRedisStore(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Warn("redis unreachable at startup, keeping redis store", zap.Error(err))
	}
	return store
}

var Module = fx.Module("idempotency",
	fx.Provide(New),
)
