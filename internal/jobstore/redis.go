package jobstore

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "job:"

// RedisConfig points the store at a Redis instance.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// RedisStore keeps statuses in Redis so operators can inspect them with
// standard tooling. Same TTL rule as the memory store.
type RedisStore struct {
	client      *redis.Client
	terminalTTL time.Duration
}

func NewRedisStore(cfg RedisConfig, terminalTTL time.Duration) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis store requires an address")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisStore{client: client, terminalTTL: terminalTTL}, nil
}

func (s *RedisStore) SetStatus(ctx context.Context, jobID string, status Status) error {
	var ttl time.Duration
	if status.Terminal() {
		ttl = s.terminalTTL
	}
	if err := s.client.Set(ctx, redisKeyPrefix+jobID, string(status), ttl).Err(); err != nil {
		return fmt.Errorf("redis SET %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisStore) GetStatus(ctx context.Context, jobID string) Status {
	val, err := s.client.Get(ctx, redisKeyPrefix+jobID).Result()
	if err != nil {
		return StatusUnknown
	}
	return Status(val)
}
