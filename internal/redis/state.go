package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/overlay-relay/internal/config"
	"github.com/redis/go-redis/v9"
)

// StateStore keeps one JSON document per key in Redis
type StateStore struct {
	client *redis.Client
	logger *slog.Logger
}

// NewStateStore creates a new Redis-backed state store
func NewStateStore(cfg *config.RedisConfig, logger *slog.Logger) (*StateStore, error) {
	opts, err := clientOptions(cfg)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return NewStateStoreWithClient(client, logger), nil
}

// NewStateStoreWithClient wraps an existing client
func NewStateStoreWithClient(client *redis.Client, logger *slog.Logger) *StateStore {
	return &StateStore{
		client: client,
		logger: logger,
	}
}

func clientOptions(cfg *config.RedisConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.URL != "" {
		parsed, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parsing redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	return opts, nil
}

// Close closes the Redis connection
func (s *StateStore) Close() error {
	return s.client.Close()
}

// Get returns the value stored under key. found is false when the key has
// never been written.
func (s *StateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("getting %s: %w", key, err)
	}
	return data, true, nil
}

// Set overwrites the value under key. No expiry is applied.
func (s *StateStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("setting %s: %w", key, err)
	}
	return nil
}

// Ping checks connectivity
func (s *StateStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}
