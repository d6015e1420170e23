package drafts

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps drafts as plain string keys in Redis
type RedisStore struct {
	cli *redis.Client
}

// NewRedisStore wraps an existing client
func NewRedisStore(cli *redis.Client) *RedisStore {
	return &RedisStore{cli: cli}
}

// DialRedis connects to addr and checks the connection
func DialRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	cli := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := cli.Ping(ctx).Err(); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return &RedisStore{cli: cli}, nil
}

// Read implements Store
func (s *RedisStore) Read(ctx context.Context, key string) (string, bool, error) {
	out := s.cli.Get(ctx, key)
	if err := out.Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return out.Val(), true, nil
}

// Write implements Store
func (s *RedisStore) Write(ctx context.Context, key, value string) error {
	return s.cli.Set(ctx, key, value, 0).Err()
}

// Close closes the client
func (s *RedisStore) Close() error {
	return s.cli.Close()
}
