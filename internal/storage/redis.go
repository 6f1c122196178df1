package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps each document under prefix+name.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger *zerolog.Logger
}

func NewRedisStore(rdb *redis.Client, prefix string, logger *zerolog.Logger) *RedisStore {
	if prefix == "" {
		prefix = "barbearia:"
	}
	return &RedisStore{rdb: rdb, prefix: prefix, logger: logger}
}

func (s *RedisStore) key(name string) string {
	return s.prefix + name
}

func (s *RedisStore) Load(ctx context.Context, name string) ([]byte, error) {
	body, err := s.rdb.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	return body, nil
}

func (s *RedisStore) Save(ctx context.Context, name string, body []byte) error {
	if err := s.rdb.Set(ctx, s.key(name), body, 0).Err(); err != nil {
		return fmt.Errorf("save %s: %w", name, err)
	}
	s.logger.Debug().Str("key", s.key(name)).Int("bytes", len(body)).Msg("Document saved")
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
