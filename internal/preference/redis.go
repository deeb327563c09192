package preference

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps preferences as plain string keys
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a Store for userID backed by client. The Store owns
// client and closes it
func NewRedisStore(client *redis.Client, userID string) *RedisStore {
	return &RedisStore{
		client: client,
		key:    redisPrefix + ":" + userKey(userID) + ":" + Key,
	}
}

func (s *RedisStore) Minimized(ctx context.Context) (bool, error) {
	val, err := s.client.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return parseValue(val)
}

func (s *RedisStore) SetMinimized(ctx context.Context, minimized bool) error {
	return s.client.Set(ctx, s.key, strconv.FormatBool(minimized), 0).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
