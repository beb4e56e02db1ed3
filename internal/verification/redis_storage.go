package verification

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// deleteIfEqualScript удаляет ключ, только если он хранит ожидаемое значение.
const deleteIfEqualScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// incrScript увеличивает счетчик и выставляет TTL при его создании.
const incrScript = `
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n`

// RedisStorage хранит хеши кодов в Redis с истечением по TTL.
type RedisStorage struct {
	client redis.Cmdable
}

func NewRedisStorage(client redis.Cmdable) *RedisStorage {
	return &RedisStorage{client: client}
}

func (s *RedisStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err() //nolint:wrapcheck
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCodeNotFound
		}
		return "", err //nolint:wrapcheck
	}
	return value, nil
}

func (s *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err() //nolint:wrapcheck
}

func (s *RedisStorage) DeleteIfEqual(ctx context.Context, key, value string) (bool, error) {
	deleted, err := s.client.Eval(ctx, deleteIfEqualScript, []string{key}, value).Int64()
	if err != nil {
		return false, err //nolint:wrapcheck
	}
	return deleted == 1, nil
}

func (s *RedisStorage) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	return s.client.Eval(ctx, incrScript, []string{key}, ttl.Milliseconds()).Int64() //nolint:wrapcheck
}
