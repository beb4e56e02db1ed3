package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "lock:"

var ErrNotHeld = errors.New("lock is not held")

// releaseScript удаляет ключ, только если он все еще принадлежит владельцу токена.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLock распределенная блокировка на основе SET NX PX. Каждый захват получает свой токен, поэтому
// освободить блокировку может только ее владелец, даже если TTL истек и ключ захватил другой экземпляр.
type RedisLock struct {
	client redis.Cmdable
}

func NewRedisLock(client redis.Cmdable) *RedisLock {
	return &RedisLock{client: client}
}

// Acquire пытается захватить блокировку key на ttl. Возвращает токен владельца и true при успехе;
// false без ошибки означает, что блокировку держит кто-то другой.
func (l *RedisLock) Acquire(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Release освобождает блокировку, захваченную с токеном token. Если блокировка уже истекла или
// принадлежит другому владельцу, возвращает ErrNotHeld.
func (l *RedisLock) Release(ctx context.Context, key, token string) error {
	deleted, err := l.client.Eval(ctx, releaseScript, []string{keyPrefix + key}, token).Int64()
	if err != nil {
		return fmt.Errorf("release lock %s: %w", key, err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}
