package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisRunLock is a single-holder lease kept in Redis.
// TryLock: SET key token NX PX ttl
// Unlock:  delete the key only if it still holds our token
type RedisRunLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func NewRedisRunLock(rdb redis.Cmdable, key string, ttl time.Duration) *RedisRunLock {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &RedisRunLock{rdb: rdb, key: key, ttl: ttl}
}

func (l *RedisRunLock) TryLock(ctx context.Context) (string, bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	if !ok {
		return "", false, nil
	}
	return token, true, nil
}

// Unlock is a no-op when the lease already expired and someone else holds it.
func (l *RedisRunLock) Unlock(ctx context.Context, token string) error {
	err := unlockScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	return err
}
