//go:build integration

package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"s3-etl-pipeline/internal/service"
)

func startRedis(t *testing.T) *redis.Client {
	t.Helper()

	docker, err := dockertest.NewPool("")
	require.NoError(t, err, "connect to docker")

	res, err := docker.Run("redis", "7.2-alpine", nil)
	require.NoError(t, err, "start redis")
	t.Cleanup(func() {
		require.NoError(t, docker.Purge(res), "purge redis")
	})

	rdb := redis.NewClient(&redis.Options{Addr: res.GetHostPort("6379/tcp")})
	t.Cleanup(func() { _ = rdb.Close() })

	err = docker.Retry(func() error {
		return rdb.Ping(context.Background()).Err()
	})
	require.NoError(t, err, "wait for redis")
	return rdb
}

func TestRedisRunLock(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	a := service.NewRedisRunLock(rdb, "test:scanner:lock", time.Minute)
	b := service.NewRedisRunLock(rdb, "test:scanner:lock", time.Minute)

	tokenA, ok, err := a.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, tokenA)

	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok, "second holder must be refused")

	// a stale token cannot release someone else's lease
	require.NoError(t, b.Unlock(ctx, "not-the-owner"))
	_, ok, err = b.TryLock(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Unlock(ctx, tokenA))
	tokenB, ok, err := b.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEqual(t, tokenA, tokenB)
}

func TestRedisRunLock_Expires(t *testing.T) {
	rdb := startRedis(t)
	ctx := context.Background()

	lock := service.NewRedisRunLock(rdb, "test:scanner:ttl", 200*time.Millisecond)
	_, ok, err := lock.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	require.Eventually(t, func() bool {
		_, ok, err := lock.TryLock(ctx)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)
}
