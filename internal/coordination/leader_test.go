package coordination

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"
)

var testRedisAddr string

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	container, err := rediscontainer.Run(ctx, "redis:7-alpine")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start redis container: %v\n", err)
		os.Exit(1)
	}
	testRedisAddr, err = container.Endpoint(ctx, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get redis endpoint: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	if err := container.Terminate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate redis container: %v\n", err)
	}
	os.Exit(code)
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test")
	}
	client := redis.NewClient(&redis.Options{Addr: testRedisAddr})
	require.NoError(t, client.FlushAll(context.Background()).Err())
	t.Cleanup(func() { client.Close() })
	return client
}

func holderOf(t *testing.T, client *redis.Client, key string) string {
	t.Helper()
	holder, err := client.Get(context.Background(), key).Result()
	require.NoError(t, err)
	return holder
}

func TestLease_SingleHolder(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := NewLease(client, "hub-a", "lease:maintenance", 2*time.Second)
	b := NewLease(client, "hub-b", "lease:maintenance", 2*time.Second)

	ok, err := a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// the holder keeps it on the next attempt
	ok, err = a.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, "hub-a", holderOf(t, client, "lease:maintenance"))
	assert.ErrorIs(t, b.Renew(ctx), ErrNotLeader)
}

func TestLease_ReleaseHandsOver(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := NewLease(client, "hub-a", "lease:maintenance", 2*time.Second)
	b := NewLease(client, "hub-b", "lease:maintenance", 2*time.Second)

	_, err := a.TryAcquire(ctx)
	require.NoError(t, err)

	// releasing someone else's lease is a no-op
	require.NoError(t, b.Release(ctx))
	assert.Equal(t, "hub-a", holderOf(t, client, "lease:maintenance"))

	require.NoError(t, a.Release(ctx))
	ok, err := b.TryAcquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLease_ExpiresWithoutRenewal(t *testing.T) {
	client := setupRedis(t)
	ctx := context.Background()

	a := NewLease(client, "hub-a", "lease:maintenance", 300*time.Millisecond)
	b := NewLease(client, "hub-b", "lease:maintenance", 300*time.Millisecond)

	_, err := a.TryAcquire(ctx)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		ok, err := b.TryAcquire(ctx)
		return err == nil && ok
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, "hub-b", holderOf(t, client, "lease:maintenance"))
}
