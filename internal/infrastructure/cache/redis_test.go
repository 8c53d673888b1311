package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"payoutledger/internal/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	client, err := NewRedis(context.Background(), &config.RedisConfig{Host: mr.Host(), Port: port}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	v, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestNewRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	_, err = NewRedis(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: port}, zerolog.Nop())
	assert.Error(t, err)
}

func TestOptions(t *testing.T) {
	opts := Options(&config.RedisConfig{Host: "redis", Port: 6380, DB: 2, PoolSize: 8, DialTimeout: 2 * time.Second})
	assert.Equal(t, "redis:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 8, opts.PoolSize)
	assert.Equal(t, 2*time.Second, opts.DialTimeout)
	assert.Equal(t, 2*time.Second, opts.ReadTimeout)
}

func TestNewRedisGivesUpAfterRetries(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	start := time.Now()
	_, err = NewRedis(context.Background(), &config.RedisConfig{Host: "127.0.0.1", Port: port, ConnectRetries: 2}, zerolog.Nop())
	require.Error(t, err)
	// 两次重试分别等待 200ms 和 400ms
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
}

func TestNewRedisStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	mr.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewRedis(ctx, &config.RedisConfig{Host: "127.0.0.1", Port: port, ConnectRetries: 10}, zerolog.Nop())
	assert.ErrorIs(t, err, context.Canceled)
}
