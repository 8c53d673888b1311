package cache

import (
	"context"
	"fmt"
	"time"

	"payoutledger/internal/config"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// Options 提现锁只做 SET NX / Lua 解锁，读写超时与锁等待上限保持同一量级
func Options(cfg *config.RedisConfig) *redis.Options {
	opts := &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
		opts.ReadTimeout = cfg.DialTimeout
		opts.WriteTimeout = cfg.DialTimeout
	}
	return opts
}

// NewRedis 创建客户端，启动时 Redis 可能晚于服务就绪，按 connect_retries 重试 PING
func NewRedis(ctx context.Context, cfg *config.RedisConfig, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(Options(cfg))

	attempts := cfg.ConnectRetries + 1
	for i := 1; ; i++ {
		err := ping(ctx, client)
		if err == nil {
			log.Info().Str("addr", client.Options().Addr).Int("attempt", i).Msg("Redis 连接成功")
			return client, nil
		}
		if i >= attempts {
			_ = client.Close()
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		log.Warn().Err(err).Int("attempt", i).Msg("Redis 连接失败，稍后重试")

		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, fmt.Errorf("连接 Redis 失败: %w", ctx.Err())
		case <-time.After(time.Duration(i) * 200 * time.Millisecond):
		}
	}
}

func ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return client.Ping(ctx).Err()
}
