package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// 加锁：SET key value NX PX ttl，value 标识持有者
// 释放：Lua 脚本比较 value 后删除，避免锁过期后误删别人的锁

var ErrLockFailed = errors.New("获取分布式锁失败")

var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 按 retryInterval 重试，最多 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		ok, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock 只释放自己持有的锁，返回是否真正删除
func (l *DistributedLock) Unlock(ctx context.Context) (bool, error) {
	n, err := unlockScript.Run(ctx, l.client, []string{l.key}, l.value).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func WithdrawalLockKey(employeeID string) string {
	return fmt.Sprintf("withdrawal:lock:employee:%s", employeeID)
}

// EmployeeLocker 按员工维度的提现锁，不同员工之间互不影响
type EmployeeLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

// NewEmployeeLocker 等待总时长约为 wait
func NewEmployeeLocker(client *redis.Client, ttl, wait time.Duration) *EmployeeLocker {
	interval := 50 * time.Millisecond
	retries := int(wait / interval)
	if retries < 1 {
		retries = 1
	}
	return &EmployeeLocker{client: client, ttl: ttl, retryInterval: interval, maxRetries: retries}
}

// LockEmployee 获取锁并返回释放函数
func (l *EmployeeLocker) LockEmployee(ctx context.Context, employeeID string) (func(), error) {
	dl := NewDistributedLock(l.client, WithdrawalLockKey(employeeID), uuid.NewString(), l.ttl)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		// 请求 ctx 可能已取消，释放锁使用独立的 ctx
		unlockCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_, _ = dl.Unlock(unlockCtx)
	}, nil
}
