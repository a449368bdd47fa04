package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	attemptKeyPrefix = "login:attempts:"
	lockKeyPrefix    = "login:lock:"
)

// recordFailureScript はロック判定、失敗回数の加算、期限設定、ロックを 1 回の呼び出しで行います。
// KEYS[1]: 失敗回数, KEYS[2]: ロック, ARGV: 期間(ms), 上限回数, ロック時間(ms)
// 戻り値は {残り試行回数, 残りロック時間(ms)} です。
var recordFailureScript = redis.NewScript(`
local locked = redis.call('PTTL', KEYS[2])
if locked > 0 then
	return {0, locked}
end
local count = redis.call('INCR', KEYS[1])
if count == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local max = tonumber(ARGV[2])
if count >= max then
	redis.call('SET', KEYS[2], '1', 'PX', ARGV[3])
	redis.call('DEL', KEYS[1])
	return {0, 0}
end
return {max - count, 0}
`)

// RedisLimiter は複数プロセスで試行回数を共有するための AttemptLimiter です。
type RedisLimiter struct {
	rdb    *redis.Client
	policy LimiterPolicy
}

// NewRedisLimiter は RedisLimiter を作成します。
func NewRedisLimiter(rdb *redis.Client, policy LimiterPolicy) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		policy: policy,
	}
}

// NewRedisLimiterFromURL は接続URLから Redis クライアントを作り、疎通確認を行います。
func NewRedisLimiterFromURL(ctx context.Context, rawURL string, policy LimiterPolicy) (*RedisLimiter, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect redis: %w", err)
	}
	return NewRedisLimiter(rdb, policy), nil
}

func (l *RedisLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, lockKey(key)).Result()
	if err != nil {
		return 0, err
	}
	// キーが無い場合は負の値が返る
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) (int, time.Duration, error) {
	result, err := recordFailureScript.Run(ctx, l.rdb,
		[]string{attemptKey(key), lockKey(key)},
		l.policy.Window.Milliseconds(),
		l.policy.MaxAttempts,
		l.policy.LockDuration.Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("failed to record login failure: %w", err)
	}
	if len(result) != 2 {
		return 0, 0, fmt.Errorf("unexpected limiter script result: %v", result)
	}
	return int(result[0]), time.Duration(result[1]) * time.Millisecond, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, attemptKey(key), lockKey(key)).Err()
}

// Close は Redis クライアントを閉じます。
func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}

func attemptKey(key string) string {
	return attemptKeyPrefix + key
}

func lockKey(key string) string {
	return lockKeyPrefix + key
}
