package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const guestKeyPrefix = "quota:guest:"

// RedisGuestStore 基于 Redis 的游客计数实现，多实例部署时使用。
// 每个游客对应一个 hash（count / started_at），TTL 与窗口对齐。
type RedisGuestStore struct {
	client *redis.Client
}

// NewRedisGuestStore 构造 Redis 游客计数存储。
func NewRedisGuestStore(client *redis.Client) *RedisGuestStore {
	return &RedisGuestStore{client: client}
}

// Usage 实现 GuestStore 接口。
func (s *RedisGuestStore) Usage(ctx context.Context, key string) (GuestUsage, error) {
	fields, err := s.client.HGetAll(ctx, guestKeyPrefix+key).Result()
	if err != nil {
		return GuestUsage{}, fmt.Errorf("redis guest usage: %w", err)
	}
	if len(fields) == 0 {
		return GuestUsage{}, nil
	}

	count, err := strconv.Atoi(fields["count"])
	if err != nil {
		return GuestUsage{}, fmt.Errorf("redis guest usage: bad count %q", fields["count"])
	}
	startedUnix, err := strconv.ParseInt(fields["started_at"], 10, 64)
	if err != nil {
		return GuestUsage{}, fmt.Errorf("redis guest usage: bad started_at %q", fields["started_at"])
	}
	return GuestUsage{Count: count, StartedAt: time.Unix(startedUnix, 0)}, nil
}

// Increment 实现 GuestStore 接口。窗口过期（或 key 不存在）时重新开窗。
func (s *RedisGuestStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) error {
	redisKey := guestKeyPrefix + key

	usage, err := s.Usage(ctx, key)
	if err != nil {
		return err
	}
	if usage.Count == 0 || now.Sub(usage.StartedAt) >= window {
		pipe := s.client.TxPipeline()
		pipe.Del(ctx, redisKey)
		pipe.HSet(ctx, redisKey, "count", 1, "started_at", now.Unix())
		pipe.Expire(ctx, redisKey, window)
		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis guest increment: %w", err)
		}
		return nil
	}

	if err := s.client.HIncrBy(ctx, redisKey, "count", 1).Err(); err != nil {
		return fmt.Errorf("redis guest increment: %w", err)
	}
	return nil
}
