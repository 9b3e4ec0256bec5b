package policy

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter is a fixed-window rate counter backed by redis, for
// deployments where several server instances share one caller population.
// Fixed windows approximate the trailing-window semantics: the count a
// validator sees is the number of attempts in the current minute/hour
// bucket.
type RedisCounter struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisCounter creates a counter on the given redis address.
func NewRedisCounter(addr string) *RedisCounter {
	return &RedisCounter{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		now:    time.Now,
	}
}

// RecordExecution increments the caller's minute and hour buckets.
func (c *RedisCounter) RecordExecution(ctx context.Context, caller CallerIdentity) error {
	if err := c.increment(ctx, c.minuteKey(caller), 2*time.Minute); err != nil {
		return err
	}
	return c.increment(ctx, c.hourKey(caller), 2*time.Hour)
}

// ExecutionsInLastMinute reads the caller's current minute bucket.
func (c *RedisCounter) ExecutionsInLastMinute(ctx context.Context, caller CallerIdentity) (int, error) {
	return c.read(ctx, c.minuteKey(caller))
}

// ExecutionsInLastHour reads the caller's current hour bucket.
func (c *RedisCounter) ExecutionsInLastHour(ctx context.Context, caller CallerIdentity) (int, error) {
	return c.read(ctx, c.hourKey(caller))
}

// Close releases the underlying client.
func (c *RedisCounter) Close() error {
	return c.client.Close()
}

func (c *RedisCounter) increment(ctx context.Context, key string, ttl time.Duration) error {
	count, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("rate counter increment failed: %w", err)
	}
	if count == 1 {
		if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
			return fmt.Errorf("rate counter expire failed: %w", err)
		}
	}
	return nil
}

func (c *RedisCounter) read(ctx context.Context, key string) (int, error) {
	count, err := c.client.Get(ctx, key).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("rate counter read failed: %w", err)
	}
	return count, nil
}

func (c *RedisCounter) minuteKey(caller CallerIdentity) string {
	return fmt.Sprintf("rate:%s:m:%d", caller.Key(), c.now().Unix()/60)
}

func (c *RedisCounter) hourKey(caller CallerIdentity) string {
	return fmt.Sprintf("rate:%s:h:%d", caller.Key(), c.now().Unix()/3600)
}
