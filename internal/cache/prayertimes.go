package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// prayerTimesPrefix is the Redis key prefix for cached daily timings.
const prayerTimesPrefix = "prayer:timings:"

// GetPrayerTimings returns cached timings for key, or nil on a miss.
func (c *Cache) GetPrayerTimings(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, prayerTimesPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get prayer timings: %w", err)
	}
	return data, nil
}

// SetPrayerTimings caches encoded timings for ttl.
func (c *Cache) SetPrayerTimings(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, prayerTimesPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("set prayer timings: %w", err)
	}
	return nil
}
