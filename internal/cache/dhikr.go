package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// dhikrPrefix is the Redis key prefix for per-device dhikr counters.
	dhikrPrefix = "dhikr:"
	// dhikrTTL expires counters of devices that stopped using the app.
	dhikrTTL = 90 * 24 * time.Hour
)

// DhikrState is the raw counter hash of a device.
type DhikrState struct {
	Index int64
	Count int64
	Total int64
}

// dhikrTapScript increments count and total atomically and refreshes the TTL.
var dhikrTapScript = redis.NewScript(`
	local key = KEYS[1]
	local ttl = tonumber(ARGV[1])

	local count = redis.call('HINCRBY', key, 'count', 1)
	local total = redis.call('HINCRBY', key, 'total', 1)
	local index = tonumber(redis.call('HGET', key, 'index')) or 0
	redis.call('EXPIRE', key, ttl)

	return {index, count, total}
`)

// GetDhikr returns the counter state of a device; unknown devices start at zero.
func (c *Cache) GetDhikr(ctx context.Context, deviceID string) (*DhikrState, error) {
	vals, err := c.client.HMGet(ctx, dhikrPrefix+deviceID, "index", "count", "total").Result()
	if err != nil {
		return nil, fmt.Errorf("get dhikr: %w", err)
	}
	return &DhikrState{
		Index: parseHashInt(vals[0]),
		Count: parseHashInt(vals[1]),
		Total: parseHashInt(vals[2]),
	}, nil
}

// TapDhikr increments the device's count and lifetime total.
func (c *Cache) TapDhikr(ctx context.Context, deviceID string) (*DhikrState, error) {
	res, err := dhikrTapScript.Run(ctx, c.client,
		[]string{dhikrPrefix + deviceID},
		int(dhikrTTL.Seconds()),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("tap dhikr: %w", err)
	}
	return &DhikrState{Index: res[0], Count: res[1], Total: res[2]}, nil
}

// ResetDhikr zeroes the current count, keeping the selection and total.
func (c *Cache) ResetDhikr(ctx context.Context, deviceID string) (*DhikrState, error) {
	return c.writeDhikr(ctx, deviceID, map[string]any{"count": 0})
}

// SelectDhikr switches the device to another dhikr and zeroes the count.
func (c *Cache) SelectDhikr(ctx context.Context, deviceID string, index int) (*DhikrState, error) {
	return c.writeDhikr(ctx, deviceID, map[string]any{"index": index, "count": 0})
}

func (c *Cache) writeDhikr(ctx context.Context, deviceID string, fields map[string]any) (*DhikrState, error) {
	key := dhikrPrefix + deviceID
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, dhikrTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("write dhikr: %w", err)
	}
	return c.GetDhikr(ctx, deviceID)
}

func parseHashInt(v any) int64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	var n int64
	if _, err := fmt.Sscan(s, &n); err != nil {
		return 0
	}
	return n
}
