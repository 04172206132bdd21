package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// adminSessionEpochKey holds the current admin session epoch. Tokens carry
// the epoch they were issued under and stop validating once it moves on.
const adminSessionEpochKey = "admin:session:epoch"

// SessionEpoch returns the current admin session epoch, 0 if never bumped.
func (c *Cache) SessionEpoch(ctx context.Context) (int64, error) {
	epoch, err := c.client.Get(ctx, adminSessionEpochKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get session epoch: %w", err)
	}
	return epoch, nil
}

// BumpSessionEpoch invalidates every admin session issued so far and
// returns the new epoch.
func (c *Cache) BumpSessionEpoch(ctx context.Context) (int64, error) {
	epoch, err := c.client.Incr(ctx, adminSessionEpochKey).Result()
	if err != nil {
		return 0, fmt.Errorf("bump session epoch: %w", err)
	}
	return epoch, nil
}
