package prayer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/noorapp/noor/internal/model"
)

// FallbackProvider tries Primary and falls back to Secondary on error.
type FallbackProvider struct {
	Primary   Provider
	Secondary Provider
	Logger    *slog.Logger
}

// Timings implements Provider.
func (f *FallbackProvider) Timings(ctx context.Context, q Query) (*Timings, error) {
	t, err := f.Primary.Timings(ctx, q)
	if err == nil {
		return t, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	if f.Logger != nil {
		f.Logger.Warn("primary prayer provider failed, using fallback", "error", err)
	}

	t, fbErr := f.Secondary.Timings(ctx, q)
	if fbErr != nil {
		return nil, fmt.Errorf("%w: primary: %v, fallback: %v", ErrTimingsUnavailable, err, fbErr)
	}
	return t, nil
}

// TimingsStore persists encoded timings. The Redis cache satisfies it.
type TimingsStore interface {
	GetPrayerTimings(ctx context.Context, key string) ([]byte, error)
	SetPrayerTimings(ctx context.Context, key string, data []byte, ttl time.Duration) error
}

// DefaultCacheTTL is how long cached timings live.
const DefaultCacheTTL = 24 * time.Hour

// CachedProvider memoizes another Provider in a TimingsStore.
// Cache failures are logged and never fail the lookup.
type CachedProvider struct {
	next   Provider
	store  TimingsStore
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedProvider wraps next with a cache.
func NewCachedProvider(next Provider, store TimingsStore, ttl time.Duration, logger *slog.Logger) *CachedProvider {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, store: store, ttl: ttl, logger: logger}
}

type cachedTimings struct {
	Date     string                     `json:"date"`
	Timezone string                     `json:"timezone"`
	Times    map[model.PrayerName]Clock `json:"times"`
	Hijri    *Hijri                     `json:"hijri,omitempty"`
	Method   Method                     `json:"method"`
	Source   string                     `json:"source"`
}

// CacheKey builds the cache key for a query. Coordinates are rounded to
// three decimals (about 110 m), well below any prayer-time difference.
func CacheKey(q Query) string {
	return fmt.Sprintf("%.3f:%.3f:%s:%s:%s",
		q.Latitude, q.Longitude, q.Date.Format("2006-01-02"), q.Method, q.Timezone)
}

// Timings implements Provider.
func (c *CachedProvider) Timings(ctx context.Context, q Query) (*Timings, error) {
	key := CacheKey(q)

	if data, err := c.store.GetPrayerTimings(ctx, key); err != nil {
		c.logger.Warn("prayer cache read failed", "error", err)
	} else if data != nil {
		if t, err := decodeTimings(data); err == nil {
			return t, nil
		}
		c.logger.Warn("discarding corrupt prayer cache entry", "key", key)
	}

	t, err := c.next.Timings(ctx, q)
	if err != nil {
		return nil, err
	}

	if data, err := encodeTimings(t); err == nil {
		if err := c.store.SetPrayerTimings(ctx, key, data, c.ttl); err != nil {
			c.logger.Warn("prayer cache write failed", "error", err)
		}
	}
	return t, nil
}

func encodeTimings(t *Timings) ([]byte, error) {
	tz := "UTC"
	if t.Location != nil {
		tz = t.Location.String()
	}
	return json.Marshal(cachedTimings{
		Date:     t.Date.Format("2006-01-02"),
		Timezone: tz,
		Times:    t.Times,
		Hijri:    t.Hijri,
		Method:   t.Method,
		Source:   t.Source,
	})
}

func decodeTimings(data []byte) (*Timings, error) {
	var ct cachedTimings
	if err := json.Unmarshal(data, &ct); err != nil {
		return nil, err
	}
	if len(ct.Times) == 0 {
		return nil, errors.New("empty cached timings")
	}
	loc, err := time.LoadLocation(ct.Timezone)
	if err != nil {
		return nil, err
	}
	date, err := time.ParseInLocation("2006-01-02", ct.Date, loc)
	if err != nil {
		return nil, err
	}
	return &Timings{
		Date:     date,
		Location: loc,
		Times:    ct.Times,
		Hijri:    ct.Hijri,
		Method:   ct.Method,
		Source:   ct.Source,
	}, nil
}
