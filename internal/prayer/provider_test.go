package prayer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/noorapp/noor/internal/model"
)

type stubProvider struct {
	mu    sync.Mutex
	calls int
	t     *Timings
	err   error
}

func (s *stubProvider) Timings(_ context.Context, _ Query) (*Timings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.t, s.err
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
	err  error
}

func (m *memoryStore) GetPrayerTimings(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.data[key], nil
}

func (m *memoryStore) SetPrayerTimings(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	m.data[key] = data
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testQuery() Query {
	return Query{
		Latitude:  21.42251,
		Longitude: 39.82619,
		Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Method:    MethodMakkah,
		Timezone:  "Asia/Riyadh",
	}
}

func TestFallbackProvider(t *testing.T) {
	t.Parallel()

	good := &stubProvider{t: meccaTimings()}
	bad := &stubProvider{err: errors.New("upstream down")}

	t.Run("primary succeeds", func(t *testing.T) {
		f := &FallbackProvider{Primary: good, Secondary: bad, Logger: discardLogger()}
		if _, err := f.Timings(context.Background(), testQuery()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("falls back", func(t *testing.T) {
		secondary := &stubProvider{t: meccaTimings()}
		f := &FallbackProvider{Primary: bad, Secondary: secondary, Logger: discardLogger()}
		if _, err := f.Timings(context.Background(), testQuery()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if secondary.calls != 1 {
			t.Errorf("secondary should be called once, got %d", secondary.calls)
		}
	})

	t.Run("both fail", func(t *testing.T) {
		f := &FallbackProvider{Primary: bad, Secondary: bad}
		_, err := f.Timings(context.Background(), testQuery())
		if !errors.Is(err, ErrTimingsUnavailable) {
			t.Errorf("expected ErrTimingsUnavailable, got %v", err)
		}
	})
}

func TestCachedProvider_HitAfterMiss(t *testing.T) {
	t.Parallel()

	next := &stubProvider{t: meccaTimings()}
	store := &memoryStore{}
	cp := NewCachedProvider(next, store, time.Hour, discardLogger())

	first, err := cp.Timings(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("first lookup: %v", err)
	}
	second, err := cp.Timings(context.Background(), testQuery())
	if err != nil {
		t.Fatalf("second lookup: %v", err)
	}

	if next.calls != 1 {
		t.Errorf("expected one upstream call, got %d", next.calls)
	}
	if second.Times[model.PrayerFajr] != first.Times[model.PrayerFajr] {
		t.Errorf("cached fajr %v differs from %v", second.Times[model.PrayerFajr], first.Times[model.PrayerFajr])
	}
	a1, _ := first.At(model.PrayerIsha)
	a2, _ := second.At(model.PrayerIsha)
	if !a1.Equal(a2) {
		t.Errorf("cached isha %v differs from %v", a2, a1)
	}
}

func TestCachedProvider_StoreErrorsAreIgnored(t *testing.T) {
	t.Parallel()

	next := &stubProvider{t: meccaTimings()}
	store := &memoryStore{err: errors.New("redis down")}
	cp := NewCachedProvider(next, store, time.Hour, discardLogger())

	if _, err := cp.Timings(context.Background(), testQuery()); err != nil {
		t.Fatalf("lookup should succeed despite cache errors: %v", err)
	}
}

func TestCachedProvider_CorruptEntry(t *testing.T) {
	t.Parallel()

	next := &stubProvider{t: meccaTimings()}
	store := &memoryStore{data: map[string][]byte{CacheKey(testQuery()): []byte("{broken")}}
	cp := NewCachedProvider(next, store, time.Hour, discardLogger())

	if _, err := cp.Timings(context.Background(), testQuery()); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if next.calls != 1 {
		t.Errorf("corrupt entry should fall through to upstream")
	}
}

func TestCacheKey_RoundsCoordinates(t *testing.T) {
	t.Parallel()

	a := testQuery()
	b := testQuery()
	b.Latitude = 21.4224
	b.Longitude = 39.8258

	if CacheKey(a) != CacheKey(b) {
		t.Errorf("nearby points should share a key: %s vs %s", CacheKey(a), CacheKey(b))
	}

	c := testQuery()
	c.Method = MethodMWL
	if CacheKey(a) == CacheKey(c) {
		t.Error("different methods must not share a key")
	}
}
