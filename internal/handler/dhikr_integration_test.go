//go:build integration

package handler

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/noorapp/noor/internal/cache"
	"github.com/noorapp/noor/internal/testutil"
)

// TestDhikrRoutes_Redis drives the counter routes against Redis, including
// concurrent taps from one device.
func TestDhikrRoutes_Redis(t *testing.T) {
	ctx := context.Background()
	redisURL := testutil.RequireEnv(t, "TEST_REDIS_URL")

	c, err := cache.New(ctx, redisURL)
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	defer c.Close()
	if err := testutil.FlushRedis(ctx, c.Client()); err != nil {
		t.Fatalf("flush redis: %v", err)
	}

	router := newDhikrRouter(c)
	device := testutil.UniqueID("device")
	base := "/api/v1/dhikr/" + device

	_, state := doDhikr(t, router, http.MethodPost, base+"/select", `{"index":2}`)
	if state == nil || state.Dhikr.Target != 34 {
		t.Fatalf("unexpected state after select: %+v", state)
	}

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, _ := doDhikr(t, router, http.MethodPost, base+"/tap", "")
			if rec.Code != http.StatusOK {
				t.Errorf("tap returned %d", rec.Code)
			}
		}()
	}
	wg.Wait()

	_, state = doDhikr(t, router, http.MethodGet, base, "")
	if state.Count != 40 || state.Total != 40 || !state.Completed {
		t.Fatalf("expected 40 taps past the target, got %+v", state)
	}

	_, state = doDhikr(t, router, http.MethodPost, base+"/reset", "")
	if state.Count != 0 || state.Total != 40 || state.Dhikr.Index != 2 {
		t.Errorf("unexpected state after reset: %+v", state)
	}
}
