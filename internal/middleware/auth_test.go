package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/model"
)

type fakeKeyStore struct {
	mu       sync.Mutex
	keys     []*model.ServiceKey
	err      error
	lookups  int
	lastUsed chan string
}

func (s *fakeKeyStore) GetServiceKeysByPrefix(_ context.Context, prefix string) ([]*model.ServiceKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	if s.err != nil {
		return nil, s.err
	}
	var out []*model.ServiceKey
	for _, k := range s.keys {
		if k.KeyPrefix == prefix {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *fakeKeyStore) UpdateServiceKeyLastUsed(_ context.Context, id string) error {
	if s.lastUsed != nil {
		s.lastUsed <- id
	}
	return nil
}

type fakeAuthCache struct {
	mu      sync.Mutex
	entries map[string]*model.AuthContext
}

func (c *fakeAuthCache) GetAuthContext(_ context.Context, key string) (*model.AuthContext, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *fakeAuthCache) SetAuthContext(_ context.Context, key string, a *model.AuthContext) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = a
	return nil
}

func newKey(t *testing.T, scopes ...string) (*auth.GeneratedKey, *model.ServiceKey) {
	t.Helper()
	gen, err := auth.GenerateServiceKey(auth.EnvTest)
	if err != nil {
		t.Fatalf("GenerateServiceKey: %v", err)
	}
	return gen, &model.ServiceKey{
		ID:        "key-1",
		KeyHash:   gen.Hash,
		KeyPrefix: gen.Prefix,
		Scopes:    scopes,
		Name:      "scheduler",
	}
}

func TestServiceKeyAuth(t *testing.T) {
	t.Parallel()

	gen, key := newKey(t, model.ScopeDispatch)
	store := &fakeKeyStore{keys: []*model.ServiceKey{key}, lastUsed: make(chan string, 4)}
	authCache := &fakeAuthCache{entries: map[string]*model.AuthContext{}}

	var seen *model.AuthContext
	h := ServiceKeyAuth(ServiceKeyAuthConfig{
		Logger:      discardLogger(),
		Keys:        store,
		Cache:       authCache,
		MinDuration: time.Nanosecond,
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = auth.AuthFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"bearer key", "Authorization", "Bearer " + gen.Plaintext, http.StatusNoContent},
		{"service key header", ServiceKeyHeader, gen.Plaintext, http.StatusNoContent},
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed", ServiceKeyHeader, "nk_live_short", http.StatusUnauthorized},
		{"wrong secret", ServiceKeyHeader, "nk_test_" + gen.Prefix + "_" + strings.Repeat("0", 32), http.StatusUnauthorized},
		{"session token is not a key", "Authorization", "Bearer eyJhbGciOi", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		seen = nil
		req := httptest.NewRequest(http.MethodPost, "/internal/prayer-notifications/dispatch", nil)
		if tt.header != "" {
			req.Header.Set(tt.header, tt.value)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, rec.Code, tt.want)
			continue
		}
		if tt.want == http.StatusUnauthorized {
			if !strings.Contains(rec.Body.String(), `"code":"UNAUTHORIZED"`) {
				t.Errorf("%s: unexpected body %s", tt.name, rec.Body.String())
			}
			continue
		}
		if seen == nil || seen.KeyID != "key-1" || seen.Kind != model.PrincipalServiceKey || !seen.HasScope(model.ScopeDispatch) {
			t.Errorf("%s: unexpected auth context %+v", tt.name, seen)
		}
	}

	// The first success populated the cache, so only one verification hit the store.
	store.mu.Lock()
	lookups := store.lookups
	store.mu.Unlock()
	if lookups != 2 {
		t.Errorf("store lookups = %d, want 2 (one success, one wrong secret)", lookups)
	}

	select {
	case id := <-store.lastUsed:
		if id != "key-1" {
			t.Errorf("last used updated for %q", id)
		}
	case <-time.After(time.Second):
		t.Error("last used was never updated")
	}
}

func TestServiceKeyAuth_RevokedAndStoreError(t *testing.T) {
	t.Parallel()

	gen, key := newKey(t, model.ScopeAdmin)
	revokedAt := time.Now()
	key.RevokedAt = &revokedAt

	for name, store := range map[string]*fakeKeyStore{
		"revoked":     {keys: []*model.ServiceKey{key}},
		"store error": {err: errors.New("db down")},
	} {
		h := ServiceKeyAuth(ServiceKeyAuthConfig{Logger: discardLogger(), Keys: store, MinDuration: time.Nanosecond})(okHandler())
		req := httptest.NewRequest(http.MethodPost, "/internal/content/publish", nil)
		req.Header.Set(ServiceKeyHeader, gen.Plaintext)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestServiceKeyAuth_MinimumDuration(t *testing.T) {
	t.Parallel()

	h := ServiceKeyAuth(ServiceKeyAuthConfig{
		Logger:      discardLogger(),
		Keys:        &fakeKeyStore{},
		MinDuration: 30 * time.Millisecond,
	})(okHandler())

	start := time.Now()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/push/n1", nil))
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("auth failure returned after %v", elapsed)
	}
}
