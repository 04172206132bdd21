package security

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/repository"
)

type fakeStore struct {
	mu       sync.Mutex
	cfg      *model.SecurityConfig
	history  []string
	attempts []*model.UnlockAttempt
	audit    []*model.AuditEntry
	profiles map[string]*model.Profile
	roles    map[string][]model.Role
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		profiles: make(map[string]*model.Profile),
		roles:    make(map[string][]model.Role),
	}
}

func (f *fakeStore) EnsureSecurityConfig(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg == nil {
		f.cfg = &model.SecurityConfig{ID: model.SecurityConfigID, AdminEmail: email}
	}
	return nil
}

func (f *fakeStore) GetSecurityConfig(context.Context) (*model.SecurityConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cfg == nil {
		return nil, repository.ErrSecurityConfigNotFound
	}
	cp := *f.cfg
	return &cp, nil
}

func (f *fakeStore) SetRequireFingerprint(_ context.Context, require bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.RequireFingerprint = require
	return nil
}

func (f *fakeStore) RecordFailedUnlock(_ context.Context, now time.Time, maxAttempts int, lockout time.Duration) (*time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.FailedAttempts++
	if f.cfg.FailedAttempts >= maxAttempts {
		f.cfg.FailedAttempts = 0
		until := now.Add(lockout)
		f.cfg.LockedUntil = &until
	}
	if f.cfg.LockedUntil != nil && f.cfg.LockedUntil.After(now) {
		until := *f.cfg.LockedUntil
		return &until, nil
	}
	return nil, nil
}

func (f *fakeStore) ResetFailedUnlocks(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.FailedAttempts = 0
	f.cfg.LockedUntil = nil
	return nil
}

func (f *fakeStore) SetPasscode(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg.PasscodeHash = hash
	f.cfg.FailedAttempts = 0
	f.cfg.LockedUntil = nil
	f.history = append([]string{hash}, f.history...)
	return nil
}

func (f *fakeStore) RecentPasscodeHashes(_ context.Context, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.history) < limit {
		return append([]string(nil), f.history...), nil
	}
	return append([]string(nil), f.history[:limit]...), nil
}

func (f *fakeStore) InsertUnlockAttempt(_ context.Context, a *model.UnlockAttempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts = append(f.attempts, a)
	return nil
}

func (f *fakeStore) InsertAudit(_ context.Context, e *model.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audit = append(f.audit, e)
	return nil
}

func (f *fakeStore) ListAudit(_ context.Context, resourceType string, limit int) ([]*model.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.AuditEntry
	for i := len(f.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if f.audit[i].ResourceType == resourceType {
			out = append(out, f.audit[i])
		}
	}
	return out, nil
}

func (f *fakeStore) GetOrCreateProfile(_ context.Context, email, fullName string) (*model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.profiles[email]; ok {
		return p, nil
	}
	p := &model.Profile{ID: "admin-uuid", Email: email, FullName: fullName}
	f.profiles[email] = p
	return p, nil
}

func (f *fakeStore) GrantRole(_ context.Context, userID string, role model.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.roles[userID] = append(f.roles[userID], role)
	return nil
}

func (f *fakeStore) lastAudit() *model.AuditEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.audit) == 0 {
		return nil
	}
	return f.audit[len(f.audit)-1]
}

type fakeSessions struct {
	mu    sync.Mutex
	epoch int64
}

func (s *fakeSessions) SessionEpoch(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch, nil
}

func (s *fakeSessions) BumpSessionEpoch(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	return s.epoch, nil
}

const testPasscode = "noor-admin-1234"

type fixture struct {
	svc      *Service
	store    *fakeStore
	sessions *fakeSessions
	tokens   *auth.TokenManager
	metrics  *metrics.InMemoryRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tokens, err := auth.NewTokenManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	f := &fixture{
		store:    newFakeStore(),
		sessions: &fakeSessions{},
		tokens:   tokens,
		metrics:  metrics.NewInMemory(),
	}
	f.svc = NewService(f.store, f.sessions, tokens, Options{
		AdminEmail:        "admin@noor.app",
		MaxFailedAttempts: 3,
		LockoutDuration:   15 * time.Minute,
		HistorySize:       5,
	}, discardLogger(), f.metrics)

	if err := f.svc.Bootstrap(context.Background(), testPasscode); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
