// Package security implements the admin panel unlock flow: passcode
// verification with lockout, session issuance and the security audit log.
package security

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/metrics"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/repository"
)

// Actions accepted by Handle.
const (
	ActionGetConfig             = "get_config"
	ActionLogEvent              = "log_event"
	ActionSetRequireFingerprint = "set_require_fingerprint"
	ActionUnlock                = "unlock"
	ActionChangePasscode        = "change_passcode"
	ActionRevokeSessions        = "revoke_sessions"
	ActionHistory               = "history"
)

// Error codes returned in Response.Error.
const (
	CodeNotAuthenticated = "not_authenticated"
	CodeWeakPasscode     = "weak_passcode"
	CodeInvalidCurrent   = "invalid_current"
	CodePasscodeReused   = "passcode_reused"
	CodeUnknownAction    = "unknown_action"
)

// Passcode length bounds.
const (
	MinPasscodeLength = 6
	MaxPasscodeLength = 128
)

const (
	historyLimit        = 100
	changePasscodeLabel = "(change_passcode)"
	noFingerprintLabel  = "no-fingerprint"
)

var (
	// ErrSecurityNotConfigured is returned until an admin passcode is set.
	ErrSecurityNotConfigured = errors.New("admin_security_not_configured")
	// ErrWeakPasscode is returned by Bootstrap for out-of-range passcodes.
	ErrWeakPasscode = errors.New("passcode must be 6 to 128 characters")
)

// Store is the persistence used by the security service.
type Store interface {
	EnsureSecurityConfig(ctx context.Context, adminEmail string) error
	GetSecurityConfig(ctx context.Context) (*model.SecurityConfig, error)
	SetRequireFingerprint(ctx context.Context, require bool) error
	RecordFailedUnlock(ctx context.Context, now time.Time, maxAttempts int, lockout time.Duration) (*time.Time, error)
	ResetFailedUnlocks(ctx context.Context) error
	SetPasscode(ctx context.Context, hash string) error
	RecentPasscodeHashes(ctx context.Context, limit int) ([]string, error)
	InsertUnlockAttempt(ctx context.Context, a *model.UnlockAttempt) error
	InsertAudit(ctx context.Context, e *model.AuditEntry) error
	ListAudit(ctx context.Context, resourceType string, limit int) ([]*model.AuditEntry, error)
	GetOrCreateProfile(ctx context.Context, email, fullName string) (*model.Profile, error)
	GrantRole(ctx context.Context, userID string, role model.Role) error
}

// Sessions tracks the admin session epoch. The Redis cache satisfies it.
type Sessions interface {
	SessionEpoch(ctx context.Context) (int64, error)
	BumpSessionEpoch(ctx context.Context) (int64, error)
}

// Options tunes lockout and history.
type Options struct {
	AdminEmail        string
	MaxFailedAttempts int
	LockoutDuration   time.Duration
	HistorySize       int
}

// Request is the body of an admin security call.
type Request struct {
	Action             string `json:"action"`
	ActionName         string `json:"action_name,omitempty"`
	RequireFingerprint bool   `json:"require_fingerprint,omitempty"`
	Passcode           string `json:"passcode,omitempty"`
	DeviceFingerprint  string `json:"device_fingerprint,omitempty"`
	CurrentPasscode    string `json:"current_passcode,omitempty"`
	NewPasscode        string `json:"new_passcode,omitempty"`
}

// Caller identifies who made the request. Subject is empty for
// unauthenticated callers.
type Caller struct {
	Subject string
	IP      string
}

// Response is returned for every handled action. Expected failures set
// OK=false with Error or Reason.
type Response struct {
	OK                 bool                `json:"ok"`
	Error              string              `json:"error,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	RequireFingerprint *bool               `json:"require_fingerprint,omitempty"`
	AdminEmail         string              `json:"admin_email,omitempty"`
	Token              string              `json:"token,omitempty"`
	ExpiresAt          *time.Time          `json:"expires_at,omitempty"`
	LockedUntil        *time.Time          `json:"locked_until,omitempty"`
	Events             []*model.AuditEntry `json:"events,omitempty"`
}

// Service handles admin security actions.
type Service struct {
	store    Store
	sessions Sessions
	tokens   *auth.TokenManager
	opts     Options
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewService creates a Service. Zero options fall back to 5 attempts,
// 15 minutes lockout and 5 remembered passcodes.
func NewService(store Store, sessions Sessions, tokens *auth.TokenManager, opts Options, logger *slog.Logger, recorder metrics.Recorder) *Service {
	if opts.MaxFailedAttempts <= 0 {
		opts.MaxFailedAttempts = 5
	}
	if opts.LockoutDuration <= 0 {
		opts.LockoutDuration = 15 * time.Minute
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = 5
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Service{
		store:    store,
		sessions: sessions,
		tokens:   tokens,
		opts:     opts,
		logger:   logger.With("component", "security"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// Init seeds the config row for the configured admin email.
func (s *Service) Init(ctx context.Context) error {
	return s.store.EnsureSecurityConfig(ctx, s.opts.AdminEmail)
}

// Bootstrap sets the admin passcode without verifying a current one. It
// is meant for first-time setup from operator tooling.
func (s *Service) Bootstrap(ctx context.Context, passcode string) error {
	if !validPasscode(passcode) {
		return ErrWeakPasscode
	}
	if err := s.Init(ctx); err != nil {
		return err
	}
	hash, err := auth.HashSecret(passcode)
	if err != nil {
		return fmt.Errorf("hash passcode: %w", err)
	}
	return s.store.SetPasscode(ctx, hash)
}

// Handle dispatches one action. A returned error is a backend fault;
// expected failures come back as a Response with OK=false.
func (s *Service) Handle(ctx context.Context, caller Caller, req Request) (*Response, error) {
	cfg, err := s.store.GetSecurityConfig(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrSecurityConfigNotFound) {
			return nil, ErrSecurityNotConfigured
		}
		return nil, err
	}
	if !cfg.IsConfigured() {
		return nil, ErrSecurityNotConfigured
	}

	switch req.Action {
	case ActionGetConfig:
		require := cfg.RequireFingerprint
		return &Response{OK: true, RequireFingerprint: &require}, nil
	case ActionLogEvent:
		return s.logEvent(ctx, cfg, caller, req)
	case ActionSetRequireFingerprint:
		return s.setRequireFingerprint(ctx, caller, req)
	case ActionUnlock:
		return s.unlock(ctx, cfg, caller, req)
	case ActionChangePasscode:
		return s.changePasscode(ctx, caller, req)
	case ActionRevokeSessions:
		return s.revokeSessions(ctx, caller)
	case ActionHistory:
		return s.history(ctx, caller)
	default:
		return &Response{OK: false, Error: CodeUnknownAction}, nil
	}
}

func (s *Service) logEvent(ctx context.Context, cfg *model.SecurityConfig, caller Caller, req Request) (*Response, error) {
	actor := caller.Subject
	if actor == "" {
		admin, err := s.ensureAdmin(ctx, cfg)
		if err != nil {
			return nil, err
		}
		actor = admin.ID
	}

	action := req.ActionName
	if action == "" {
		action = model.AuditSecurityEvent
	}
	if err := s.audit(ctx, actor, action, map[string]any{"ip": nullable(caller.IP)}); err != nil {
		return nil, err
	}
	return &Response{OK: true}, nil
}

func (s *Service) setRequireFingerprint(ctx context.Context, caller Caller, req Request) (*Response, error) {
	if caller.Subject == "" {
		return &Response{OK: false, Error: CodeNotAuthenticated}, nil
	}
	if err := s.store.SetRequireFingerprint(ctx, req.RequireFingerprint); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, caller.Subject, model.AuditSecuritySettingUpdated, map[string]any{
		"requireFingerprint": req.RequireFingerprint,
		"ip":                 nullable(caller.IP),
	}); err != nil {
		return nil, err
	}
	return &Response{OK: true}, nil
}

func (s *Service) unlock(ctx context.Context, cfg *model.SecurityConfig, caller Caller, req Request) (*Response, error) {
	admin, err := s.ensureAdmin(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RequireFingerprint && req.DeviceFingerprint == "" {
		s.metrics.IncUnlockAttempt(metrics.StatusFailed)
		if err := s.audit(ctx, admin.ID, model.AuditUnlockFailed, map[string]any{
			"reason": model.ReasonFingerprintRequired,
			"ip":     nullable(caller.IP),
		}); err != nil {
			return nil, err
		}
		return &Response{OK: false, Reason: model.ReasonFingerprintRequired}, nil
	}

	fingerprint := req.DeviceFingerprint
	if fingerprint == "" {
		fingerprint = noFingerprintLabel
	}
	result, err := s.verify(ctx, cfg, req.Passcode, fingerprint, caller.IP)
	if err != nil {
		return nil, err
	}

	if !result.OK {
		if err := s.audit(ctx, admin.ID, model.AuditUnlockFailed, map[string]any{
			"reason":             result.Reason,
			"locked_until":       result.LockedUntil,
			"device_fingerprint": nullable(req.DeviceFingerprint),
			"ip":                 nullable(caller.IP),
		}); err != nil {
			return nil, err
		}
		return &Response{OK: false, Reason: result.Reason, LockedUntil: result.LockedUntil}, nil
	}

	if err := s.store.GrantRole(ctx, admin.ID, model.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, admin.ID, model.AuditUnlockSuccess, map[string]any{
		"device_fingerprint": nullable(req.DeviceFingerprint),
		"ip":                 nullable(caller.IP),
	}); err != nil {
		return nil, err
	}

	epoch, err := s.sessions.SessionEpoch(ctx)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.tokens.Issue(admin.ID, string(model.RoleSuperAdmin), epoch)
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin unlocked", "actor_id", admin.ID)
	return &Response{
		OK:         true,
		AdminEmail: cfg.AdminEmail,
		Token:      token,
		ExpiresAt:  &expiresAt,
	}, nil
}

func (s *Service) changePasscode(ctx context.Context, caller Caller, req Request) (*Response, error) {
	if !validPasscode(req.NewPasscode) {
		return &Response{OK: false, Error: CodeWeakPasscode}, nil
	}
	if caller.Subject == "" {
		return &Response{OK: false, Error: CodeNotAuthenticated}, nil
	}

	// Reload so that lockout state is current.
	cfg, err := s.store.GetSecurityConfig(ctx)
	if err != nil {
		return nil, err
	}
	result, err := s.verify(ctx, cfg, req.CurrentPasscode, changePasscodeLabel, caller.IP)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		if err := s.audit(ctx, caller.Subject, model.AuditUnlockFailed, map[string]any{
			"reason": "change_passcode_invalid_current",
			"ip":     nullable(caller.IP),
		}); err != nil {
			return nil, err
		}
		return &Response{OK: false, Error: CodeInvalidCurrent, LockedUntil: result.LockedUntil}, nil
	}

	recent, err := s.store.RecentPasscodeHashes(ctx, s.opts.HistorySize)
	if err != nil {
		return nil, err
	}
	if auth.MatchesAny(req.NewPasscode, recent) {
		return &Response{OK: false, Error: CodePasscodeReused}, nil
	}

	hash, err := auth.HashSecret(req.NewPasscode)
	if err != nil {
		return nil, fmt.Errorf("hash passcode: %w", err)
	}
	if err := s.store.SetPasscode(ctx, hash); err != nil {
		return nil, err
	}
	if err := s.audit(ctx, caller.Subject, model.AuditPasscodeChanged, map[string]any{"ip": nullable(caller.IP)}); err != nil {
		return nil, err
	}
	return &Response{OK: true}, nil
}

func (s *Service) revokeSessions(ctx context.Context, caller Caller) (*Response, error) {
	if caller.Subject == "" {
		return &Response{OK: false, Error: CodeNotAuthenticated}, nil
	}
	epoch, err := s.sessions.BumpSessionEpoch(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.audit(ctx, caller.Subject, model.AuditForcedLock, map[string]any{"ip": nullable(caller.IP)}); err != nil {
		return nil, err
	}
	s.logger.Warn("admin sessions revoked", "actor_id", caller.Subject, "epoch", epoch)
	return &Response{OK: true}, nil
}

func (s *Service) history(ctx context.Context, caller Caller) (*Response, error) {
	if caller.Subject == "" {
		return &Response{OK: false, Error: CodeNotAuthenticated}, nil
	}
	events, err := s.store.ListAudit(ctx, model.ResourceSecurity, historyLimit)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*model.AuditEntry{}
	}
	return &Response{OK: true, Events: events}, nil
}

// verify checks a passcode against the stored hash with lockout, and
// records the attempt.
func (s *Service) verify(ctx context.Context, cfg *model.SecurityConfig, passcode, fingerprint, ip string) (*model.PasscodeVerification, error) {
	now := s.now().UTC()
	attempt := &model.UnlockAttempt{DeviceFingerprint: fingerprint, IP: ip, CreatedAt: now}

	var result *model.PasscodeVerification
	switch {
	case cfg.IsLocked(now):
		result = &model.PasscodeVerification{Reason: model.ReasonLocked, LockedUntil: cfg.LockedUntil}
		s.metrics.IncUnlockAttempt(metrics.StatusLocked)

	default:
		ok, err := auth.VerifySecret(passcode, cfg.PasscodeHash)
		if err != nil {
			return nil, fmt.Errorf("verify passcode: %w", err)
		}
		if ok {
			if err := s.store.ResetFailedUnlocks(ctx); err != nil {
				return nil, err
			}
			result = &model.PasscodeVerification{OK: true}
			s.metrics.IncUnlockAttempt(metrics.StatusSuccess)
			break
		}

		lockedUntil, err := s.store.RecordFailedUnlock(ctx, now, s.opts.MaxFailedAttempts, s.opts.LockoutDuration)
		if err != nil {
			return nil, err
		}
		result = &model.PasscodeVerification{Reason: model.ReasonInvalid, LockedUntil: lockedUntil}
		s.metrics.IncUnlockAttempt(metrics.StatusFailed)
		if lockedUntil != nil {
			s.logger.Warn("admin unlock locked out", "locked_until", lockedUntil, "ip", ip)
		}
	}

	attempt.Success = result.OK
	attempt.Reason = result.Reason
	if err := s.store.InsertUnlockAttempt(ctx, attempt); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) ensureAdmin(ctx context.Context, cfg *model.SecurityConfig) (*model.Profile, error) {
	profile, err := s.store.GetOrCreateProfile(ctx, cfg.AdminEmail, "Admin")
	if err != nil {
		return nil, fmt.Errorf("ensure admin user: %w", err)
	}
	return profile, nil
}

func (s *Service) audit(ctx context.Context, actor, action string, metadata map[string]any) error {
	return s.store.InsertAudit(ctx, &model.AuditEntry{
		Action:       action,
		ActorID:      actor,
		ResourceType: model.ResourceSecurity,
		Metadata:     metadata,
		CreatedAt:    s.now().UTC(),
	})
}

func validPasscode(p string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(p)) >= MinPasscodeLength &&
		utf8.RuneCountInString(p) <= MaxPasscodeLength
}

// nullable maps empty strings to JSON null in audit metadata.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
