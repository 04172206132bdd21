package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noorapp/noor/internal/model"
)

// ErrSecurityConfigNotFound is returned before the config row is seeded.
var ErrSecurityConfigNotFound = errors.New("security config not found")

// EnsureSecurityConfig seeds the single config row if it does not exist.
func (r *Repository) EnsureSecurityConfig(ctx context.Context, adminEmail string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_security_config (id, admin_email, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, model.SecurityConfigID, adminEmail, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to seed security config: %w", err)
	}
	return nil
}

// GetSecurityConfig loads the admin security config.
func (r *Repository) GetSecurityConfig(ctx context.Context) (*model.SecurityConfig, error) {
	var cfg model.SecurityConfig
	err := r.pool.QueryRow(ctx, `
		SELECT id, admin_email, passcode_hash, require_fingerprint, failed_attempts, locked_until, updated_at
		FROM admin_security_config
		WHERE id = $1
	`, model.SecurityConfigID).Scan(
		&cfg.ID,
		&cfg.AdminEmail,
		&cfg.PasscodeHash,
		&cfg.RequireFingerprint,
		&cfg.FailedAttempts,
		&cfg.LockedUntil,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSecurityConfigNotFound
		}
		return nil, fmt.Errorf("failed to get security config: %w", err)
	}
	return &cfg, nil
}

// SetRequireFingerprint toggles the device fingerprint requirement.
func (r *Repository) SetRequireFingerprint(ctx context.Context, require bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE admin_security_config SET require_fingerprint = $2, updated_at = $3 WHERE id = $1
	`, model.SecurityConfigID, require, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update require_fingerprint: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSecurityConfigNotFound
	}
	return nil
}

// RecordFailedUnlock increments the failure counter and locks the config
// for lockout once maxAttempts is reached. The counter restarts after a
// lock is applied. Returns the resulting lock time, if any.
func (r *Repository) RecordFailedUnlock(ctx context.Context, now time.Time, maxAttempts int, lockout time.Duration) (*time.Time, error) {
	var lockedUntil *time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE admin_security_config
		SET failed_attempts = CASE WHEN failed_attempts + 1 >= $2 THEN 0 ELSE failed_attempts + 1 END,
			locked_until = CASE WHEN failed_attempts + 1 >= $2 THEN $3::timestamptz ELSE locked_until END,
			updated_at = $4
		WHERE id = $1
		RETURNING locked_until
	`, model.SecurityConfigID, maxAttempts, now.Add(lockout), now).Scan(&lockedUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSecurityConfigNotFound
		}
		return nil, fmt.Errorf("failed to record failed unlock: %w", err)
	}
	if lockedUntil != nil && !lockedUntil.After(now) {
		return nil, nil
	}
	return lockedUntil, nil
}

// ResetFailedUnlocks clears the failure counter and any lock.
func (r *Repository) ResetFailedUnlocks(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE admin_security_config
		SET failed_attempts = 0, locked_until = NULL, updated_at = $2
		WHERE id = $1
	`, model.SecurityConfigID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to reset failed unlocks: %w", err)
	}
	return nil
}

// SetPasscode stores a new passcode hash and appends it to the history in
// one transaction.
func (r *Repository) SetPasscode(ctx context.Context, hash string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	now := time.Now().UTC()
	tag, err := tx.Exec(ctx, `
		UPDATE admin_security_config
		SET passcode_hash = $2, failed_attempts = 0, locked_until = NULL, updated_at = $3
		WHERE id = $1
	`, model.SecurityConfigID, hash, now)
	if err != nil {
		return fmt.Errorf("failed to update passcode: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSecurityConfigNotFound
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO admin_passcode_history (id, passcode_hash, created_at) VALUES ($1, $2, $3)
	`, newID(), hash, now); err != nil {
		return fmt.Errorf("failed to append passcode history: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit passcode change: %w", err)
	}
	return nil
}

// RecentPasscodeHashes returns the latest passcode hashes, newest first.
func (r *Repository) RecentPasscodeHashes(ctx context.Context, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT passcode_hash FROM admin_passcode_history ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passcode history: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var hash string
		if err := rows.Scan(&hash); err != nil {
			return nil, fmt.Errorf("failed to scan passcode hash: %w", err)
		}
		hashes = append(hashes, hash)
	}
	return hashes, rows.Err()
}

// InsertUnlockAttempt records one unlock attempt.
func (r *Repository) InsertUnlockAttempt(ctx context.Context, a *model.UnlockAttempt) error {
	if a.ID == "" {
		a.ID = newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_unlock_attempts (id, device_fingerprint, success, reason, ip, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.DeviceFingerprint, a.Success, a.Reason, a.IP, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert unlock attempt: %w", err)
	}
	return nil
}

// InsertAudit appends an audit log row.
func (r *Repository) InsertAudit(ctx context.Context, e *model.AuditEntry) error {
	if e.ID == "" {
		e.ID = newID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.Metadata == nil {
		e.Metadata = map[string]any{}
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_audit_log (id, action, actor_id, resource_type, resource_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.Action, e.ActorID, e.ResourceType, e.ResourceID, e.Metadata, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// ListAudit returns the newest audit rows for a resource type.
func (r *Repository) ListAudit(ctx context.Context, resourceType string, limit int) ([]*model.AuditEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, action, actor_id, resource_type, resource_id, metadata, created_at
		FROM admin_audit_log
		WHERE resource_type = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, resourceType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(
			&e.ID,
			&e.Action,
			&e.ActorID,
			&e.ResourceType,
			&e.ResourceID,
			&e.Metadata,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
