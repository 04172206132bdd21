package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noorapp/noor/internal/model"
)

// Common errors for push repository operations.
var (
	ErrPushTokenNotFound    = errors.New("push token not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrDeliveryNotFound     = errors.New("push delivery not found")
)

// UpsertPushToken registers a device token. Re-registering an existing
// token moves it to the device and re-enables it.
func (r *Repository) UpsertPushToken(ctx context.Context, token *model.PushToken) error {
	query := `
		INSERT INTO device_push_tokens (id, device_id, token, platform, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, TRUE, $5, $5)
		ON CONFLICT (token) DO UPDATE SET
			device_id = EXCLUDED.device_id,
			platform = EXCLUDED.platform,
			enabled = TRUE,
			updated_at = EXCLUDED.updated_at
		RETURNING id, device_id, token, platform, enabled, created_at, updated_at
	`

	if token.ID == "" {
		token.ID = newID()
	}

	err := r.pool.QueryRow(ctx, query,
		token.ID,
		token.DeviceID,
		token.Token,
		string(token.Platform),
		time.Now().UTC(),
	).Scan(
		&token.ID,
		&token.DeviceID,
		&token.Token,
		&token.Platform,
		&token.Enabled,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert push token: %w", err)
	}
	return nil
}

// DisableDeviceToken disables a token registered to a device.
func (r *Repository) DisableDeviceToken(ctx context.Context, deviceID, token string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE device_push_tokens
		SET enabled = FALSE, updated_at = $3
		WHERE device_id = $1 AND token = $2 AND enabled = TRUE
	`, deviceID, token, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to disable push token: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPushTokenNotFound
	}
	return nil
}

// DisablePushToken disables a token by ID, e.g. after the gateway reports
// it unregistered.
func (r *Repository) DisablePushToken(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE device_push_tokens SET enabled = FALSE, updated_at = $2 WHERE id = $1
	`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to disable push token: %w", err)
	}
	return nil
}

// ListDeviceTokens returns the enabled tokens of a device.
func (r *Repository) ListDeviceTokens(ctx context.Context, deviceID string) ([]*model.PushToken, error) {
	return r.queryTokens(ctx, `
		SELECT id, device_id, token, platform, enabled, created_at, updated_at
		FROM device_push_tokens
		WHERE device_id = $1 AND enabled = TRUE
		ORDER BY created_at
	`, deviceID)
}

// ListTargetTokens returns enabled tokens matching a notification target.
// An empty deviceID addresses every device.
func (r *Repository) ListTargetTokens(ctx context.Context, target, deviceID string) ([]*model.PushToken, error) {
	return r.queryTokens(ctx, `
		SELECT id, device_id, token, platform, enabled, created_at, updated_at
		FROM device_push_tokens
		WHERE enabled = TRUE
		  AND ($1 = 'all' OR platform = $1)
		  AND ($2 = '' OR device_id = $2)
		ORDER BY created_at
	`, target, deviceID)
}

// GetPushToken retrieves a token by ID regardless of its state.
func (r *Repository) GetPushToken(ctx context.Context, id string) (*model.PushToken, error) {
	var token model.PushToken
	err := r.pool.QueryRow(ctx, `
		SELECT id, device_id, token, platform, enabled, created_at, updated_at
		FROM device_push_tokens WHERE id = $1
	`, id).Scan(
		&token.ID,
		&token.DeviceID,
		&token.Token,
		&token.Platform,
		&token.Enabled,
		&token.CreatedAt,
		&token.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPushTokenNotFound
		}
		return nil, fmt.Errorf("failed to get push token: %w", err)
	}
	return &token, nil
}

// TokenStats counts enabled tokens per platform.
func (r *Repository) TokenStats(ctx context.Context) (*model.TokenStats, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT platform, COUNT(*)
		FROM device_push_tokens
		WHERE enabled = TRUE
		GROUP BY platform
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count push tokens: %w", err)
	}
	defer rows.Close()

	stats := &model.TokenStats{}
	for rows.Next() {
		var platform string
		var count int
		if err := rows.Scan(&platform, &count); err != nil {
			return nil, fmt.Errorf("failed to scan token count: %w", err)
		}
		switch model.Platform(platform) {
		case model.PlatformAndroid:
			stats.Android = count
		case model.PlatformIOS:
			stats.IOS = count
		case model.PlatformWeb:
			stats.Web = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

func (r *Repository) queryTokens(ctx context.Context, query string, args ...any) ([]*model.PushToken, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query push tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*model.PushToken
	for rows.Next() {
		var token model.PushToken
		if err := rows.Scan(
			&token.ID,
			&token.DeviceID,
			&token.Token,
			&token.Platform,
			&token.Enabled,
			&token.CreatedAt,
			&token.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens = append(tokens, &token)
	}
	return tokens, rows.Err()
}

const notificationColumns = `
	id, title, body, image_url, deep_link, target_platform, status,
	scheduled_at, sent_at, created_by, created_at
`

// CreateNotification inserts a notification.
func (r *Repository) CreateNotification(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, title, body, image_url, deep_link, target_platform, status,
			scheduled_at, created_by, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if n.ID == "" {
		n.ID = newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.TargetPlatform == "" {
		n.TargetPlatform = model.TargetAll
	}
	if n.Status == "" {
		n.Status = model.NotificationDraft
	}

	_, err := r.pool.Exec(ctx, query,
		n.ID,
		n.Title,
		n.Body,
		n.ImageURL,
		n.DeepLink,
		n.TargetPlatform,
		string(n.Status),
		n.ScheduledAt,
		n.CreatedBy,
		n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// GetNotification retrieves a notification by ID.
func (r *Repository) GetNotification(ctx context.Context, id string) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	n, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return n, nil
}

// MarkNotification sets the final status of a notification.
func (r *Repository) MarkNotification(ctx context.Context, id string, status model.NotificationStatus, sentAt *time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET status = $2, sent_at = $3 WHERE id = $1`,
		id, string(status), sentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// ClaimDueNotifications moves scheduled notifications that are due back to
// draft and returns them, so that concurrent workers never pick the same row.
func (r *Repository) ClaimDueNotifications(ctx context.Context, now time.Time, limit int) ([]*model.Notification, error) {
	query := `
		UPDATE notifications SET status = 'draft'
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'scheduled' AND scheduled_at <= $1
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + notificationColumns

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to claim due notifications: %w", err)
	}
	defer rows.Close()

	var out []*model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	err := row.Scan(
		&n.ID,
		&n.Title,
		&n.Body,
		&n.ImageURL,
		&n.DeepLink,
		&n.TargetPlatform,
		&n.Status,
		&n.ScheduledAt,
		&n.SentAt,
		&n.CreatedBy,
		&n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// CreateDelivery records one delivery attempt chain for a token.
func (r *Repository) CreateDelivery(ctx context.Context, d *model.PushDelivery) error {
	query := `
		INSERT INTO push_deliveries (
			id, notification_id, token_id, status, attempt_count, max_attempts,
			next_retry_at, last_http_status, last_error, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (notification_id, token_id) DO NOTHING
	`

	if d.ID == "" {
		d.ID = newID()
	}
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now

	_, err := r.pool.Exec(ctx, query,
		d.ID,
		d.NotificationID,
		d.TokenID,
		string(d.Status),
		d.AttemptCount,
		d.MaxAttempts,
		d.NextRetryAt,
		d.LastHTTPStatus,
		truncateError(d.LastError),
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create push delivery: %w", err)
	}
	return nil
}

// GetPendingDeliveries retrieves deliveries whose retry time has come.
func (r *Repository) GetPendingDeliveries(ctx context.Context, now time.Time, limit int) ([]*model.PushDelivery, error) {
	query := `
		SELECT d.id, d.notification_id, d.token_id, d.status, d.attempt_count,
			   d.max_attempts, d.next_retry_at, d.last_http_status, d.last_error,
			   d.created_at, d.updated_at
		FROM push_deliveries d
		WHERE d.status = 'pending'
		  AND d.next_retry_at <= $1
		ORDER BY d.next_retry_at
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deliveries: %w", err)
	}
	defer rows.Close()

	var out []*model.PushDelivery
	for rows.Next() {
		var d model.PushDelivery
		if err := rows.Scan(
			&d.ID,
			&d.NotificationID,
			&d.TokenID,
			&d.Status,
			&d.AttemptCount,
			&d.MaxAttempts,
			&d.NextRetryAt,
			&d.LastHTTPStatus,
			&d.LastError,
			&d.CreatedAt,
			&d.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan push delivery: %w", err)
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

// UpdateDelivery persists the outcome of a delivery attempt.
func (r *Repository) UpdateDelivery(ctx context.Context, d *model.PushDelivery) error {
	query := `
		UPDATE push_deliveries
		SET status = $2,
			attempt_count = $3,
			next_retry_at = $4,
			last_http_status = $5,
			last_error = $6,
			updated_at = $7
		WHERE id = $1
	`

	d.UpdatedAt = time.Now().UTC()
	tag, err := r.pool.Exec(ctx, query,
		d.ID,
		string(d.Status),
		d.AttemptCount,
		d.NextRetryAt,
		d.LastHTTPStatus,
		truncateError(d.LastError),
		d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update push delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

func truncateError(msg string) string {
	if len(msg) > 500 {
		return msg[:500]
	}
	return msg
}
