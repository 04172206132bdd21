package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noorapp/noor/internal/model"
)

// Common errors for preference repository operations.
var (
	ErrPreferenceNotFound = errors.New("notification preference not found")
)

const preferenceColumns = `
	id, device_id, user_id, latitude, longitude, timezone, calculation_method,
	enabled_prayers, notification_offset, enabled, created_at, updated_at
`

// UpsertPreference creates or replaces the preference for a device.
// The stored row, including its ID, is written back into pref.
func (r *Repository) UpsertPreference(ctx context.Context, pref *model.NotificationPreference) error {
	query := `
		INSERT INTO user_notification_preferences (
			id, device_id, user_id, latitude, longitude, timezone, calculation_method,
			enabled_prayers, notification_offset, enabled, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (device_id) DO UPDATE SET
			user_id = COALESCE(EXCLUDED.user_id, user_notification_preferences.user_id),
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			timezone = EXCLUDED.timezone,
			calculation_method = EXCLUDED.calculation_method,
			enabled_prayers = EXCLUDED.enabled_prayers,
			notification_offset = EXCLUDED.notification_offset,
			enabled = EXCLUDED.enabled,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + preferenceColumns

	if pref.ID == "" {
		pref.ID = newID()
	}
	if pref.EnabledPrayers == nil {
		pref.EnabledPrayers = model.DefaultEnabledPrayers()
	}

	stored, err := scanPreference(r.pool.QueryRow(ctx, query,
		pref.ID,
		pref.DeviceID,
		pref.UserID,
		pref.Latitude,
		pref.Longitude,
		pref.Timezone,
		pref.CalculationMethod,
		pref.EnabledPrayers,
		pref.NotificationOffset,
		pref.Enabled,
		time.Now().UTC(),
	))
	if err != nil {
		return fmt.Errorf("failed to upsert preference: %w", err)
	}

	*pref = *stored
	return nil
}

// GetPreferenceByDevice retrieves the preference registered for a device.
func (r *Repository) GetPreferenceByDevice(ctx context.Context, deviceID string) (*model.NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + `
		FROM user_notification_preferences
		WHERE device_id = $1
	`

	pref, err := scanPreference(r.pool.QueryRow(ctx, query, deviceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPreferenceNotFound
		}
		return nil, fmt.Errorf("failed to get preference: %w", err)
	}
	return pref, nil
}

// ListEnabledPreferences returns every preference with reminders switched on.
func (r *Repository) ListEnabledPreferences(ctx context.Context) ([]*model.NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + `
		FROM user_notification_preferences
		WHERE enabled = TRUE
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*model.NotificationPreference
	for rows.Next() {
		pref, err := scanPreference(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, pref)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}
	return prefs, nil
}

func scanPreference(row pgx.Row) (*model.NotificationPreference, error) {
	var pref model.NotificationPreference
	err := row.Scan(
		&pref.ID,
		&pref.DeviceID,
		&pref.UserID,
		&pref.Latitude,
		&pref.Longitude,
		&pref.Timezone,
		&pref.CalculationMethod,
		&pref.EnabledPrayers,
		&pref.NotificationOffset,
		&pref.Enabled,
		&pref.CreatedAt,
		&pref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &pref, nil
}

// ErrAlreadyDispatched is returned when a reminder for the same preference,
// prayer and local date has already been claimed.
var ErrAlreadyDispatched = errors.New("prayer notification already dispatched")

// ClaimPrayerNotification inserts the log row that reserves a reminder slot.
// A concurrent or earlier claim for the same slot yields ErrAlreadyDispatched.
func (r *Repository) ClaimPrayerNotification(ctx context.Context, entry *model.PrayerNotificationLog) error {
	query := `
		INSERT INTO prayer_notification_log (id, preference_id, prayer_name, prayer_time, prayer_date, created_at)
		VALUES ($1, $2, $3, $4, $5::text::date, $6)
		ON CONFLICT (preference_id, prayer_name, prayer_date) DO NOTHING
	`

	if entry.ID == "" {
		entry.ID = newID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tag, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.PreferenceID,
		string(entry.Prayer),
		entry.PrayerTime,
		entry.PrayerDate,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to claim prayer notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyDispatched
	}
	return nil
}

// ReleasePrayerNotification deletes a claim so the slot can be retried.
func (r *Repository) ReleasePrayerNotification(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM prayer_notification_log WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to release prayer notification: %w", err)
	}
	return nil
}

// AttachPrayerNotification links a claimed slot to the notification sent for it.
func (r *Repository) AttachPrayerNotification(ctx context.Context, id, notificationID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE prayer_notification_log SET notification_id = $2 WHERE id = $1`,
		id, notificationID,
	)
	if err != nil {
		return fmt.Errorf("failed to attach notification: %w", err)
	}
	return nil
}
