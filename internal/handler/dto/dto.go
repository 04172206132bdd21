// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/noorapp/noor/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// PrayerTimesResponse is returned by GET /api/v1/prayer-times.
type PrayerTimesResponse struct {
	Date       string            `json:"date"`
	Timezone   string            `json:"timezone"`
	Method     string            `json:"method"`
	Source     string            `json:"source"`
	Times      map[string]string `json:"times"`
	Hijri      *HijriDate        `json:"hijri,omitempty"`
	NextPrayer *NextPrayer       `json:"next_prayer,omitempty"`
	Qibla      QiblaResponse     `json:"qibla"`
}

// HijriDate is the Islamic calendar date of a timings day.
type HijriDate struct {
	Date  string `json:"date"`
	Day   int    `json:"day"`
	Month string `json:"month"`
	Year  int    `json:"year"`
}

// NextPrayer is the upcoming prayer and the time left until it.
type NextPrayer struct {
	Name      string    `json:"name"`
	Label     string    `json:"label"`
	At        time.Time `json:"at"`
	InSeconds int64     `json:"in_seconds"`
	Countdown string    `json:"countdown"`
}

// QiblaResponse is the direction of the Kaaba from a point.
type QiblaResponse struct {
	Bearing    float64 `json:"bearing"`
	Compass    string  `json:"compass"`
	DistanceKm float64 `json:"distance_km"`
}

// SelectDhikrRequest switches the active dhikr.
type SelectDhikrRequest struct {
	Index *int `json:"index" validate:"required,min=0"`
}

// PreferenceRequest is the body of PUT /api/v1/preferences/{deviceID}.
type PreferenceRequest struct {
	Latitude           *float64        `json:"latitude" validate:"required,latitude"`
	Longitude          *float64        `json:"longitude" validate:"required,longitude"`
	Timezone           string          `json:"timezone" validate:"required,iana_tz"`
	CalculationMethod  string          `json:"calculation_method" validate:"omitempty,max=32"`
	EnabledPrayers     map[string]bool `json:"enabled_prayers,omitempty"`
	NotificationOffset int             `json:"notification_offset" validate:"offset"`
	Enabled            *bool           `json:"enabled,omitempty"`
}

// RegisterTokenRequest registers a device push token.
type RegisterTokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform" validate:"required,platform"`
}

// UnregisterTokenRequest disables a device push token.
type UnregisterTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// PushTokenResponse is a registered token without its secret value.
type PushTokenResponse struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Platform  string    `json:"platform"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPushTokenResponse converts a PushToken model to its DTO.
func ToPushTokenResponse(t *model.PushToken) *PushTokenResponse {
	return &PushTokenResponse{
		ID:        t.ID,
		DeviceID:  t.DeviceID,
		Platform:  string(t.Platform),
		Enabled:   t.Enabled,
		CreatedAt: t.CreatedAt,
	}
}

// CreateNotificationRequest is the body of POST /api/v1/admin/notifications.
// A future ScheduledAt schedules the notification; otherwise it is sent now.
type CreateNotificationRequest struct {
	Title          string     `json:"title" validate:"required,max=120"`
	Body           string     `json:"body" validate:"required,max=1000"`
	ImageURL       string     `json:"image_url,omitempty" validate:"omitempty,max=2048"`
	DeepLink       string     `json:"deep_link,omitempty" validate:"omitempty,max=512"`
	TargetPlatform string     `json:"target_platform,omitempty" validate:"omitempty,oneof=all android ios web"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
}

// NotificationResponse reports a created notification and, when it was
// sent immediately, the delivery totals.
type NotificationResponse struct {
	Notification *model.Notification `json:"notification"`
	Sent         *int                `json:"sent,omitempty"`
	Failed       *int                `json:"failed,omitempty"`
}

// PushSendResponse is returned by the internal push trigger.
type PushSendResponse struct {
	NotificationID string `json:"notification_id"`
	Sent           int    `json:"sent"`
	Failed         int    `json:"failed"`
}
