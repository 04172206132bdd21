package model

import "time"

// Notification offset bounds in minutes relative to the prayer time.
const (
	MinNotificationOffset = -30
	MaxNotificationOffset = 30
)

// NotificationPreference is a device's prayer reminder configuration.
type NotificationPreference struct {
	ID                 string         `json:"id"`
	DeviceID           string         `json:"device_id"`
	UserID             *string        `json:"user_id,omitempty"`
	Latitude           float64        `json:"latitude"`
	Longitude          float64        `json:"longitude"`
	Timezone           string         `json:"timezone"`
	CalculationMethod  string         `json:"calculation_method"`
	EnabledPrayers     EnabledPrayers `json:"enabled_prayers"`
	NotificationOffset int            `json:"notification_offset"`
	Enabled            bool           `json:"enabled"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Location resolves the preference timezone, falling back to UTC.
func (p *NotificationPreference) Location() *time.Location {
	if p.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Actor returns the user that owns the preference, or the system actor
// for anonymous devices.
func (p *NotificationPreference) Actor() string {
	if p.UserID != nil && *p.UserID != "" {
		return *p.UserID
	}
	return SystemActorID
}

// PrayerNotificationLog records that a reminder went out for one prayer on
// one local date. (PreferenceID, Prayer, PrayerDate) is unique.
type PrayerNotificationLog struct {
	ID             string     `json:"id"`
	PreferenceID   string     `json:"preference_id"`
	Prayer         PrayerName `json:"prayer_name"`
	PrayerTime     time.Time  `json:"prayer_time"`
	PrayerDate     string     `json:"prayer_date"`
	NotificationID *string    `json:"notification_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
