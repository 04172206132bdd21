package model

import (
	"slices"
	"time"
)

// Platform identifies a push-capable client platform.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// ValidPlatforms contains all supported device platforms.
var ValidPlatforms = []Platform{PlatformAndroid, PlatformIOS, PlatformWeb}

// IsValidPlatform checks if a platform is supported.
func IsValidPlatform(p Platform) bool {
	return slices.Contains(ValidPlatforms, p)
}

// TargetAll addresses every platform.
const TargetAll = "all"

// NotificationStatus represents the lifecycle of a notification.
type NotificationStatus string

const (
	NotificationDraft     NotificationStatus = "draft"
	NotificationScheduled NotificationStatus = "scheduled"
	NotificationSent      NotificationStatus = "sent"
	NotificationFailed    NotificationStatus = "failed"
)

// Notification is a push message addressed to a platform segment.
type Notification struct {
	ID             string             `json:"id"`
	Title          string             `json:"title"`
	Body           string             `json:"body"`
	ImageURL       *string            `json:"image_url,omitempty"`
	DeepLink       *string            `json:"deep_link,omitempty"`
	TargetPlatform string             `json:"target_platform"`
	Status         NotificationStatus `json:"status"`
	ScheduledAt    *time.Time         `json:"scheduled_at,omitempty"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
	CreatedBy      string             `json:"created_by"`
	CreatedAt      time.Time          `json:"created_at"`
}

// Targets reports whether the notification should reach the platform.
func (n *Notification) Targets(p Platform) bool {
	return n.TargetPlatform == "" || n.TargetPlatform == TargetAll || n.TargetPlatform == string(p)
}

// IsDue reports whether a scheduled notification should be sent at now.
func (n *Notification) IsDue(now time.Time) bool {
	return n.Status == NotificationScheduled && n.ScheduledAt != nil && !n.ScheduledAt.After(now)
}

// PushToken is a device registration with the push gateway.
type PushToken struct {
	ID        string    `json:"id"`
	DeviceID  string    `json:"device_id"`
	Token     string    `json:"-"`
	Platform  Platform  `json:"platform"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DeliveryStatus represents push delivery state.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusExhausted DeliveryStatus = "exhausted"
	DeliveryStatusDropped   DeliveryStatus = "dropped"
)

// PushDelivery tracks one notification sent to one token.
type PushDelivery struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	TokenID        string         `json:"token_id"`
	Status         DeliveryStatus `json:"status"`
	AttemptCount   int            `json:"attempt_count"`
	MaxAttempts    int            `json:"max_attempts"`
	NextRetryAt    time.Time      `json:"next_retry_at"`
	LastHTTPStatus *int           `json:"last_http_status,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// IsTerminal returns true if the delivery will not be retried.
func (d *PushDelivery) IsTerminal() bool {
	return d.Status == DeliveryStatusSent || d.Status == DeliveryStatusExhausted || d.Status == DeliveryStatusDropped
}

// TokenStats counts enabled tokens per platform.
type TokenStats struct {
	Android int `json:"android"`
	IOS     int `json:"ios"`
	Web     int `json:"web"`
	Total   int `json:"total"`
}
