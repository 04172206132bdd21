package model

import "time"

// SecurityConfigID is the primary key of the single security config row.
const SecurityConfigID = 1

// SecurityConfig holds the admin unlock settings.
type SecurityConfig struct {
	ID                 int        `json:"id"`
	AdminEmail         string     `json:"admin_email"`
	PasscodeHash       string     `json:"-"`
	RequireFingerprint bool       `json:"require_fingerprint"`
	FailedAttempts     int        `json:"failed_attempts"`
	LockedUntil        *time.Time `json:"locked_until,omitempty"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsConfigured returns true once a passcode has been set.
func (c *SecurityConfig) IsConfigured() bool {
	return c != nil && c.PasscodeHash != ""
}

// IsLocked reports whether unlocks are refused at now.
func (c *SecurityConfig) IsLocked(now time.Time) bool {
	return c.LockedUntil != nil && c.LockedUntil.After(now)
}

// UnlockAttempt is one passcode verification, successful or not.
type UnlockAttempt struct {
	ID                string    `json:"id"`
	DeviceFingerprint string    `json:"device_fingerprint"`
	Success           bool      `json:"success"`
	Reason            string    `json:"reason,omitempty"`
	IP                string    `json:"ip,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// PasscodeVerification is the outcome of checking an admin passcode.
type PasscodeVerification struct {
	OK          bool       `json:"ok"`
	Reason      string     `json:"reason,omitempty"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
}

// Verification failure reasons.
const (
	ReasonInvalid             = "invalid"
	ReasonLocked              = "locked"
	ReasonFingerprintRequired = "fingerprint_required"
	ReasonNotConfigured       = "not_configured"
)

// Resource types recorded in the audit log.
const (
	ResourceSecurity = "security"
	ResourceContent  = "content"
	ResourceAuth     = "auth"
	ResourcePush     = "notification"
)

// Audit actions.
const (
	AuditUnlockSuccess          = "unlock_success"
	AuditUnlockFailed           = "unlock_failed"
	AuditSecuritySettingUpdated = "security_setting_updated"
	AuditPasscodeChanged        = "passcode_changed"
	AuditForcedLock             = "forced_lock"
	AuditSecurityEvent          = "security_event"
	AuditContentAutoPublish     = "content.auto_publish"
	AuditNotificationSent       = "notification.sent"
	AuditNotificationScheduled  = "notification.scheduled"
)

// AuditEntry is a row in the admin audit log.
type AuditEntry struct {
	ID           string         `json:"id"`
	Action       string         `json:"action"`
	ActorID      string         `json:"actor_id"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}
