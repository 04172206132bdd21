package model

import (
	"testing"
	"time"
)

func TestEnabledPrayers_Enabled(t *testing.T) {
	t.Parallel()

	enabled := EnabledPrayers{
		PrayerIsha:    true,
		PrayerFajr:    true,
		PrayerAsr:     false,
		PrayerSunrise: true,
	}

	got := enabled.Enabled()
	want := []PrayerName{PrayerFajr, PrayerIsha}
	if len(got) != len(want) {
		t.Fatalf("Enabled() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Enabled()[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDefaultEnabledPrayers(t *testing.T) {
	t.Parallel()

	enabled := DefaultEnabledPrayers()
	if len(enabled.Enabled()) != 5 {
		t.Errorf("expected 5 enabled prayers, got %d", len(enabled.Enabled()))
	}
	if enabled[PrayerSunrise] {
		t.Error("sunrise should not be enabled by default")
	}
}

func TestNotificationPreference_Location(t *testing.T) {
	t.Parallel()

	tests := []struct {
		timezone string
		want     string
	}{
		{"", "UTC"},
		{"Not/AZone", "UTC"},
		{"Asia/Riyadh", "Asia/Riyadh"},
	}

	for _, tt := range tests {
		p := &NotificationPreference{Timezone: tt.timezone}
		if got := p.Location().String(); got != tt.want {
			t.Errorf("Location(%q) = %s, want %s", tt.timezone, got, tt.want)
		}
	}
}

func TestNotificationPreference_Actor(t *testing.T) {
	t.Parallel()

	anon := &NotificationPreference{}
	if anon.Actor() != SystemActorID {
		t.Errorf("expected system actor, got %s", anon.Actor())
	}

	userID := "0b6f3a9e-0000-4000-8000-000000000001"
	owned := &NotificationPreference{UserID: &userID}
	if owned.Actor() != userID {
		t.Errorf("expected %s, got %s", userID, owned.Actor())
	}
}

func TestNotification_Targets(t *testing.T) {
	t.Parallel()

	all := &Notification{TargetPlatform: TargetAll}
	ios := &Notification{TargetPlatform: string(PlatformIOS)}

	if !all.Targets(PlatformAndroid) || !all.Targets(PlatformWeb) {
		t.Error("target all should reach every platform")
	}
	if !ios.Targets(PlatformIOS) {
		t.Error("ios notification should reach ios")
	}
	if ios.Targets(PlatformAndroid) {
		t.Error("ios notification should not reach android")
	}
}

func TestScheduledItems_IsDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	tests := []struct {
		name   string
		status NotificationStatus
		at     *time.Time
		want   bool
	}{
		{"scheduled past", NotificationScheduled, &past, true},
		{"scheduled now", NotificationScheduled, &now, true},
		{"scheduled future", NotificationScheduled, &future, false},
		{"scheduled without time", NotificationScheduled, nil, false},
		{"draft past", NotificationDraft, &past, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{Status: tt.status, ScheduledAt: tt.at}
			if got := n.IsDue(now); got != tt.want {
				t.Errorf("Notification.IsDue = %v, want %v", got, tt.want)
			}

			contentStatus := ContentStatus(tt.status)
			if tt.status == NotificationScheduled {
				contentStatus = ContentScheduled
			}
			c := &Content{Status: contentStatus, ScheduledAt: tt.at}
			if got := c.IsDue(now); got != tt.want {
				t.Errorf("Content.IsDue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSecurityConfig_IsLocked(t *testing.T) {
	t.Parallel()

	now := time.Now()
	later := now.Add(time.Minute)
	earlier := now.Add(-time.Minute)

	if (&SecurityConfig{}).IsLocked(now) {
		t.Error("config without lock should not be locked")
	}
	if !(&SecurityConfig{LockedUntil: &later}).IsLocked(now) {
		t.Error("future lock should be locked")
	}
	if (&SecurityConfig{LockedUntil: &earlier}).IsLocked(now) {
		t.Error("expired lock should not be locked")
	}
}

func TestRole_IsAdmin(t *testing.T) {
	t.Parallel()

	for role, want := range map[Role]bool{
		RoleUser:       false,
		RoleEditor:     false,
		RoleAdmin:      true,
		RoleSuperAdmin: true,
	} {
		if got := role.IsAdmin(); got != want {
			t.Errorf("%s.IsAdmin() = %v, want %v", role, got, want)
		}
	}
}
