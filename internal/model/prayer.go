// Package model defines domain entities for the application.
package model

import "slices"

// PrayerName identifies one of the daily prayer times.
type PrayerName string

const (
	PrayerFajr    PrayerName = "fajr"
	PrayerSunrise PrayerName = "sunrise"
	PrayerDhuhr   PrayerName = "dhuhr"
	PrayerAsr     PrayerName = "asr"
	PrayerMaghrib PrayerName = "maghrib"
	PrayerIsha    PrayerName = "isha"
)

// DailyPrayers lists all six daily times in chronological order.
var DailyPrayers = []PrayerName{
	PrayerFajr,
	PrayerSunrise,
	PrayerDhuhr,
	PrayerAsr,
	PrayerMaghrib,
	PrayerIsha,
}

// NotifiablePrayers are the five prayers a user can be reminded of.
// Sunrise is a time marker, not a prayer.
var NotifiablePrayers = []PrayerName{
	PrayerFajr,
	PrayerDhuhr,
	PrayerAsr,
	PrayerMaghrib,
	PrayerIsha,
}

// IsNotifiable reports whether reminders can be scheduled for the prayer.
func (p PrayerName) IsNotifiable() bool {
	return slices.Contains(NotifiablePrayers, p)
}

// EnabledPrayers maps a prayer to whether reminders are on for it.
type EnabledPrayers map[PrayerName]bool

// DefaultEnabledPrayers returns a map with every notifiable prayer enabled.
func DefaultEnabledPrayers() EnabledPrayers {
	enabled := make(EnabledPrayers, len(NotifiablePrayers))
	for _, p := range NotifiablePrayers {
		enabled[p] = true
	}
	return enabled
}

// Enabled returns the enabled notifiable prayers in chronological order.
func (e EnabledPrayers) Enabled() []PrayerName {
	out := make([]PrayerName, 0, len(NotifiablePrayers))
	for _, p := range NotifiablePrayers {
		if e[p] {
			out = append(out, p)
		}
	}
	return out
}
