package prayer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noorapp/noor/internal/model"
)

// ErrTimingsUnavailable is returned when no provider could produce timings.
var ErrTimingsUnavailable = errors.New("prayer timings unavailable")

// Clock is a wall-clock time of day.
type Clock struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

// ParseClock parses "HH:MM", tolerating a trailing zone such as "05:13 (+03)".
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		s = s[:i]
	}
	h, m, ok := strings.Cut(s, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid clock %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// String formats the clock as HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Hijri is the Islamic calendar date of a timings day.
type Hijri struct {
	Date  string `json:"date"`
	Day   int    `json:"day"`
	Month string `json:"month"`
	Year  int    `json:"year"`
}

// Timings are the six daily times for one place and local date.
// Times may lack entries the method cannot produce, such as Isha at
// high latitudes in summer.
type Timings struct {
	Date     time.Time                  `json:"date"`
	Location *time.Location             `json:"-"`
	Times    map[model.PrayerName]Clock `json:"times"`
	Hijri    *Hijri                     `json:"hijri,omitempty"`
	Method   Method                     `json:"method"`
	Source   string                     `json:"source"`
}

// At returns the absolute time of a prayer on the timings date.
func (t *Timings) At(p model.PrayerName) (time.Time, bool) {
	c, ok := t.Times[p]
	if !ok {
		return time.Time{}, false
	}
	return t.clockOn(t.Date, c), true
}

func (t *Timings) clockOn(day time.Time, c Clock) time.Time {
	loc := t.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

// NextPrayer returns the first of the six times strictly after now at
// minute resolution. After Isha the next prayer is tomorrow's Fajr, taken
// from today's Fajr clock.
func NextPrayer(t *Timings, now time.Time) (model.PrayerName, time.Duration, bool) {
	cutoff := now.Truncate(time.Minute)
	for _, p := range model.DailyPrayers {
		at, ok := t.At(p)
		if !ok {
			continue
		}
		if at.After(cutoff) {
			return p, at.Sub(now), true
		}
	}

	fajr, ok := t.Times[model.PrayerFajr]
	if !ok {
		return "", 0, false
	}
	at := t.clockOn(t.Date.AddDate(0, 0, 1), fajr)
	return model.PrayerFajr, at.Sub(now), true
}

// DefaultNotifyWindow is how long before the target time a reminder is due.
const DefaultNotifyWindow = 5 * time.Minute

// IsTimeToNotify reports whether a reminder for prayerAt shifted by
// offsetMinutes falls in [now, now+window).
func IsTimeToNotify(prayerAt time.Time, offsetMinutes int, now time.Time, window time.Duration) bool {
	if window <= 0 {
		window = DefaultNotifyWindow
	}
	target := prayerAt.Add(time.Duration(offsetMinutes) * time.Minute)
	diff := target.Sub(now)
	return diff >= 0 && diff < window
}

// Display returns the emoji and human name used in reminder titles.
func Display(p model.PrayerName) (emoji, name string) {
	switch p {
	case model.PrayerFajr:
		return "🌅", "Fajr"
	case model.PrayerSunrise:
		return "🌄", "Sunrise"
	case model.PrayerDhuhr:
		return "☀️", "Dhuhr"
	case model.PrayerAsr:
		return "🌤️", "Asr"
	case model.PrayerMaghrib:
		return "🌇", "Maghrib"
	case model.PrayerIsha:
		return "🌙", "Isha"
	default:
		return "🕌", string(p)
	}
}

// Query selects the timings to fetch.
type Query struct {
	Latitude  float64
	Longitude float64
	// Date is the local calendar date; only year, month and day are used.
	Date     time.Time
	Method   Method
	Timezone string
}

// Location resolves the query timezone, nil when unset or invalid.
func (q Query) Location() *time.Location {
	if q.Timezone == "" {
		return nil
	}
	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		return nil
	}
	return loc
}

// Provider returns daily prayer timings.
type Provider interface {
	Timings(ctx context.Context, q Query) (*Timings, error)
}
