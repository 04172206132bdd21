package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/prayer"
)

type failingProvider struct{}

func (failingProvider) Timings(context.Context, prayer.Query) (*prayer.Timings, error) {
	return nil, errors.New("upstream timeout")
}

// capturingProvider records the query and answers with the offline calculator.
type capturingProvider struct {
	last prayer.Query
}

func (p *capturingProvider) Timings(ctx context.Context, q prayer.Query) (*prayer.Timings, error) {
	p.last = q
	return prayer.NewCalculator().Timings(ctx, q)
}

func riyadhMorning(t *testing.T) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Riyadh")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return time.Date(2024, time.June, 15, 10, 0, 0, 0, loc)
}

func TestPrayerHandler_PrayerTimes(t *testing.T) {
	provider := &capturingProvider{}
	h := NewPrayerHandler(provider, discardLogger())
	now := riyadhMorning(t)
	h.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/prayer-times?latitude=24.7136&longitude=46.6753&timezone=Asia/Riyadh&method=makkah", nil)
	rec := httptest.NewRecorder()

	h.PrayerTimes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp dto.PrayerTimesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if provider.last.Method != prayer.MethodMakkah {
		t.Errorf("expected method Makkah, got %s", provider.last.Method)
	}
	if resp.Date != "2024-06-15" {
		t.Errorf("expected date 2024-06-15, got %s", resp.Date)
	}
	if resp.Timezone != "Asia/Riyadh" {
		t.Errorf("expected timezone Asia/Riyadh, got %s", resp.Timezone)
	}
	for _, name := range []string{"fajr", "sunrise", "dhuhr", "asr", "maghrib", "isha"} {
		if resp.Times[name] == "" {
			t.Errorf("missing time for %s", name)
		}
	}

	if resp.NextPrayer == nil {
		t.Fatal("expected next prayer")
	}
	if resp.NextPrayer.Name != "dhuhr" || resp.NextPrayer.Label != "Dhuhr" {
		t.Errorf("expected next prayer dhuhr, got %+v", resp.NextPrayer)
	}
	if resp.NextPrayer.InSeconds <= 0 || resp.NextPrayer.InSeconds > 3*3600 {
		t.Errorf("unexpected countdown seconds: %d", resp.NextPrayer.InSeconds)
	}

	if resp.Qibla.Compass != "SW" {
		t.Errorf("expected Qibla SW from Riyadh, got %s (%.2f)", resp.Qibla.Compass, resp.Qibla.Bearing)
	}
	if resp.Qibla.DistanceKm < 750 || resp.Qibla.DistanceKm > 830 {
		t.Errorf("unexpected distance: %.0f km", resp.Qibla.DistanceKm)
	}
}

func TestPrayerHandler_PastDateHasNoCountdown(t *testing.T) {
	h := NewPrayerHandler(&capturingProvider{}, discardLogger())
	now := riyadhMorning(t)
	h.now = func() time.Time { return now }

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/prayer-times?latitude=24.7136&longitude=46.6753&timezone=Asia/Riyadh&date=2024-01-01", nil)
	rec := httptest.NewRecorder()

	h.PrayerTimes(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp dto.PrayerTimesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Date != "2024-01-01" {
		t.Errorf("expected requested date, got %s", resp.Date)
	}
	if resp.NextPrayer != nil {
		t.Errorf("expected no next prayer for a past date, got %+v", resp.NextPrayer)
	}
	if resp.Method != string(prayer.DefaultMethod) {
		t.Errorf("expected default method, got %s", resp.Method)
	}
}

func TestPrayerHandler_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		query string
		field string
	}{
		{"missing latitude", "longitude=46.6", "latitude"},
		{"latitude out of range", "latitude=91&longitude=46.6", "latitude"},
		{"longitude not a number", "latitude=24.7&longitude=east", "longitude"},
		{"longitude out of range", "latitude=24.7&longitude=-180.5", "longitude"},
		{"bad timezone", "latitude=24.7&longitude=46.6&timezone=Mars/Olympus", "timezone"},
		{"bad date", "latitude=24.7&longitude=46.6&date=15-06-2024", "date"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewPrayerHandler(failingProvider{}, discardLogger())
			rec := httptest.NewRecorder()
			h.PrayerTimes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prayer-times?"+tt.query, nil))

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Details[tt.field] == "" {
				t.Errorf("expected detail for %s, got %v", tt.field, resp.Details)
			}
		})
	}
}

func TestPrayerHandler_ProviderFailure(t *testing.T) {
	h := NewPrayerHandler(failingProvider{}, discardLogger())

	rec := httptest.NewRecorder()
	h.PrayerTimes(rec, httptest.NewRequest(http.MethodGet, "/api/v1/prayer-times?latitude=51.5&longitude=-0.12", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "PRAYER_TIMES_UNAVAILABLE" {
		t.Errorf("unexpected code: %s", resp.Code)
	}
}

func TestPrayerHandler_Qibla(t *testing.T) {
	h := NewPrayerHandler(failingProvider{}, discardLogger())

	rec := httptest.NewRecorder()
	h.Qibla(rec, httptest.NewRequest(http.MethodGet, "/api/v1/qibla?latitude=51.5074&longitude=-0.1278", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var resp dto.QiblaResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	// London faces roughly south-east, about 119 degrees.
	if resp.Bearing < 118 || resp.Bearing > 120 {
		t.Errorf("unexpected bearing: %.2f", resp.Bearing)
	}
	if resp.Compass != "SE" {
		t.Errorf("expected SE, got %s", resp.Compass)
	}

	rec = httptest.NewRecorder()
	h.Qibla(rec, httptest.NewRequest(http.MethodGet, "/api/v1/qibla?latitude=abc&longitude=0", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
}

func TestCompassPoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bearing float64
		want    string
	}{
		{0, "N"},
		{22.4, "N"},
		{22.5, "NE"},
		{90, "E"},
		{180, "S"},
		{244, "SW"},
		{292.5, "NW"},
		{337.4, "NW"},
		{359.9, "N"},
	}
	for _, tt := range tests {
		tt := tt
		if got := compassPoint(tt.bearing); got != tt.want {
			t.Errorf("compassPoint(%v) = %s, want %s", tt.bearing, got, tt.want)
		}
	}
}

func TestFormatCountdown(t *testing.T) {
	t.Parallel()

	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0m"},
		{-time.Minute, "0m"},
		{30 * time.Second, "1m"},
		{45 * time.Minute, "45m"},
		{2*time.Hour + 5*time.Minute, "2h 5m"},
		{2*time.Hour + 4*time.Minute + time.Second, "2h 5m"},
	}
	for _, tt := range tests {
		tt := tt
		if got := formatCountdown(tt.d); got != tt.want {
			t.Errorf("formatCountdown(%v) = %s, want %s", tt.d, got, tt.want)
		}
	}
}
