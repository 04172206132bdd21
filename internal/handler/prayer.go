package handler

import (
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/prayer"
)

// dateLayout is the format of the date query parameter.
const dateLayout = "2006-01-02"

// PrayerHandler serves prayer times and Qibla direction.
type PrayerHandler struct {
	provider prayer.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewPrayerHandler creates a PrayerHandler.
func NewPrayerHandler(provider prayer.Provider, logger *slog.Logger) *PrayerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PrayerHandler{
		provider: provider,
		logger:   logger.With("component", "prayer_handler"),
		now:      time.Now,
	}
}

// PrayerTimes returns the six daily times, the Hijri date, the next
// prayer with a countdown and the Qibla bearing.
//
// GET /api/v1/prayer-times?latitude=&longitude=&date=&method=&timezone=
func (h *PrayerHandler) PrayerTimes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	details := make(map[string]string)

	lat, lon := parseCoordinates(q.Get("latitude"), q.Get("longitude"), details)

	loc := time.UTC
	if tz := q.Get("timezone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			details["timezone"] = "must be a valid IANA timezone"
		} else {
			loc = l
		}
	}

	now := h.now().In(loc)
	day := now
	if raw := q.Get("date"); raw != "" {
		d, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			details["date"] = "must be formatted as YYYY-MM-DD"
		} else {
			day = d
		}
	}

	if len(details) > 0 {
		writeDetails(w, details)
		return
	}

	method, _ := prayer.ParseMethod(q.Get("method"))
	query := prayer.Query{
		Latitude:  lat,
		Longitude: lon,
		Date:      day,
		Method:    method,
		Timezone:  q.Get("timezone"),
	}

	timings, err := h.provider.Timings(r.Context(), query)
	if err != nil {
		h.logger.Error("prayer timings lookup failed",
			"latitude", lat,
			"longitude", lon,
			"method", method,
			"error", err,
		)
		writeError(w, http.StatusBadGateway, "PRAYER_TIMES_UNAVAILABLE", "Prayer times are unavailable right now")
		return
	}

	resp := dto.PrayerTimesResponse{
		Date:   timings.Date.Format(dateLayout),
		Method: string(timings.Method),
		Source: timings.Source,
		Times:  make(map[string]string, len(timings.Times)),
		Qibla:  qiblaFor(lat, lon),
	}
	if timings.Location != nil {
		resp.Timezone = timings.Location.String()
	} else {
		resp.Timezone = loc.String()
	}
	for _, p := range model.DailyPrayers {
		if c, ok := timings.Times[p]; ok {
			resp.Times[string(p)] = c.String()
		}
	}
	if timings.Hijri != nil {
		resp.Hijri = &dto.HijriDate{
			Date:  timings.Hijri.Date,
			Day:   timings.Hijri.Day,
			Month: timings.Hijri.Month,
			Year:  timings.Hijri.Year,
		}
	}

	// The countdown only makes sense for today's timings.
	if sameDay(timings.Date, now) {
		if p, until, ok := prayer.NextPrayer(timings, now); ok {
			_, label := prayer.Display(p)
			resp.NextPrayer = &dto.NextPrayer{
				Name:      string(p),
				Label:     label,
				At:        now.Add(until).Truncate(time.Minute),
				InSeconds: int64(until / time.Second),
				Countdown: formatCountdown(until),
			}
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// Qibla returns the bearing and distance to the Kaaba.
//
// GET /api/v1/qibla?latitude=&longitude=
func (h *PrayerHandler) Qibla(w http.ResponseWriter, r *http.Request) {
	details := make(map[string]string)
	lat, lon := parseCoordinates(r.URL.Query().Get("latitude"), r.URL.Query().Get("longitude"), details)
	if len(details) > 0 {
		writeDetails(w, details)
		return
	}
	writeJSON(w, http.StatusOK, qiblaFor(lat, lon))
}

// parseCoordinates reads latitude and longitude, recording problems in details.
func parseCoordinates(rawLat, rawLon string, details map[string]string) (float64, float64) {
	lat, ok := parseCoordinate(rawLat, 90)
	if !ok {
		details["latitude"] = "must be a number between -90 and 90"
	}
	lon, ok := parseCoordinate(rawLon, 180)
	if !ok {
		details["longitude"] = "must be a number between -180 and 180"
	}
	return lat, lon
}

func parseCoordinate(raw string, limit float64) (float64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < -limit || v > limit {
		return 0, false
	}
	return v, true
}

func qiblaFor(lat, lon float64) dto.QiblaResponse {
	bearing := prayer.QiblaBearing(lat, lon)
	return dto.QiblaResponse{
		Bearing:    math.Round(bearing*100) / 100,
		Compass:    compassPoint(bearing),
		DistanceKm: math.Round(prayer.DistanceToKaaba(lat, lon)),
	}
}

var compassPoints = [...]string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// compassPoint names the eight-wind direction of a bearing.
func compassPoint(bearing float64) string {
	i := int(math.Floor((bearing+22.5)/45)) % len(compassPoints)
	return compassPoints[i]
}

// formatCountdown renders whole minutes as "2h 5m" or "5m".
func formatCountdown(d time.Duration) string {
	minutes := int(math.Ceil(d.Minutes()))
	if minutes < 0 {
		minutes = 0
	}
	if h := minutes / 60; h > 0 {
		return fmt.Sprintf("%dh %dm", h, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
