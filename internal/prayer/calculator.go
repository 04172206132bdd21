package prayer

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/noorapp/noor/internal/model"
)

// sunriseAngle accounts for refraction and the solar disc radius.
const sunriseAngle = 0.833

// Calculator computes timings locally from solar position. Times the
// method cannot produce (the sun never reaches the twilight angle) are
// left out.
type Calculator struct{}

// NewCalculator returns an offline Provider.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Timings implements Provider.
func (c *Calculator) Timings(_ context.Context, q Query) (*Timings, error) {
	if !ValidCoordinates(q.Latitude, q.Longitude) {
		return nil, fmt.Errorf("invalid coordinates %f,%f", q.Latitude, q.Longitude)
	}

	loc := q.Location()
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := q.Date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	// Hours in UTC relative to day's UTC midnight.
	hours := solarTimes(y, int(m), d, q.Latitude, q.Longitude, q.Method.params())

	t := &Timings{
		Date:     day,
		Location: loc,
		Times:    make(map[model.PrayerName]Clock, len(hours)),
		Method:   q.Method,
		Source:   "calculator",
	}
	utcMidnight := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	for p, h := range hours {
		if math.IsNaN(h) || math.IsInf(h, 0) {
			continue
		}
		at := utcMidnight.Add(time.Duration(math.Round(h*60)) * time.Minute).In(loc)
		t.Times[p] = Clock{Hour: at.Hour(), Minute: at.Minute()}
	}
	if len(t.Times) == 0 {
		return nil, ErrTimingsUnavailable
	}
	return t, nil
}

// solarTimes returns UTC hours of each prayer for the given date and place.
func solarTimes(year, month, day int, lat, lon float64, p params) map[model.PrayerName]float64 {
	jd := julianDate(year, month, day) - lon/(15*24)

	s := sunCalc{jd: jd, lat: lat}

	fajr := s.angleTime(p.fajrAngle, 5.0/24, true)
	sunrise := s.angleTime(sunriseAngle, 6.0/24, true)
	dhuhr := s.midDay(12.0 / 24)
	asr := s.asrTime(1, 13.0/24)
	sunset := s.angleTime(sunriseAngle, 18.0/24, false)

	maghrib := sunset
	if p.maghribAngle > 0 {
		maghrib = s.angleTime(p.maghribAngle, 18.0/24, false)
	}
	isha := s.angleTime(p.ishaAngle, 18.0/24, false)
	if p.ishaMinutes > 0 {
		isha = maghrib + p.ishaMinutes/60
	}

	shift := lon / 15
	return map[model.PrayerName]float64{
		model.PrayerFajr:    fajr - shift,
		model.PrayerSunrise: sunrise - shift,
		model.PrayerDhuhr:   dhuhr - shift,
		model.PrayerAsr:     asr - shift,
		model.PrayerMaghrib: maghrib - shift,
		model.PrayerIsha:    isha - shift,
	}
}

type sunCalc struct {
	jd  float64
	lat float64
}

// position returns the sun's declination (degrees) and equation of time
// (hours) at a day fraction.
func (s sunCalc) position(dayFraction float64) (decl, eqt float64) {
	dd := s.jd + dayFraction - 2451545.0
	g := fixAngle(357.529 + 0.98560028*dd)
	q := fixAngle(280.459 + 0.98564736*dd)
	l := fixAngle(q + 1.915*dsin(g) + 0.020*dsin(2*g))
	e := 23.439 - 0.00000036*dd

	ra := darctan2(dcos(e)*dsin(l), dcos(l)) / 15
	eqt = q/15 - fixHour(ra)
	decl = darcsin(dsin(e) * dsin(l))
	return decl, eqt
}

func (s sunCalc) midDay(dayFraction float64) float64 {
	_, eqt := s.position(dayFraction)
	return fixHour(12 - eqt)
}

// angleTime is the time the sun reaches angle degrees below the horizon,
// before noon when ccw is true.
func (s sunCalc) angleTime(angle, dayFraction float64, ccw bool) float64 {
	decl, _ := s.position(dayFraction)
	noon := s.midDay(dayFraction)
	cosT := (-dsin(angle) - dsin(decl)*dsin(s.lat)) / (dcos(decl) * dcos(s.lat))
	if cosT < -1 || cosT > 1 {
		return math.NaN()
	}
	t := darccos(cosT) / 15
	if ccw {
		return noon - t
	}
	return noon + t
}

// asrTime uses the shadow-length factor (1 = standard).
func (s sunCalc) asrTime(factor, dayFraction float64) float64 {
	decl, _ := s.position(dayFraction)
	angle := -darccot(factor + dtan(math.Abs(s.lat-decl)))
	return s.angleTime(angle, dayFraction, false)
}

func julianDate(year, month, day int) float64 {
	if month <= 2 {
		year--
		month += 12
	}
	a := math.Floor(float64(year) / 100)
	b := 2 - a + math.Floor(a/4)
	return math.Floor(365.25*float64(year+4716)) + math.Floor(30.6001*float64(month+1)) + float64(day) + b - 1524.5
}

func dsin(d float64) float64        { return math.Sin(radians(d)) }
func dcos(d float64) float64        { return math.Cos(radians(d)) }
func dtan(d float64) float64        { return math.Tan(radians(d)) }
func darcsin(x float64) float64     { return degrees(math.Asin(x)) }
func darccos(x float64) float64     { return degrees(math.Acos(x)) }
func darctan2(y, x float64) float64 { return degrees(math.Atan2(y, x)) }
func darccot(x float64) float64     { return degrees(math.Atan(1 / x)) }

func fixAngle(a float64) float64 { return fix(a, 360) }
func fixHour(h float64) float64  { return fix(h, 24) }

func fix(a, b float64) float64 {
	a = a - b*math.Floor(a/b)
	if a < 0 {
		a += b
	}
	return a
}
