package prayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/noorapp/noor/internal/model"
)

// DefaultAladhanBaseURL is the public Aladhan API.
const DefaultAladhanBaseURL = "https://api.aladhan.com/v1"

// maxAladhanBody bounds the response body read from the API.
const maxAladhanBody = 1 << 20

// AladhanClient fetches timings from the Aladhan API.
type AladhanClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewAladhanClient creates a client. A nil httpClient gets sane timeouts.
func NewAladhanClient(baseURL string, httpClient *http.Client) *AladhanClient {
	if baseURL == "" {
		baseURL = DefaultAladhanBaseURL
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(10 * time.Second)
	}
	return &AladhanClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// NewHTTPClient creates an HTTP client for upstream calls with the given
// total timeout.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
			MaxIdleConns:          20,
			MaxIdleConnsPerHost:   10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

type aladhanResponse struct {
	Code int `json:"code"`
	Data struct {
		Timings map[string]string `json:"timings"`
		Date    struct {
			Hijri aladhanHijri `json:"hijri"`
		} `json:"date"`
		Meta struct {
			Timezone string `json:"timezone"`
		} `json:"meta"`
	} `json:"data"`
}

// aladhanNames maps prayers to the response keys.
var aladhanNames = map[model.PrayerName]string{
	model.PrayerFajr:    "Fajr",
	model.PrayerSunrise: "Sunrise",
	model.PrayerDhuhr:   "Dhuhr",
	model.PrayerAsr:     "Asr",
	model.PrayerMaghrib: "Maghrib",
	model.PrayerIsha:    "Isha",
}

// Timings implements Provider.
func (c *AladhanClient) Timings(ctx context.Context, q Query) (*Timings, error) {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(q.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(q.Longitude, 'f', -1, 64))
	params.Set("method", strconv.Itoa(q.Method.Code()))
	if q.Timezone != "" {
		params.Set("timezonestring", q.Timezone)
	}

	endpoint := fmt.Sprintf("%s/timings/%s?%s", c.baseURL, q.Date.Format("02-01-2006"), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build aladhan request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Noor/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aladhan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxAladhanBody))
		return nil, fmt.Errorf("aladhan API error: status %d", resp.StatusCode)
	}

	var body aladhanResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxAladhanBody)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode aladhan response: %w", err)
	}

	loc := q.Location()
	if loc == nil && body.Data.Meta.Timezone != "" {
		if l, err := time.LoadLocation(body.Data.Meta.Timezone); err == nil {
			loc = l
		}
	}
	if loc == nil {
		loc = time.UTC
	}

	y, m, d := q.Date.Date()
	t := &Timings{
		Date:     time.Date(y, m, d, 0, 0, 0, 0, loc),
		Location: loc,
		Times:    make(map[model.PrayerName]Clock, len(model.DailyPrayers)),
		Method:   q.Method,
		Source:   "aladhan",
	}
	for _, p := range model.DailyPrayers {
		raw, ok := body.Data.Timings[aladhanNames[p]]
		if !ok {
			continue
		}
		clock, err := ParseClock(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s time: %w", p, err)
		}
		t.Times[p] = clock
	}
	if len(t.Times) == 0 {
		return nil, fmt.Errorf("aladhan response has no timings")
	}

	t.Hijri = body.Data.Date.Hijri.parse()

	return t, nil
}

type aladhanHijri struct {
	Date  string `json:"date"`
	Day   string `json:"day"`
	Year  string `json:"year"`
	Month struct {
		En string `json:"en"`
	} `json:"month"`
}

// parse returns nil when the block is missing or its numbers are malformed.
func (h aladhanHijri) parse() *Hijri {
	if h.Date == "" {
		return nil
	}
	day, err := strconv.Atoi(h.Day)
	if err != nil || day < 1 || day > 30 {
		return nil
	}
	year, err := strconv.Atoi(h.Year)
	if err != nil || year < 1 {
		return nil
	}
	return &Hijri{Date: h.Date, Day: day, Month: h.Month.En, Year: year}
}
