package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/cache"
)

// RateLimiter is the Redis token bucket surface used by the middleware.
type RateLimiter interface {
	CheckServiceKeyRateLimit(ctx context.Context, keyID string, ratePerMinute, burst int) (*cache.RateLimitResult, error)
	CheckIPRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) (*cache.RateLimitResult, error)
	CheckUnlockRateLimit(ctx context.Context, ip string, perMinute int) (*cache.RateLimitResult, error)
}

// Service key limits. Schedulers call a handful of times per minute.
const (
	serviceKeyRatePerMinute = 120
	serviceKeyBurst         = 30
)

// RateLimitConfig holds configuration for rate limiting middleware.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter RateLimiter
	// Service key rate limiting (internal triggers)
	ServiceKeyEnabled bool
	// Public rate limiting (per IP)
	PublicEnabled bool
	PublicRPS     int
	PublicBurst   int
	// Admin security requests per IP per minute
	UnlockPerMinute int
}

// RateLimitServiceKey limits requests per authenticated service key.
// Must be applied after ServiceKeyAuth.
func RateLimitServiceKey(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if !cfg.ServiceKeyEnabled || authCtx == nil || authCtx.KeyID == "" {
				next.ServeHTTP(w, r)
				return
			}

			result, err := cfg.Limiter.CheckServiceKeyRateLimit(r.Context(), authCtx.KeyID, serviceKeyRatePerMinute, serviceKeyBurst)
			if err != nil {
				cfg.Logger.Error("rate limit check failed", slog.String("error", err.Error()), slog.String("key_id", authCtx.KeyID))
				// Fail open
				next.ServeHTTP(w, r)
				return
			}

			setRateLimitHeaders(w, serviceKeyRatePerMinute, result.Remaining, result.ResetAt)
			if !result.Allowed {
				rejectRateLimited(w, r, cfg.Logger, "service_key", authCtx.KeyID, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitIP limits public requests per connection address.
func RateLimitIP(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.PublicEnabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := RemoteIP(r)
			result, err := cfg.Limiter.CheckIPRateLimit(r.Context(), ip, cfg.PublicRPS, cfg.PublicBurst)
			if err != nil {
				cfg.Logger.Error("IP rate limit check failed", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				rejectRateLimited(w, r, cfg.Logger, "public", "", result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitUnlock limits admin security calls per connection address. It is much
// tighter than the public limit because each call may verify a passcode.
func RateLimitUnlock(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result, err := cfg.Limiter.CheckUnlockRateLimit(r.Context(), RemoteIP(r), cfg.UnlockPerMinute)
			if err != nil {
				cfg.Logger.Error("unlock rate limit check failed", slog.String("error", err.Error()))
				next.ServeHTTP(w, r)
				return
			}
			if !result.Allowed {
				rejectRateLimited(w, r, cfg.Logger, "unlock", "", result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectRateLimited(w http.ResponseWriter, r *http.Request, logger *slog.Logger, kind, keyID string, result *cache.RateLimitResult) {
	seconds := int(result.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	logger.Warn("rate limit exceeded",
		slog.String("type", kind),
		slog.String("key_id", keyID),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.Int("retry_after_seconds", seconds),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		"Rate limit exceeded. Retry after "+strconv.Itoa(seconds)+" seconds.")
}

// setRateLimitHeaders sets standard rate limit response headers.
func setRateLimitHeaders(w http.ResponseWriter, limit int, remaining int64, resetAt time.Time) {
	if limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
	}
}

// RemoteIP returns the host part of the connection address. Forwarding
// headers are only honoured when a trusted proxy has already rewritten
// RemoteAddr (chi's RealIP, enabled by TRUST_PROXY_HEADERS), so clients
// cannot pick their own rate-limit bucket.
func RemoteIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
