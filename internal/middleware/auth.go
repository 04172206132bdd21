package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/model"
)

const (
	// minAuthDuration is the minimum time to spend on auth to prevent timing attacks.
	minAuthDuration = 200 * time.Millisecond

	// ServiceKeyHeader carries a service key when Authorization is not used.
	ServiceKeyHeader = "X-Service-Key"
)

// ServiceKeyStore looks up service keys by their visible prefix.
type ServiceKeyStore interface {
	GetServiceKeysByPrefix(ctx context.Context, prefix string) ([]*model.ServiceKey, error)
	UpdateServiceKeyLastUsed(ctx context.Context, id string) error
}

// AuthCache caches verified service key contexts.
type AuthCache interface {
	GetAuthContext(ctx context.Context, cacheKey string) (*model.AuthContext, error)
	SetAuthContext(ctx context.Context, cacheKey string, auth *model.AuthContext) error
}

// ServiceKeyAuthConfig holds configuration for the service key middleware.
type ServiceKeyAuthConfig struct {
	Logger *slog.Logger
	Keys   ServiceKeyStore
	Cache  AuthCache
	// MinDuration pads every response; zero uses minAuthDuration.
	MinDuration time.Duration
}

// ServiceKeyAuth authenticates machine callers (schedulers, tooling) by
// service key and injects the auth context into the request.
func ServiceKeyAuth(cfg ServiceKeyAuthConfig) func(http.Handler) http.Handler {
	minDuration := cfg.MinDuration
	if minDuration == 0 {
		minDuration = minAuthDuration
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()

			// Ensure consistent timing regardless of outcome
			defer func() {
				if elapsed := time.Since(startTime); elapsed < minDuration {
					time.Sleep(minDuration - elapsed)
				}
			}()

			fail := func(reason string) {
				cfg.Logger.Warn("authentication failed",
					slog.String("reason", reason),
					slog.String("ip", r.RemoteAddr),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, "Invalid or missing service key")
			}

			key := extractServiceKey(r)
			if key == "" {
				fail("missing_key")
				return
			}

			parsed, err := auth.ParseServiceKey(key)
			if err != nil {
				fail("invalid_format")
				return
			}

			cacheKey := auth.QuickHash(key)
			if cfg.Cache != nil {
				if authCtx, _ := cfg.Cache.GetAuthContext(r.Context(), cacheKey); authCtx != nil {
					cfg.Logger.Debug("authentication successful",
						slog.String("key_id", authCtx.KeyID),
						slog.String("key_prefix", authCtx.KeyPrefix),
						slog.Bool("cache_hit", true),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
					return
				}
			}

			keys, err := cfg.Keys.GetServiceKeysByPrefix(r.Context(), parsed.Prefix)
			if err != nil {
				cfg.Logger.Error("database error during auth",
					slog.String("error", err.Error()),
					slog.String("request_id", GetRequestID(r.Context())),
				)
				writeAuthError(w, "Invalid or missing service key")
				return
			}

			// Verify against each candidate key (handles prefix collisions)
			var matched *model.ServiceKey
			for _, k := range keys {
				if k.IsRevoked() {
					continue
				}
				if ok, err := auth.VerifySecret(key, k.KeyHash); err == nil && ok {
					matched = k
					break
				}
			}
			if matched == nil {
				fail("invalid_key")
				return
			}

			authCtx := &model.AuthContext{
				Kind:      model.PrincipalServiceKey,
				KeyID:     matched.ID,
				KeyPrefix: matched.KeyPrefix,
				Subject:   matched.Name,
				Scopes:    matched.Scopes,
			}
			if cfg.Cache != nil {
				_ = cfg.Cache.SetAuthContext(r.Context(), cacheKey, authCtx)
			}

			go func(id string) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = cfg.Keys.UpdateServiceKeyLastUsed(ctx, id)
			}(matched.ID)

			cfg.Logger.Info("authentication successful",
				slog.String("key_id", authCtx.KeyID),
				slog.String("key_prefix", authCtx.KeyPrefix),
				slog.String("endpoint", r.Method+" "+r.URL.Path),
				slog.Bool("cache_hit", false),
				slog.String("request_id", GetRequestID(r.Context())),
			)

			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

// extractServiceKey reads "Authorization: Bearer nk_..." or X-Service-Key.
func extractServiceKey(r *http.Request) string {
	if token := bearerToken(r); strings.HasPrefix(token, "nk_") {
		return token
	}
	return r.Header.Get(ServiceKeyHeader)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// writeAuthError writes a 401 Unauthorized response.
// Uses the same message for all auth failures to prevent enumeration.
func writeAuthError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// writeError writes the error body shared by all middleware.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Code: code})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
