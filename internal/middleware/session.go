package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/model"
)

// SessionEpochs reports the current admin session epoch.
type SessionEpochs interface {
	SessionEpoch(ctx context.Context) (int64, error)
}

// SessionAuthConfig holds configuration for bearer session middleware.
type SessionAuthConfig struct {
	Logger *slog.Logger
	Tokens *auth.TokenManager
	Epochs SessionEpochs
}

// RequireSession rejects requests without a valid, unrevoked session token.
func RequireSession(cfg SessionAuthConfig) func(http.Handler) http.Handler {
	return sessionAuth(cfg, true)
}

// OptionalSession attaches the session when a valid token is presented and
// otherwise lets the request through anonymously.
func OptionalSession(cfg SessionAuthConfig) func(http.Handler) http.Handler {
	return sessionAuth(cfg, false)
}

func sessionAuth(cfg SessionAuthConfig, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx, reason := authenticateSession(r, cfg)
			if authCtx == nil {
				if required {
					cfg.Logger.Warn("session rejected",
						slog.String("reason", reason),
						slog.String("endpoint", r.Method+" "+r.URL.Path),
						slog.String("request_id", GetRequestID(r.Context())),
					)
					writeAuthError(w, "Invalid or expired session")
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.ContextWithAuth(r.Context(), authCtx)))
		})
	}
}

func authenticateSession(r *http.Request, cfg SessionAuthConfig) (*model.AuthContext, string) {
	token := bearerToken(r)
	if token == "" || strings.HasPrefix(token, "nk_") {
		return nil, "missing_token"
	}

	claims, err := cfg.Tokens.Parse(token)
	if err != nil {
		return nil, "invalid_token"
	}

	role := model.Role(claims.Role)
	if role.IsAdmin() {
		epoch, err := cfg.Epochs.SessionEpoch(r.Context())
		if err != nil {
			cfg.Logger.Error("session epoch lookup failed", slog.String("error", err.Error()))
			return nil, "epoch_unavailable"
		}
		if claims.Epoch < epoch {
			return nil, "revoked"
		}
	}

	var scopes []string
	if role.IsAdmin() {
		scopes = []string{model.ScopeAdmin}
	}
	return &model.AuthContext{
		Kind:    model.PrincipalSession,
		Subject: claims.Subject,
		Role:    role,
		Scopes:  scopes,
	}, ""
}
