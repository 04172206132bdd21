package middleware

import (
	"fmt"
	"net/http"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/model"
)

// RequireScope returns middleware that enforces scope requirements.
// Must be applied after an auth middleware.
// If multiple scopes are provided, having ANY of them is sufficient.
func RequireScope(required ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := auth.AuthFromContext(r.Context())
			if authCtx == nil {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required")
				return
			}

			for _, scope := range required {
				if authCtx.HasScope(scope) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN",
				fmt.Sprintf("Insufficient permissions. Required scope: %s", required[0]))
		})
	}
}

// RequireDispatch guards the prayer dispatch trigger.
func RequireDispatch() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeDispatch)
}

// RequirePublish guards the scheduled publish trigger.
func RequirePublish() func(http.Handler) http.Handler {
	return RequireScope(model.ScopePublish)
}

// RequirePush guards manual push sends.
func RequirePush() func(http.Handler) http.Handler {
	return RequireScope(model.ScopePush)
}

// RequireAdmin is a convenience middleware for admin scope.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireScope(model.ScopeAdmin)
}
