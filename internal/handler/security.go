package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/security"
)

// SecurityService handles admin security actions.
type SecurityService interface {
	Handle(ctx context.Context, caller security.Caller, req security.Request) (*security.Response, error)
}

// SecurityHandler serves the admin unlock endpoint.
type SecurityHandler struct {
	service SecurityService
	logger  *slog.Logger
}

// NewSecurityHandler creates a SecurityHandler.
func NewSecurityHandler(service SecurityService, logger *slog.Logger) *SecurityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SecurityHandler{
		service: service,
		logger:  logger.With("component", "security_handler"),
	}
}

// Handle runs one admin security action. Expected failures are returned
// with status 200 and ok=false; only backend faults produce a 500.
//
// POST /api/v1/admin/security
func (h *SecurityHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req security.Request
	if !bind(w, r, nil, &req) {
		return
	}

	caller := security.Caller{IP: security.RequesterIP(r.Header)}
	if caller.IP == "" {
		caller.IP = middleware.RemoteIP(r)
	}
	// Only admin sessions count as authenticated here; end-user tokens do not.
	if ac := auth.AuthFromContext(r.Context()); ac != nil && ac.Kind == model.PrincipalSession && ac.HasScope(model.ScopeAdmin) {
		caller.Subject = ac.Subject
	}

	resp, err := h.service.Handle(r.Context(), caller, req)
	if err != nil {
		if errors.Is(err, security.ErrSecurityNotConfigured) {
			h.logger.Error("admin security is not configured")
			writeJSON(w, http.StatusInternalServerError, security.Response{Error: security.ErrSecurityNotConfigured.Error()})
			return
		}
		h.logger.Error("admin security action failed", "action", req.Action, "error", err)
		writeJSON(w, http.StatusInternalServerError, security.Response{Error: "internal_error"})
		return
	}

	if !resp.OK {
		h.logger.Warn("admin security action refused",
			"action", req.Action,
			"error", resp.Error,
			"reason", resp.Reason,
		)
	}
	writeJSON(w, http.StatusOK, resp)
}
