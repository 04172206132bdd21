package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/repository"
)

// TokenStore persists device push tokens.
type TokenStore interface {
	UpsertPushToken(ctx context.Context, token *model.PushToken) error
	DisableDeviceToken(ctx context.Context, deviceID, token string) error
}

// DeviceHandler registers and removes push tokens.
type DeviceHandler struct {
	store     TokenStore
	validator *middleware.Validator
	logger    *slog.Logger
}

// NewDeviceHandler creates a DeviceHandler.
func NewDeviceHandler(store TokenStore, validator *middleware.Validator, logger *slog.Logger) *DeviceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceHandler{
		store:     store,
		validator: validator,
		logger:    logger.With("component", "device_handler"),
	}
}

// RegisterToken upserts a push token for a device.
//
// POST /api/v1/devices/{deviceID}/tokens
func (h *DeviceHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var req dto.RegisterTokenRequest
	if !bind(w, r, h.validator, &req) {
		return
	}

	token := &model.PushToken{
		DeviceID: deviceID,
		Token:    req.Token,
		Platform: model.Platform(req.Platform),
		Enabled:  true,
	}
	if err := h.store.UpsertPushToken(r.Context(), token); err != nil {
		h.logger.Error("failed to register push token", "device_id", deviceID, "platform", req.Platform, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to register token")
		return
	}

	writeJSON(w, http.StatusCreated, dto.ToPushTokenResponse(token))
}

// UnregisterToken disables a device's push token.
//
// DELETE /api/v1/devices/{deviceID}/tokens
func (h *DeviceHandler) UnregisterToken(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var req dto.UnregisterTokenRequest
	if !bind(w, r, h.validator, &req) {
		return
	}

	if err := h.store.DisableDeviceToken(r.Context(), deviceID, req.Token); err != nil {
		if errors.Is(err, repository.ErrPushTokenNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "Token not registered for this device")
			return
		}
		h.logger.Error("failed to disable push token", "device_id", deviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to remove token")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
