package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/prayer"
	"github.com/noorapp/noor/internal/repository"
)

// PreferenceStore persists prayer reminder preferences.
type PreferenceStore interface {
	UpsertPreference(ctx context.Context, pref *model.NotificationPreference) error
	GetPreferenceByDevice(ctx context.Context, deviceID string) (*model.NotificationPreference, error)
}

// PreferenceHandler serves per-device prayer reminder preferences.
type PreferenceHandler struct {
	store     PreferenceStore
	validator *middleware.Validator
	logger    *slog.Logger
}

// NewPreferenceHandler creates a PreferenceHandler.
func NewPreferenceHandler(store PreferenceStore, validator *middleware.Validator, logger *slog.Logger) *PreferenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PreferenceHandler{
		store:     store,
		validator: validator,
		logger:    logger.With("component", "preference_handler"),
	}
}

// Get returns the preference of a device.
//
// GET /api/v1/preferences/{deviceID}
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	pref, err := h.store.GetPreferenceByDevice(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, repository.ErrPreferenceNotFound) {
			writeError(w, http.StatusNotFound, "NOT_FOUND", "No preferences for this device")
			return
		}
		h.logger.Error("failed to load preference", "device_id", deviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load preferences")
		return
	}

	writeJSON(w, http.StatusOK, pref)
}

// Put creates or replaces the preference of a device. A signed-in user
// becomes the owner of the preference.
//
// PUT /api/v1/preferences/{deviceID}
func (h *PreferenceHandler) Put(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	var req dto.PreferenceRequest
	if !bind(w, r, h.validator, &req) {
		return
	}

	details := make(map[string]string)

	method := prayer.DefaultMethod
	if req.CalculationMethod != "" {
		m, known := prayer.ParseMethod(req.CalculationMethod)
		if !known {
			details["calculation_method"] = "must be one of: " + methodNames()
		}
		method = m
	}

	enabled := model.DefaultEnabledPrayers()
	for name, on := range req.EnabledPrayers {
		p := model.PrayerName(strings.ToLower(name))
		if !p.IsNotifiable() {
			details["enabled_prayers"] = "unknown prayer " + name
			continue
		}
		enabled[p] = on
	}

	if len(details) > 0 {
		writeDetails(w, details)
		return
	}

	pref := &model.NotificationPreference{
		DeviceID:           deviceID,
		Latitude:           *req.Latitude,
		Longitude:          *req.Longitude,
		Timezone:           req.Timezone,
		CalculationMethod:  string(method),
		EnabledPrayers:     enabled,
		NotificationOffset: req.NotificationOffset,
		Enabled:            req.Enabled == nil || *req.Enabled,
	}
	if subject := auth.SubjectFromContext(r.Context()); subject != "" {
		pref.UserID = &subject
	}

	if err := h.store.UpsertPreference(r.Context(), pref); err != nil {
		h.logger.Error("failed to save preference", "device_id", deviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save preferences")
		return
	}

	writeJSON(w, http.StatusOK, pref)
}

func methodNames() string {
	names := make([]string, len(prayer.Methods))
	for i, m := range prayer.Methods {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}
