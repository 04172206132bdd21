package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/noorapp/noor/internal/dhikr"
	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
)

// DhikrCounter is the tasbih counter used by DhikrHandler.
type DhikrCounter interface {
	Get(ctx context.Context, deviceID string) (*dhikr.State, error)
	Tap(ctx context.Context, deviceID string) (*dhikr.State, error)
	Reset(ctx context.Context, deviceID string) (*dhikr.State, error)
	Select(ctx context.Context, deviceID string, index int) (*dhikr.State, error)
}

// DhikrHandler serves the per-device tasbih counter.
type DhikrHandler struct {
	counter   DhikrCounter
	validator *middleware.Validator
	logger    *slog.Logger
}

// NewDhikrHandler creates a DhikrHandler.
func NewDhikrHandler(counter DhikrCounter, validator *middleware.Validator, logger *slog.Logger) *DhikrHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DhikrHandler{
		counter:   counter,
		validator: validator,
		logger:    logger.With("component", "dhikr_handler"),
	}
}

// Catalog lists the available dhikr.
//
// GET /api/v1/dhikr
func (h *DhikrHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"data": dhikr.Catalog()})
}

// Get returns the counter of a device.
//
// GET /api/v1/dhikr/{deviceID}
func (h *DhikrHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.counter.Get)
}

// Tap counts one repetition.
//
// POST /api/v1/dhikr/{deviceID}/tap
func (h *DhikrHandler) Tap(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.counter.Tap)
}

// Reset zeroes the current count.
//
// POST /api/v1/dhikr/{deviceID}/reset
func (h *DhikrHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.apply(w, r, h.counter.Reset)
}

// Select switches to another dhikr.
//
// POST /api/v1/dhikr/{deviceID}/select
func (h *DhikrHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req dto.SelectDhikrRequest
	if !bind(w, r, h.validator, &req) {
		return
	}
	h.apply(w, r, func(ctx context.Context, deviceID string) (*dhikr.State, error) {
		return h.counter.Select(ctx, deviceID, *req.Index)
	})
}

func (h *DhikrHandler) apply(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (*dhikr.State, error)) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}

	state, err := op(r.Context(), deviceID)
	if err != nil {
		if errors.Is(err, dhikr.ErrUnknownDhikr) {
			writeError(w, http.StatusBadRequest, "UNKNOWN_DHIKR", "Unknown dhikr")
			return
		}
		h.logger.Error("dhikr counter failed", "device_id", deviceID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to update counter")
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// deviceParam reads and checks the deviceID URL parameter.
func deviceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" || len(deviceID) > middleware.MaxDeviceIDLength {
		writeDetails(w, map[string]string{"device_id": "must be 1 to 128 characters"})
		return "", false
	}
	return deviceID, true
}
