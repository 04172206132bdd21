// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
)

// Handler serves the fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a dto.ErrorResponse.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{Error: message, Code: code})
}

// writeValidationError writes a 400 with per-field details.
func writeValidationError(w http.ResponseWriter, err error) {
	writeDetails(w, middleware.Details(err))
}

func writeDetails(w http.ResponseWriter, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "request validation failed",
		Code:    "VALIDATION_FAILED",
		Details: details,
	})
}

// bind decodes the JSON body into dst and validates it. On failure the
// error response has already been written and false is returned.
func bind(w http.ResponseWriter, r *http.Request, v *middleware.Validator, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			writeError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Request body too large")
		case errors.Is(err, io.EOF):
			writeValidationError(w, middleware.ErrInvalidPayload)
		default:
			writeValidationError(w, err)
		}
		return false
	}
	if v != nil {
		if err := v.Struct(dst); err != nil {
			writeValidationError(w, err)
			return false
		}
	}
	return true
}
