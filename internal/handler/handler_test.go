package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/noorapp/noor/internal/auth"
	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withURLParams attaches chi route parameters to a request.
func withURLParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// withAuth attaches an authenticated principal to a request.
func withAuth(r *http.Request, ac *model.AuthContext) *http.Request {
	return r.WithContext(auth.ContextWithAuth(r.Context(), ac))
}

func adminSession(subject string) *model.AuthContext {
	return &model.AuthContext{
		Kind:    model.PrincipalSession,
		Subject: subject,
		Role:    model.RoleSuperAdmin,
		Scopes:  []string{model.ScopeAdmin},
	}
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

func TestHandler_NotFound(t *testing.T) {
	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}
	if contentType := rec.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	resp := decodeError(t, rec)
	if resp.Error != "resource not found" || resp.Code != "NOT_FOUND" {
		t.Errorf("unexpected error body: %+v", resp)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New()

	rec := httptest.NewRecorder()
	h.MethodNotAllowed(rec, httptest.NewRequest(http.MethodPatch, "/healthz", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != "METHOD_NOT_ALLOWED" {
		t.Errorf("unexpected code: %s", resp.Code)
	}
}

func TestBind(t *testing.T) {
	t.Parallel()

	v := middleware.NewValidator()

	tests := []struct {
		name        string
		body        string
		wantOK      bool
		wantStatus  int
		wantDetails map[string]string
	}{
		{
			name:   "valid",
			body:   `{"token":"abc","platform":"ios"}`,
			wantOK: true,
		},
		{
			name:        "empty body",
			body:        ``,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]string{"payload": "invalid json"},
		},
		{
			name:        "malformed json",
			body:        `{"token":}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]string{"payload": "invalid json"},
		},
		{
			name:        "unknown field",
			body:        `{"token":"abc","platform":"ios","extra":1}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]string{"payload": "invalid payload"},
		},
		{
			name:        "invalid platform",
			body:        `{"token":"abc","platform":"symbian"}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]string{"platform": "must be one of: android, ios, web"},
		},
		{
			name:        "missing token",
			body:        `{"platform":"web"}`,
			wantStatus:  http.StatusBadRequest,
			wantDetails: map[string]string{"token": "is required"},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			var dst dto.RegisterTokenRequest
			ok := bind(rec, jsonRequest(http.MethodPost, "/", tt.body), v, &dst)

			if ok != tt.wantOK {
				t.Fatalf("bind() = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK {
				return
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			resp := decodeError(t, rec)
			if resp.Code != "VALIDATION_FAILED" {
				t.Errorf("expected VALIDATION_FAILED, got %s", resp.Code)
			}
			for field, want := range tt.wantDetails {
				if got := resp.Details[field]; got != want {
					t.Errorf("details[%s] = %q, want %q", field, got, want)
				}
			}
		})
	}
}

func TestBind_BodyTooLarge(t *testing.T) {
	body := `{"token":"` + strings.Repeat("a", 64) + `","platform":"ios"}`
	req := jsonRequest(http.MethodPost, "/", body)
	rec := httptest.NewRecorder()
	req.Body = http.MaxBytesReader(rec, req.Body, 16)

	var dst dto.RegisterTokenRequest
	if bind(rec, req, nil, &dst) {
		t.Fatal("expected bind to fail")
	}
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected status 413, got %d", rec.Code)
	}
}
