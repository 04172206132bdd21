package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/security"
)

type fakeSecurityService struct {
	caller security.Caller
	req    security.Request
	resp   *security.Response
	err    error
}

func (f *fakeSecurityService) Handle(_ context.Context, caller security.Caller, req security.Request) (*security.Response, error) {
	f.caller = caller
	f.req = req
	return f.resp, f.err
}

func TestSecurityHandler_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		auth        *model.AuthContext
		headers     map[string]string
		resp        *security.Response
		err         error
		wantStatus  int
		wantSubject string
		wantIP      string
		wantError   string
	}{
		{
			name:       "anonymous unlock",
			headers:    map[string]string{"X-Forwarded-For": "203.0.113.7, 10.0.0.1"},
			resp:       &security.Response{OK: true, Token: "jwt"},
			wantStatus: http.StatusOK,
			wantIP:     "203.0.113.7",
		},
		{
			name:        "admin session is the caller",
			auth:        adminSession("admin-uuid"),
			headers:     map[string]string{"CF-Connecting-IP": "198.51.100.4"},
			resp:        &security.Response{OK: true},
			wantStatus:  http.StatusOK,
			wantSubject: "admin-uuid",
			wantIP:      "198.51.100.4",
		},
		{
			name:       "user session is not an admin",
			auth:       &model.AuthContext{Kind: model.PrincipalSession, Subject: "user-1", Role: model.RoleUser},
			resp:       &security.Response{OK: false, Error: security.CodeNotAuthenticated},
			wantStatus: http.StatusOK,
			wantError:  security.CodeNotAuthenticated,
			wantIP:     "192.0.2.1",
		},
		{
			name:       "service key is not a session",
			auth:       &model.AuthContext{Kind: model.PrincipalServiceKey, Subject: "cron", Scopes: []string{model.ScopeAdmin}},
			resp:       &security.Response{OK: true},
			wantStatus: http.StatusOK,
			wantIP:     "192.0.2.1",
		},
		{
			name:       "not configured",
			err:        security.ErrSecurityNotConfigured,
			wantStatus: http.StatusInternalServerError,
			wantError:  "admin_security_not_configured",
			wantIP:     "192.0.2.1",
		},
		{
			name:       "backend failure",
			err:        errors.New("database is down"),
			wantStatus: http.StatusInternalServerError,
			wantError:  "internal_error",
			wantIP:     "192.0.2.1",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc := &fakeSecurityService{resp: tt.resp, err: tt.err}
			h := NewSecurityHandler(svc, discardLogger())

			req := jsonRequest(http.MethodPost, "/api/v1/admin/security", `{"action":"unlock","passcode":"secret-123"}`)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if tt.auth != nil {
				req = withAuth(req, tt.auth)
			}
			rec := httptest.NewRecorder()
			h.Handle(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if svc.caller.Subject != tt.wantSubject {
				t.Errorf("caller subject = %q, want %q", svc.caller.Subject, tt.wantSubject)
			}
			if svc.caller.IP != tt.wantIP {
				t.Errorf("caller ip = %q, want %q", svc.caller.IP, tt.wantIP)
			}
			if svc.req.Action != security.ActionUnlock || svc.req.Passcode != "secret-123" {
				t.Errorf("request not passed through: %+v", svc.req)
			}

			var resp security.Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
			}
		})
	}
}

func TestSecurityHandler_InvalidBody(t *testing.T) {
	svc := &fakeSecurityService{}
	h := NewSecurityHandler(svc, discardLogger())

	rec := httptest.NewRecorder()
	h.Handle(rec, jsonRequest(http.MethodPost, "/api/v1/admin/security", `not json`))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rec.Code)
	}
	if svc.req.Action != "" {
		t.Error("service must not be called for an invalid body")
	}
}
