package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/noorapp/noor/internal/handler/dto"
	"github.com/noorapp/noor/internal/middleware"
	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/push"
)

type fakeAdminStore struct {
	notifications []*model.Notification
	audits        []*model.AuditEntry
	stats         *model.TokenStats
	err           error
}

func (f *fakeAdminStore) CreateNotification(_ context.Context, n *model.Notification) error {
	if f.err != nil {
		return f.err
	}
	n.ID = "notif-1"
	f.notifications = append(f.notifications, n)
	return nil
}

func (f *fakeAdminStore) TokenStats(context.Context) (*model.TokenStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stats, nil
}

func (f *fakeAdminStore) InsertAudit(_ context.Context, e *model.AuditEntry) error {
	f.audits = append(f.audits, e)
	return nil
}

func newAdminFixture(t *testing.T) (*AdminHandler, *fakeAdminStore, *fakePusher, time.Time) {
	t.Helper()
	store := &fakeAdminStore{}
	pusher := &fakePusher{totals: &push.SendTotals{Sent: 2}}
	h := NewAdminHandler(store, pusher, middleware.NewValidator(), discardLogger())
	now := time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }
	return h, store, pusher, now
}

func createNotification(h *AdminHandler, body string) *httptest.ResponseRecorder {
	req := withAuth(jsonRequest(http.MethodPost, "/api/v1/admin/notifications", body), adminSession("admin-uuid"))
	rec := httptest.NewRecorder()
	h.CreateNotification(rec, req)
	return rec
}

func TestAdminHandler_SendNow(t *testing.T) {
	h, store, pusher, now := newAdminFixture(t)

	rec := createNotification(h, `{"title":"Jumu'ah Mubarak","body":"Read Surah Al-Kahf","deep_link":"/quran/18","target_platform":"android"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	if len(pusher.sent) != 1 || pusher.sent[0] != "notif-1" {
		t.Fatalf("expected notification to be sent, got %v", pusher.sent)
	}
	n := store.notifications[0]
	if n.CreatedBy != "admin-uuid" || n.TargetPlatform != "android" || n.DeepLink == nil || *n.DeepLink != "/quran/18" {
		t.Errorf("unexpected stored notification: %+v", n)
	}

	var resp dto.NotificationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Sent == nil || *resp.Sent != 2 {
		t.Errorf("expected sent=2, got %v", resp.Sent)
	}
	if resp.Notification.Status != model.NotificationSent || resp.Notification.SentAt == nil || !resp.Notification.SentAt.Equal(now) {
		t.Errorf("unexpected notification state: %+v", resp.Notification)
	}

	if len(store.audits) != 1 {
		t.Fatalf("expected one audit entry, got %d", len(store.audits))
	}
	a := store.audits[0]
	if a.Action != model.AuditNotificationSent || a.ActorID != "admin-uuid" || a.ResourceType != model.ResourcePush {
		t.Errorf("unexpected audit entry: %+v", a)
	}
	if a.ResourceID == nil || *a.ResourceID != "notif-1" {
		t.Errorf("expected audit resource notif-1, got %v", a.ResourceID)
	}
}

func TestAdminHandler_Schedule(t *testing.T) {
	h, store, pusher, now := newAdminFixture(t)

	at := now.Add(2 * time.Hour).Format(time.RFC3339)
	rec := createNotification(h, `{"title":"Ramadan","body":"Suhoor ends soon","scheduled_at":"`+at+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(pusher.sent) != 0 {
		t.Errorf("scheduled notification must not be sent now, got %v", pusher.sent)
	}
	n := store.notifications[0]
	if n.Status != model.NotificationScheduled || n.ScheduledAt == nil || n.TargetPlatform != model.TargetAll {
		t.Errorf("unexpected stored notification: %+v", n)
	}
	if len(store.audits) != 1 || store.audits[0].Action != model.AuditNotificationScheduled {
		t.Errorf("expected schedule audit, got %+v", store.audits)
	}
}

func TestAdminHandler_PastScheduleSendsNow(t *testing.T) {
	h, _, pusher, now := newAdminFixture(t)

	at := now.Add(-time.Minute).Format(time.RFC3339)
	rec := createNotification(h, `{"title":"Reminder","body":"Now","scheduled_at":"`+at+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}
	if len(pusher.sent) != 1 {
		t.Errorf("expected immediate send, got %v", pusher.sent)
	}
}

func TestAdminHandler_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing title", `{"body":"b"}`, "title"},
		{"missing body", `{"title":"t"}`, "body"},
		{"http image", `{"title":"t","body":"b","image_url":"http://cdn.example.com/a.png"}`, "image_url"},
		{"private image host", `{"title":"t","body":"b","image_url":"https://10.0.0.5/a.png"}`, "image_url"},
		{"external deep link", `{"title":"t","body":"b","deep_link":"https://evil.example"}`, "deep_link"},
		{"unknown target", `{"title":"t","body":"b","target_platform":"tv"}`, "target_platform"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h, store, _, _ := newAdminFixture(t)
			rec := createNotification(h, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d", rec.Code)
			}
			if resp := decodeError(t, rec); resp.Details[tt.field] == "" {
				t.Errorf("expected detail for %s, got %v", tt.field, resp.Details)
			}
			if len(store.notifications) != 0 {
				t.Error("invalid notification must not be stored")
			}
		})
	}
}

func TestAdminHandler_SendFailure(t *testing.T) {
	h, store, pusher, _ := newAdminFixture(t)
	pusher.err = errors.New("list tokens: timeout")

	rec := createNotification(h, `{"title":"t","body":"b"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rec.Code)
	}
	if len(store.notifications) != 1 {
		t.Error("notification should be stored before sending")
	}
	if len(store.audits) != 0 {
		t.Error("failed send must not be audited as sent")
	}
}

func TestAdminHandler_TokenStats(t *testing.T) {
	h, store, _, _ := newAdminFixture(t)
	store.stats = &model.TokenStats{Android: 4, IOS: 3, Web: 1, Total: 8}

	rec := httptest.NewRecorder()
	h.TokenStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/push-tokens/stats", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var stats model.TokenStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode stats: %v", err)
	}
	if stats != *store.stats {
		t.Errorf("unexpected stats: %+v", stats)
	}

	store.err = errors.New("pool closed")
	rec = httptest.NewRecorder()
	h.TokenStats(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/push-tokens/stats", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", rec.Code)
	}
}
