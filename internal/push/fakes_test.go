package push

import (
	"context"
	"sync"
	"time"

	"github.com/noorapp/noor/internal/model"
	"github.com/noorapp/noor/internal/repository"
)

type fakeStore struct {
	mu            sync.Mutex
	notifications map[string]*model.Notification
	tokens        map[string]*model.PushToken
	deliveries    map[string]*model.PushDelivery
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		notifications: make(map[string]*model.Notification),
		tokens:        make(map[string]*model.PushToken),
		deliveries:    make(map[string]*model.PushDelivery),
	}
}

func (f *fakeStore) addToken(id, deviceID string, platform model.Platform) {
	f.tokens[id] = &model.PushToken{ID: id, DeviceID: deviceID, Token: "tok-" + id, Platform: platform, Enabled: true}
}

func (f *fakeStore) GetNotification(_ context.Context, id string) (*model.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return nil, repository.ErrNotificationNotFound
	}
	cp := *n
	return &cp, nil
}

func (f *fakeStore) MarkNotification(_ context.Context, id string, status model.NotificationStatus, sentAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.notifications[id]
	if !ok {
		return repository.ErrNotificationNotFound
	}
	n.Status = status
	n.SentAt = sentAt
	return nil
}

func (f *fakeStore) ListTargetTokens(_ context.Context, target, deviceID string) ([]*model.PushToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := &model.Notification{TargetPlatform: target}
	var out []*model.PushToken
	for _, t := range f.tokens {
		if !t.Enabled || !n.Targets(t.Platform) {
			continue
		}
		if deviceID != "" && t.DeviceID != deviceID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeStore) GetPushToken(_ context.Context, id string) (*model.PushToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tokens[id]
	if !ok {
		return nil, repository.ErrPushTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeStore) DisablePushToken(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.tokens[id]; ok {
		t.Enabled = false
	}
	return nil
}

func (f *fakeStore) CreateDelivery(_ context.Context, d *model.PushDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *d
	f.deliveries[d.ID] = &cp
	return nil
}

func (f *fakeStore) GetPendingDeliveries(_ context.Context, now time.Time, limit int) ([]*model.PushDelivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.PushDelivery
	for _, d := range f.deliveries {
		if d.Status == model.DeliveryStatusPending && !d.NextRetryAt.After(now) && len(out) < limit {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateDelivery(_ context.Context, d *model.PushDelivery) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.deliveries[d.ID]; !ok {
		return repository.ErrDeliveryNotFound
	}
	cp := *d
	f.deliveries[d.ID] = &cp
	return nil
}

func (f *fakeStore) deliveriesByStatus(status model.DeliveryStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, d := range f.deliveries {
		if d.Status == status {
			n++
		}
	}
	return n
}

// scriptedSender fails tokens listed in failures with the given error.
type scriptedSender struct {
	mu       sync.Mutex
	failures map[string]error
	sent     []string
}

func (s *scriptedSender) Send(_ context.Context, msg *Message) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failures[msg.Token]; ok {
		if err == ErrTokenUnregistered {
			return 410, err
		}
		return 503, err
	}
	s.sent = append(s.sent, msg.Token)
	return 200, nil
}
