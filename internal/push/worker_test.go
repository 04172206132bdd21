package push

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/noorapp/noor/internal/model"
)

func TestWorker_RetriesDueDeliveries(t *testing.T) {
	t.Parallel()

	store := seededStore()
	sender := &scriptedSender{failures: map[string]error{
		"tok-a1": errors.New("HTTP 503"),
		"tok-i1": errors.New("HTTP 503"),
		"tok-w2": errors.New("HTTP 503"),
	}}
	svc := NewService(store, sender, testLogger(), nil)

	if _, err := svc.Send(context.Background(), "n1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if store.notifications["n1"].Status != model.NotificationFailed {
		t.Fatalf("expected failed notification after first fan-out")
	}

	// Gateway recovers; jump past the first backoff.
	sender.failures = nil
	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	w := NewWorker(svc, testLogger())
	n, err := w.ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if n != 3 {
		t.Errorf("attempted %d deliveries, want 3", n)
	}
	if store.deliveriesByStatus(model.DeliveryStatusSent) != 3 {
		t.Error("all deliveries should now be sent")
	}
	if store.notifications["n1"].Status != model.NotificationSent {
		t.Errorf("notification should flip to sent, got %s", store.notifications["n1"].Status)
	}
	for _, d := range store.deliveries {
		if d.AttemptCount != 2 {
			t.Errorf("delivery %s attempt_count = %d, want 2", d.ID, d.AttemptCount)
		}
	}
}

func TestWorker_NotYetDue(t *testing.T) {
	t.Parallel()

	store := seededStore()
	sender := &scriptedSender{failures: map[string]error{"tok-a1": errors.New("HTTP 500")}}
	svc := NewService(store, sender, testLogger(), nil)
	if _, err := svc.Send(context.Background(), "n1"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	n, err := NewWorker(svc, testLogger()).ProcessOnce(context.Background())
	if err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("nothing should be due yet, attempted %d", n)
	}
}

func TestWorker_DropsDisabledTokens(t *testing.T) {
	t.Parallel()

	store := seededStore()
	sender := &scriptedSender{failures: map[string]error{"tok-a1": errors.New("HTTP 500")}}
	svc := NewService(store, sender, testLogger(), nil)
	if _, err := svc.Send(context.Background(), "n1"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_ = store.DisablePushToken(context.Background(), "a1")

	svc.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if _, err := NewWorker(svc, testLogger()).ProcessOnce(context.Background()); err != nil {
		t.Fatalf("ProcessOnce: %v", err)
	}
	if store.deliveriesByStatus(model.DeliveryStatusDropped) != 1 {
		t.Error("delivery to a disabled token should be dropped")
	}
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	w := NewWorker(NewService(newFakeStore(), &scriptedSender{}, testLogger(), nil), testLogger())
	w.SetPollInterval(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	if err := w.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}
