package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/unclebandit/campaign-portal/internal/notify"
	"github.com/unclebandit/campaign-portal/internal/queue"
)

type FailingQueue struct{}

func (FailingQueue) Publish(string, any) error { return errors.New("broker down") }
func (FailingQueue) Subscribe(string, func(payload any) error) error { return nil }

func TestWebhookDeliveryThroughQueue(t *testing.T) {
	var mu sync.Mutex
	var got []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	q := queue.NewInMemoryQueue(nil)
	if err := notify.StartSubscriber(q, "notifications", notify.NewWebhookSender(time.Second), slog.Default()); err != nil {
		t.Fatalf("StartSubscriber() error = %v", err)
	}
	n := &notify.Notifier{Queue: q, Topic: "notifications"}

	deg := n.Notify(context.Background(), notify.Notification{
		URL:         srv.URL,
		Event:       notify.EventApprovalRequested,
		Recipient:   "ceo@acme.com",
		Subject:     "Review needed",
		ExecutionID: "exec-1",
	})
	if deg != nil {
		t.Fatalf("unexpected degradation %+v", deg)
	}
	q.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 {
		t.Fatalf("expected one webhook, got %d", len(got))
	}
	if got[0]["event"] != notify.EventApprovalRequested || got[0]["execution_id"] != "exec-1" {
		t.Errorf("unexpected body %v", got[0])
	}
	if _, leaked := got[0]["url"]; leaked {
		t.Errorf("destination url leaked into body")
	}
}

func TestNotifyFailureIsDegradation(t *testing.T) {
	n := &notify.Notifier{Queue: FailingQueue{}, Topic: "notifications"}
	deg := n.Notify(context.Background(), notify.Notification{URL: "http://hook", Event: notify.EventLaunchLive})
	if deg == nil || deg.Component != "notification" {
		t.Errorf("expected degradation, got %+v", deg)
	}
}

func TestNotifyWithoutDestinationIsSkipped(t *testing.T) {
	n := &notify.Notifier{Queue: FailingQueue{}, Topic: "notifications"}
	if deg := n.Notify(context.Background(), notify.Notification{Event: notify.EventLaunchLive}); deg != nil {
		t.Errorf("expected skip, got %+v", deg)
	}
	var nilNotifier *notify.Notifier
	if deg := nilNotifier.Notify(context.Background(), notify.Notification{URL: "http://hook"}); deg != nil {
		t.Errorf("expected nil notifier to skip, got %+v", deg)
	}
}

func TestWebhookSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	err := notify.NewWebhookSender(time.Second).Send(context.Background(), notify.Notification{URL: srv.URL, Event: "x"})
	if err == nil {
		t.Errorf("expected error for 502")
	}
}

func TestDecodeRawMessage(t *testing.T) {
	n, err := notify.Decode(json.RawMessage(`{"event":"launch_live","url":"http://hook"}`))
	if err != nil || n.Event != notify.EventLaunchLive || n.URL != "http://hook" {
		t.Errorf("Decode() = %+v, %v", n, err)
	}
	if _, err := notify.Decode(42); err == nil {
		t.Errorf("expected error for unknown payload")
	}
}
