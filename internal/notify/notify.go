// Package notify delivers webhook notifications for submissions, approval
// requests and launches. Delivery is best-effort: callers get a degradation
// note instead of an error.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/unclebandit/campaign-portal/internal/model"
	"github.com/unclebandit/campaign-portal/internal/queue"
)

// Notification events.
const (
	EventQuestionnaireSubmitted = "questionnaire_submitted"
	EventApprovalRequested      = "approval_requested"
	EventApprovalDecided        = "approval_decided"
	EventLaunchLive             = "launch_live"
)

// Notification is the webhook body. URL is where it is delivered and is not
// part of the body.
type Notification struct {
	URL         string         `json:"url,omitempty"`
	Event       string         `json:"event"`
	Recipient   string         `json:"recipient,omitempty"`
	Subject     string         `json:"subject"`
	Body        string         `json:"body"`
	AccountID   string         `json:"account_id,omitempty"`
	ExecutionID string         `json:"execution_id,omitempty"`
	ApprovalID  string         `json:"approval_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	SentAt      time.Time      `json:"sent_at"`
}

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type WebhookSender struct {
	HTTP *http.Client
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	return &WebhookSender{HTTP: &http.Client{Timeout: timeout}}
}

func (s *WebhookSender) Send(ctx context.Context, n Notification) error {
	if n.URL == "" {
		return fmt.Errorf("notification %s has no destination", n.Event)
	}
	url := n.URL
	n.URL = ""
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s returned %d", n.Event, resp.StatusCode)
	}
	return nil
}

// Notifier enqueues notifications. With no queue it sends inline.
type Notifier struct {
	Queue  queue.Queue
	Topic  string
	Sender Sender
	Logger *slog.Logger
}

// Notify returns nil when the notification was handed off, or when no
// destination is configured for it.
func (n *Notifier) Notify(ctx context.Context, note Notification) *model.Degradation {
	if n == nil || note.URL == "" {
		return nil
	}
	if note.SentAt.IsZero() {
		note.SentAt = time.Now().UTC()
	}

	var err error
	switch {
	case n.Queue != nil:
		err = n.Queue.Publish(n.Topic, note)
	case n.Sender != nil:
		err = n.Sender.Send(ctx, note)
	default:
		err = fmt.Errorf("no delivery configured")
	}
	if err == nil {
		return nil
	}

	if n.Logger != nil {
		n.Logger.Warn("notification not delivered",
			slog.String("event", note.Event),
			slog.String("execution_id", note.ExecutionID),
			slog.String("error", err.Error()),
		)
	}
	return &model.Degradation{Component: "notification", Reason: err.Error()}
}

// Decode accepts the payload shapes a queue hands to subscribers.
func Decode(payload any) (Notification, error) {
	switch v := payload.(type) {
	case Notification:
		return v, nil
	case *Notification:
		return *v, nil
	case json.RawMessage:
		var n Notification
		err := json.Unmarshal(v, &n)
		return n, err
	case []byte:
		var n Notification
		err := json.Unmarshal(v, &n)
		return n, err
	}
	return Notification{}, fmt.Errorf("unexpected payload type %T", payload)
}

// Handler returns a queue subscriber that delivers each notification through
// sender. Undecodable payloads are logged and dropped rather than retried.
func Handler(sender Sender, timeout time.Duration, logger *slog.Logger) func(payload any) error {
	return func(payload any) error {
		n, err := Decode(payload)
		if err != nil {
			logger.Error("invalid notification payload", slog.String("error", err.Error()))
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := sender.Send(ctx, n); err != nil {
			return err
		}
		logger.Info("notification delivered",
			slog.String("event", n.Event),
			slog.String("execution_id", n.ExecutionID),
		)
		return nil
	}
}

// StartSubscriber wires Handler onto topic.
func StartSubscriber(q queue.Queue, topic string, sender Sender, logger *slog.Logger) error {
	if err := q.Subscribe(topic, Handler(sender, 15*time.Second, logger)); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}
