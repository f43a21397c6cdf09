// Package agent talks to the agent platform that hosts client workspaces.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/unclebandit/campaign-portal/internal/agent"

// DefaultTimeout bounds any single platform call that has no tighter limit.
const DefaultTimeout = 50 * time.Second

// Client is a thin request/response wrapper. Workspace-scoped calls take the
// workspace credential; only BuildWorkspace uses the master key.
type Client struct {
	BaseURL   string
	MasterKey string
	HTTP      *http.Client
	tracer    trace.Tracer
}

func NewClient(baseURL, masterKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		MasterKey: masterKey,
		HTTP:      &http.Client{Timeout: DefaultTimeout},
		tracer:    otel.Tracer(tracerName),
	}
}

// APIError is a non-2xx platform response.
type APIError struct {
	Operation  string
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agent platform %s: status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsRetryable reports whether err is worth another attempt: transport
// failures and 5xx responses are, client errors and cancellations are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}

// Object is a created or listed platform entity.
type Object struct {
	OID  string         `json:"oId"`
	Name string         `json:"name,omitempty"`
	Data map[string]any `json:"data,omitempty"`
}

func (c *Client) do(ctx context.Context, op, method, path, apiKey string, headers map[string]string, in any, out any) error {
	ctx, span := c.tracer.Start(ctx, "agent."+op,
		trace.WithAttributes(
			attribute.String("agent.operation", op),
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	defer span.End()

	err := c.send(ctx, op, method, path, apiKey, headers, in, out, span)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

func (c *Client) send(ctx context.Context, op, method, path, apiKey string, headers map[string]string, in, out any, span trace.Span) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api_key", apiKey)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("agent platform %s: %w", op, err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Operation: op, StatusCode: resp.StatusCode, Message: errorMessage(raw), Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// errorMessage pulls a readable message out of an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}

// envelope handles responses that may or may not wrap the payload in "data".
type envelope map[string]any

func (e envelope) payload() map[string]any {
	if inner, ok := e["data"].(map[string]any); ok {
		return inner
	}
	return e
}

// lookup walks dotted paths and returns the first non-empty string found.
func lookup(m map[string]any, paths ...string) string {
	for _, p := range paths {
		var cur any = m
		for _, key := range strings.Split(p, ".") {
			obj, ok := cur.(map[string]any)
			if !ok {
				cur = nil
				break
			}
			cur = obj[key]
		}
		if s, ok := cur.(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toObject(m map[string]any) Object {
	return Object{
		OID:  lookup(m, "oId", "playbook.oId", "data.oId"),
		Name: lookup(m, "name", "internalName", "data.name"),
		Data: m,
	}
}

func query(path string, params map[string]string) string {
	v := url.Values{}
	for k, val := range params {
		v.Set(k, val)
	}
	return path + "?" + v.Encode()
}
