package agent_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/unclebandit/campaign-portal/internal/agent"
)

func TestBuildWorkspaceSendsMasterKeyAndIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agents/workspace/build" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("api_key"); got != "master" {
			t.Errorf("expected master key, got %q", got)
		}
		if got := r.Header.Get("Idempotency-Key"); got != "key-1" {
			t.Errorf("expected idempotency key, got %q", got)
		}
		var body agent.BuildWorkspaceRequest
		json.NewDecoder(r.Body).Decode(&body)
		if body.Offering.Type != "SERVICE" {
			t.Errorf("expected SERVICE offering, got %q", body.Offering.Type)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"workspace": map[string]any{"oId": "wa_1"},
				"offering":  map[string]any{"oId": "of_1"},
				"apiKey":    "ws-secret",
				"personas":  []any{map[string]any{"oId": "pe_1", "name": "CFO"}},
				"useCases":  []any{map[string]any{"oId": "uc_1", "name": "Close faster"}},
			},
		})
	}))
	defer srv.Close()

	c := agent.NewClient(srv.URL, "master")
	res, err := c.BuildWorkspace(context.Background(), agent.BuildWorkspaceRequest{
		Offering: agent.OfferingSpec{Type: "SERVICE"},
	}, "key-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.WorkspaceOID != "wa_1" || res.OfferingOID != "of_1" || res.APIKey != "ws-secret" {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Personas) != 1 || res.Personas[0].OID != "pe_1" {
		t.Errorf("expected one persona, got %+v", res.Personas)
	}
	if len(res.UseCases) != 1 || res.UseCases[0].Name != "Close faster" {
		t.Errorf("expected one use case, got %+v", res.UseCases)
	}
}

func TestAPIErrorRetryability(t *testing.T) {
	status := http.StatusBadGateway
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api_key") != "ws-secret" {
			t.Errorf("expected workspace credential")
		}
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"message": "boom"})
	}))
	defer srv.Close()

	c := agent.NewClient(srv.URL, "master")
	_, err := c.CreateSegment(context.Background(), "ws-secret", agent.SegmentInput{Name: "Fintech"})
	var apiErr *agent.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "boom" {
		t.Errorf("expected upstream message, got %q", apiErr.Message)
	}
	if !agent.IsRetryable(err) {
		t.Errorf("5xx should be retryable")
	}

	status = http.StatusBadRequest
	_, err = c.CreateSegment(context.Background(), "ws-secret", agent.SegmentInput{Name: "Fintech"})
	if agent.IsRetryable(err) {
		t.Errorf("4xx should not be retryable")
	}
	if agent.IsRetryable(context.Canceled) {
		t.Errorf("cancellation should not be retryable")
	}
}

func TestListElementsUnwrapsData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/persona/list" || r.URL.Query().Get("limit") != "100" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []any{
				map[string]any{"oId": "pe_1", "name": "CFO"},
				map[string]any{"oId": "pe_2", "name": "COO"},
			},
		})
	}))
	defer srv.Close()

	objs, err := agent.NewClient(srv.URL, "").ListElements(context.Background(), "ws", "personas", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(objs) != 2 || objs[1].OID != "pe_2" {
		t.Errorf("unexpected objects %+v", objs)
	}
}
