package enrichment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/unclebandit/campaign-portal/internal/enrichment"
	"github.com/unclebandit/campaign-portal/internal/model"
)

// fakeProvider records every call and answers from the handlers it holds.
type fakeProvider struct {
	mu     sync.Mutex
	calls  []string
	times  []time.Time
	email  func(body map[string]any) (int, any)
	mobile func(body map[string]any) (int, any)
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls = append(f.calls, r.URL.Path)
	f.times = append(f.times, time.Now())
	f.mu.Unlock()

	if r.Header.Get("X-API-Key") != "lm-key" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	var body map[string]any
	json.NewDecoder(r.Body).Decode(&body)

	handler := f.email
	if r.URL.Path == "/people/mobile-finder" {
		handler = f.mobile
	}
	status, out := handler(body)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(out)
}

func newService(t *testing.T, f *fakeProvider, delay, timeout time.Duration) *enrichment.Service {
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return enrichment.NewService(srv.URL, "lm-key", delay, timeout, nil)
}

func TestEnrichFindsEmailThenMobile(t *testing.T) {
	f := &fakeProvider{
		email: func(body map[string]any) (int, any) {
			if body["domain"] != "acme.com" || body["first_name"] != "Jane" || body["last_name"] != "van Dyke" {
				t.Errorf("unexpected email request %v", body)
			}
			return 200, map[string]any{"email": "jane@acme.com", "status": "valid", "company_size": "51-200"}
		},
		mobile: func(body map[string]any) (int, any) {
			if body["work_email"] != "jane@acme.com" {
				t.Errorf("unexpected mobile request %v", body)
			}
			return 200, map[string]any{"mobile_number": 15551234567}
		},
	}
	svc := newService(t, f, 0, time.Second)

	res := svc.Enrich(context.Background(), model.Prospect{
		Name: "Jane van Dyke", Company: "Acme", Title: "CFO", CompanyWebsite: "https://www.acme.com/about",
	})
	p := res.Prospect
	if p.Email == nil || *p.Email != "jane@acme.com" {
		t.Fatalf("expected email, got %v", p.Email)
	}
	if p.MobileNumber == nil || *p.MobileNumber != "15551234567" {
		t.Errorf("expected mobile, got %v", p.MobileNumber)
	}
	if p.EnrichmentData["company_size"] != "51-200" {
		t.Errorf("expected enrichment data, got %v", p.EnrichmentData)
	}
	if p.Name != "Jane van Dyke" || p.Title != "CFO" {
		t.Errorf("user-supplied fields changed: %+v", p)
	}
}

func TestEnrichWithoutDomainOrCompanySkipsBothLookups(t *testing.T) {
	f := &fakeProvider{
		email:  func(map[string]any) (int, any) { return 200, map[string]any{} },
		mobile: func(map[string]any) (int, any) { return 200, map[string]any{} },
	}
	svc := newService(t, f, 0, time.Second)

	res := svc.Enrich(context.Background(), model.Prospect{Name: "No Domain", Company: "  "})
	if res.Prospect.EmailStatus == nil || *res.Prospect.EmailStatus != model.EmailNotFound {
		t.Errorf("expected not_found, got %v", res.Prospect.EmailStatus)
	}
	if !res.MobileSkipped {
		t.Errorf("expected mobile lookup to be skipped")
	}
	if len(f.calls) != 0 {
		t.Errorf("expected no provider calls without a domain or company, got %v", f.calls)
	}
}

func TestEnrichByCompanyNameWithoutDomain(t *testing.T) {
	f := &fakeProvider{
		email: func(body map[string]any) (int, any) {
			if _, ok := body["domain"]; ok {
				t.Errorf("expected no domain in request, got %v", body)
			}
			if body["company_name"] != "Acme Corp" || body["first_name"] != "Jane" {
				t.Errorf("unexpected email request %v", body)
			}
			return 200, map[string]any{"email": "jane@acmecorp.com", "status": "valid"}
		},
		mobile: func(map[string]any) (int, any) { return 200, map[string]any{} },
	}
	svc := newService(t, f, 0, time.Second)

	res := svc.Enrich(context.Background(), model.Prospect{Name: "Jane Doe", Company: "Acme Corp"})
	if len(f.calls) == 0 || f.calls[0] != "/people/email-finder" {
		t.Fatalf("expected an email lookup, got %v", f.calls)
	}
	if res.Prospect.Email == nil || *res.Prospect.Email != "jane@acmecorp.com" {
		t.Errorf("expected email from company lookup, got %v", res.Prospect.Email)
	}
}

func TestEnrichSkipsMobileForUnconfidentEmail(t *testing.T) {
	f := &fakeProvider{
		email: func(map[string]any) (int, any) {
			return 200, map[string]any{"email": "guess@acme.com", "status": "catch_all"}
		},
		mobile: func(map[string]any) (int, any) {
			t.Error("mobile finder called")
			return 200, map[string]any{}
		},
	}
	res := newService(t, f, 0, time.Second).Enrich(context.Background(),
		model.Prospect{Name: "Sam", CompanyWebsite: "acme.com"})
	if !res.MobileSkipped || res.Prospect.MobileNumber != nil {
		t.Errorf("expected skipped mobile, got %+v", res)
	}
}

func TestEnrichTimeoutFailsClosed(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	t.Cleanup(func() {
		close(block)
		srv.Close()
	})
	svc := enrichment.NewService(srv.URL, "lm-key", 0, 50*time.Millisecond, nil)

	start := time.Now()
	res := svc.Enrich(context.Background(), model.Prospect{Name: "Slow Poke", CompanyWebsite: "slow.io"})
	if time.Since(start) > 2*time.Second {
		t.Fatalf("lookup did not respect timeout")
	}
	if res.Prospect.Email != nil || res.Prospect.EmailStatus != nil {
		t.Errorf("expected nil fields after timeout, got %+v", res.Prospect)
	}
	if len(res.Degradations) != 1 || res.Degradations[0].Component != "email_lookup" {
		t.Errorf("expected email degradation, got %+v", res.Degradations)
	}
}

func TestEnrichBatchContinuesPastFailuresAndThrottles(t *testing.T) {
	f := &fakeProvider{
		email: func(body map[string]any) (int, any) {
			if body["domain"] == "broken.com" {
				return 500, map[string]any{"message": "boom"}
			}
			return 200, map[string]any{"email": "x@" + body["domain"].(string), "status": "not_found"}
		},
		mobile: func(map[string]any) (int, any) { return 200, map[string]any{} },
	}
	delay := 40 * time.Millisecond
	svc := newService(t, f, delay, time.Second)

	prospects := []*model.Prospect{
		{ID: 1, Name: "A One", CompanyWebsite: "a.com"},
		{ID: 2, Name: "B Two", CompanyWebsite: "broken.com"},
		{ID: 3, Name: "C Three", CompanyWebsite: "c.com"},
	}
	results := svc.EnrichBatch(context.Background(), prospects)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[1].Prospect.Email != nil || len(results[1].Degradations) == 0 {
		t.Errorf("expected failed lookup for broken.com, got %+v", results[1])
	}
	if results[2].Prospect.Email == nil {
		t.Errorf("expected the prospect after a failure to still be enriched")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 1; i < len(f.times); i++ {
		// Allow some scheduler slack below the configured delay.
		if gap := f.times[i].Sub(f.times[i-1]); gap < delay-10*time.Millisecond {
			t.Errorf("calls %d and %d only %v apart", i-1, i, gap)
		}
	}
}

func TestEnrichKeepsExistingValues(t *testing.T) {
	f := &fakeProvider{
		email: func(map[string]any) (int, any) {
			t.Error("email finder called for a prospect that already has an email")
			return 200, map[string]any{}
		},
		mobile: func(map[string]any) (int, any) { return 200, map[string]any{"mobile_number": "+1 555"} },
	}
	email, status := "known@acme.com", model.EmailValid
	res := newService(t, f, 0, time.Second).Enrich(context.Background(), model.Prospect{
		Name: "Known", CompanyWebsite: "acme.com", Email: &email, EmailStatus: &status,
	})
	if *res.Prospect.Email != email {
		t.Errorf("existing email overwritten")
	}
	if res.Prospect.MobileNumber == nil || *res.Prospect.MobileNumber != "+1 555" {
		t.Errorf("expected mobile from string response, got %v", res.Prospect.MobileNumber)
	}
}

func TestDomain(t *testing.T) {
	cases := map[string]string{
		"https://www.acme.com/about": "acme.com",
		"http://acme.io":             "acme.io",
		"ACME.com?x=1":               "acme.com",
		"":                           "",
		"not a domain":               "",
	}
	for in, want := range cases {
		if got := enrichment.Domain(in); got != want {
			t.Errorf("Domain(%q) = %q, want %q", in, got, want)
		}
	}
}
