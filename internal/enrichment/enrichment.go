// Package enrichment resolves prospect contact details through an external
// email and mobile lookup provider.
package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unclebandit/campaign-portal/internal/model"
)

const (
	emailFinderPath  = "/people/email-finder"
	mobileFinderPath = "/people/mobile-finder"
)

type Service struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
	// Timeout bounds each lookup. A timed-out lookup counts as failed.
	Timeout time.Duration
	Logger  *slog.Logger

	// limiter spaces calls by the provider's minimum delay. It is shared by
	// every caller of this Service.
	limiter *rate.Limiter
}

func NewService(baseURL, apiKey string, delay, timeout time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	return &Service{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{},
		Timeout: timeout,
		Logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Result is the enriched copy of a prospect plus any lookups that failed.
type Result struct {
	Prospect      *model.Prospect     `json:"prospect"`
	MobileSkipped bool                `json:"mobile_skipped"`
	Degradations  []model.Degradation `json:"degradations,omitempty"`
}

type emailRequest struct {
	FirstName   string  `json:"first_name"`
	LastName    *string `json:"last_name"`
	Domain      string  `json:"domain,omitempty"`
	CompanyName string  `json:"company_name,omitempty"`
}

type emailResponse struct {
	Email              string `json:"email"`
	Status             string `json:"status"`
	MXProvider         string `json:"mx_provider"`
	MXSecurityGateway  bool   `json:"mx_security_gateway"`
	CompanySize        string `json:"company_size"`
	CompanyIndustry    string `json:"company_industry"`
	CompanyLocation    any    `json:"company_location"`
	CompanyLinkedInURL string `json:"company_linkedin_url"`
}

type mobileRequest struct {
	WorkEmail  string `json:"work_email,omitempty"`
	ProfileURL string `json:"profile_url,omitempty"`
}

type mobileResponse struct {
	MobileNumber json.RawMessage `json:"mobile_number"`
}

// Enrich never returns an error. Failed lookups leave the corresponding
// fields nil and add a degradation entry. Fields already set on p are kept.
func (s *Service) Enrich(ctx context.Context, p model.Prospect) Result {
	res := Result{Prospect: &p}
	data := make(map[string]any, len(p.EnrichmentData))
	for k, v := range p.EnrichmentData {
		data[k] = v
	}
	p.EnrichmentData = data

	if p.Email == nil {
		s.findEmail(ctx, &res)
	}

	email := deref(p.Email)
	status := deref(p.EmailStatus)
	if email == "" || !model.IsConfidentEmailStatus(status) || p.MobileNumber != nil {
		res.MobileSkipped = p.MobileNumber == nil
		return res
	}
	s.findMobile(ctx, &res, email)
	return res
}

func (s *Service) findEmail(ctx context.Context, res *Result) {
	p := res.Prospect
	domain := Domain(p.CompanyWebsite)
	company := strings.TrimSpace(p.Company)
	if domain == "" && company == "" {
		notFound := model.EmailNotFound
		p.EmailStatus = &notFound
		return
	}

	first, last := SplitName(p.Name)
	var out emailResponse
	err := s.call(ctx, emailFinderPath, emailRequest{
		FirstName:   first,
		LastName:    last,
		Domain:      domain,
		CompanyName: company,
	}, &out)
	if err != nil {
		s.Logger.Warn("email lookup failed", slog.Int("prospect_id", p.ID), slog.String("error", err.Error()))
		res.Degradations = append(res.Degradations, model.Degradation{Component: "email_lookup", Reason: err.Error()})
		return
	}

	if out.Email != "" {
		p.Email = &out.Email
	}
	if out.Status != "" {
		p.EmailStatus = &out.Status
	}
	for k, v := range map[string]any{
		"mx_provider":          out.MXProvider,
		"mx_security_gateway":  out.MXSecurityGateway,
		"company_size":         out.CompanySize,
		"company_industry":     out.CompanyIndustry,
		"company_location":     out.CompanyLocation,
		"company_linkedin_url": out.CompanyLinkedInURL,
	} {
		if v != nil && v != "" {
			p.EnrichmentData[k] = v
		}
	}
}

func (s *Service) findMobile(ctx context.Context, res *Result, email string) {
	p := res.Prospect
	var out mobileResponse
	err := s.call(ctx, mobileFinderPath, mobileRequest{WorkEmail: email, ProfileURL: p.LinkedInURL}, &out)
	if err != nil {
		s.Logger.Warn("mobile lookup failed", slog.Int("prospect_id", p.ID), slog.String("error", err.Error()))
		res.Degradations = append(res.Degradations, model.Degradation{Component: "mobile_lookup", Reason: err.Error()})
		return
	}
	if n := rawNumber(out.MobileNumber); n != "" {
		p.MobileNumber = &n
	}
}

// EnrichBatch runs Enrich over prospects in order. One failure never stops
// the rest.
func (s *Service) EnrichBatch(ctx context.Context, prospects []*model.Prospect) []Result {
	results := make([]Result, 0, len(prospects))
	for _, p := range prospects {
		results = append(results, s.Enrich(ctx, *p))
	}
	return results
}

// call waits for the limiter, then runs one lookup under its own deadline.
func (s *Service) call(ctx context.Context, path string, in, out any) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", s.APIKey)

	resp, err := s.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}

// Domain extracts a bare host from a website value such as
// "https://www.acme.com/about".
func Domain(website string) string {
	d := strings.TrimSpace(strings.ToLower(website))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if !strings.Contains(d, ".") {
		return ""
	}
	return d
}

// SplitName splits on the first space; last is nil for a single name.
func SplitName(name string) (string, *string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", nil
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	last := strings.Join(parts[1:], " ")
	return parts[0], &last
}

// rawNumber accepts the provider's mobile number as either a JSON number or
// a string.
func rawNumber(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return ""
	}
	return strings.Trim(s, `"`)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
