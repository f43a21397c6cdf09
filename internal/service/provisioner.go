package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/unclebandit/campaign-portal/internal/agent"
	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/model"
	"github.com/unclebandit/campaign-portal/internal/notify"
	"github.com/unclebandit/campaign-portal/internal/repository"
)

const (
	brandVoiceOID = "bv_fractional_ops"

	statusQuoQuestion = "Why should they move away from the status quo? Sometimes, your biggest competitor is inaction. " +
		"The prospect understands your benefits at a high level, but it can't answer the 'what's in it for them.' " +
		"How would you paint a picture of the future in a way that makes it impossible for your prospect to avoid " +
		"learning more? What's in it for them?"

	// playbookAttempts is the first try plus three retries.
	playbookAttempts = 4
)

// Phase 2 steps, in execution order.
const (
	StepReferences  = "references"
	StepSegments    = "segments"
	StepCompetitors = "competitors"
	StepPlaybooks   = "playbooks"
)

var allSteps = []string{StepReferences, StepSegments, StepCompetitors, StepPlaybooks}

type ClientReference struct {
	CompanyName   string `json:"companyName"`
	CompanyDomain string `json:"companyDomain"`
	Industry      string `json:"industry"`
	SuccessStory  string `json:"successStory,omitempty"`
}

type Competitor struct {
	CompanyName    string `json:"companyName"`
	CompanyWebsite string `json:"companyWebsite"`
}

// Questionnaire is the onboarding brief a client submits.
type Questionnaire struct {
	CompanyInfo struct {
		CompanyName   string `json:"companyName"`
		CompanyDomain string `json:"companyDomain"`
	} `json:"companyInfo"`
	WhatYouDo struct {
		Industry  string `json:"industry"`
		WhatYouDo string `json:"whatYouDo"`
	} `json:"whatYouDo"`
	HowYouDoIt struct {
		HowYouDoIt  string `json:"howYouDoIt"`
		UniqueValue string `json:"uniqueValue"`
	} `json:"howYouDoIt"`
	WhatYouDeliver struct {
		MainService    string `json:"mainService"`
		WhatYouDeliver string `json:"whatYouDeliver"`
		TopUseCases    string `json:"topUseCases"`
	} `json:"whatYouDeliver"`
	CreatingDesire struct {
		Barriers    string `json:"barriers"`
		WhyMoveAway string `json:"whyMoveAway"`
	} `json:"creatingDesire"`
	YourBuyers struct {
		SeniorityLevel                []string `json:"seniorityLevel"`
		JobTitles                     string   `json:"jobTitles"`
		CompanySize                   string   `json:"companySize"`
		GeographicMarkets             string   `json:"geographicMarkets"`
		PreferredEngagement           string   `json:"preferredEngagement"`
		DecisionMakerResponsibilities string   `json:"decisionMakerResponsibilities"`
		ProspectChallenges            string   `json:"prospectChallenges"`
	} `json:"yourBuyers"`
	SocialProof struct {
		ProofPoints      string            `json:"proofPoints"`
		ClientReferences []ClientReference `json:"clientReferences"`
	} `json:"socialProof"`
	Positioning struct {
		Competitors string `json:"competitors"`
	} `json:"positioning"`
	LeadMagnets struct {
		LeadMagnet string `json:"leadMagnet"`
	} `json:"leadMagnets"`
}

type Phase1Request struct {
	Questionnaire  Questionnaire `json:"questionnaireData"`
	IdempotencyKey string        `json:"idempotencyKey,omitempty"`
	// Retry must be set to try again after a failed attempt with the same key.
	Retry bool `json:"retry,omitempty"`
	// Force re-provisions an account that already has a workspace. Admin only.
	Force bool `json:"force,omitempty"`
}

type Phase1Result struct {
	WorkspaceOID string              `json:"workspaceOId"`
	OfferingOID  string              `json:"offeringOId"`
	Credential   string              `json:"-"`
	Personas     []agent.Object      `json:"personas"`
	UseCases     []agent.Object      `json:"useCases"`
	Reused       bool                `json:"reused"`
	Degradations []model.Degradation `json:"degradations,omitempty"`
}

type Phase2Request struct {
	ClientReferences []ClientReference `json:"clientReferences"`
	Competitors      []Competitor      `json:"competitors"`
	// Steps limits which steps run. Empty means all.
	Steps []string `json:"steps,omitempty"`
}

type ItemError struct {
	Index int    `json:"index"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error"`
}

// StepResult is reported per step and never collapsed into a single error:
// a step can create some items and fail others.
type StepResult struct {
	Step    string      `json:"step"`
	Created int         `json:"created"`
	Total   int         `json:"total"`
	Skipped bool        `json:"skipped"`
	Reason  string      `json:"reason,omitempty"`
	Errors  []ItemError `json:"errors,omitempty"`
}

func (s StepResult) Partial() bool { return len(s.Errors) > 0 }

type PhaseTwoResult struct {
	Steps []StepResult `json:"steps"`
}

type Provisioner struct {
	Platform   Platform
	Workspaces repository.WorkspaceRepositoryInterface
	Notifier   *notify.Notifier
	// SubmissionWebhookURL receives the questionnaire after Phase 1.
	SubmissionWebhookURL string
	Logger               *slog.Logger
	// Sleep waits between playbook retries; tests replace it.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ProvisionPhase1 creates the account's workspace and primary offering, or
// returns the existing one when its credential is still valid.
func (p *Provisioner) ProvisionPhase1(ctx context.Context, actor model.Actor, req Phase1Request) (*Phase1Result, error) {
	q := req.Questionnaire
	company := strings.TrimSpace(q.CompanyInfo.CompanyName)
	domain := bareDomain(q.CompanyInfo.CompanyDomain)
	if company == "" {
		return nil, appErrors.NewValidation("companyInfo.companyName", "is required")
	}
	if domain == "" {
		return nil, appErrors.NewValidation("companyInfo.companyDomain", "is required")
	}
	if req.Force && !actor.IsAdmin() {
		return nil, appErrors.NewForbidden("only admins can re-provision a workspace")
	}

	accountID := actor.AccountID()
	existing, err := p.Workspaces.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if existing.HasValidCredential() && !req.Force {
		p.log().Info("workspace already provisioned", slog.String("account_id", accountID))
		return reusedResult(existing), nil
	}

	workspaceName := company + " - Fractional Ops Workspace"
	key := req.IdempotencyKey
	if key == "" {
		key = IdempotencyKey(accountID, workspaceName)
		if req.Force && existing != nil {
			key = IdempotencyKey(accountID, workspaceName, "reprovision", existing.WorkspaceOID)
		}
	}

	if err := p.claimAttempt(ctx, key, accountID, req.Retry); err != nil {
		return nil, err
	}
	if req.Force && existing.HasValidCredential() {
		if err := p.Workspaces.RevokeCredential(ctx, accountID); err != nil {
			p.finishAttempt(ctx, key, model.AttemptFailed, err.Error())
			return nil, err
		}
		p.log().Info("workspace credential revoked for re-provisioning",
			slog.String("account_id", accountID),
			slog.String("workspace_oid", existing.WorkspaceOID),
		)
	}

	runtimeContext, _ := json.Marshal(q)
	build := agent.BuildWorkspaceRequest{
		Workspace: agent.WorkspaceSpec{
			Name:             workspaceName,
			URL:              "https://" + domain,
			AddExistingUsers: true,
			AgentOIDs:        []string{},
		},
		Offering:            BuildOffering(q),
		RuntimeContext:      string(runtimeContext),
		BrandVoiceOID:       brandVoiceOID,
		CreateDefaultAgents: true,
	}

	res, err := p.Platform.BuildWorkspace(ctx, build, key)
	if err != nil {
		p.finishAttempt(ctx, key, model.AttemptFailed, err.Error())
		p.log().Error("workspace build failed",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
		return nil, appErrors.NewUpstreamProvisioning("workspace.build", upstreamStatus(err), upstreamDetail(err), err)
	}

	ws := &model.Workspace{
		AccountID:       accountID,
		WorkspaceOID:    res.WorkspaceOID,
		OfferingOID:     res.OfferingOID,
		Credential:      res.APIKey,
		CompanyName:     company,
		CompanyDomain:   domain,
		ContextAgentOID: res.ContextAgentOID,
		Personas:        toSet(res.Personas),
		UseCases:        toSet(res.UseCases),
	}
	if existing != nil {
		err = p.Workspaces.ReplaceIdentity(ctx, ws)
	} else {
		err = p.Workspaces.Create(ctx, ws)
	}
	if err != nil {
		p.finishAttempt(ctx, key, model.AttemptFailed, "persist: "+err.Error())
		return nil, fmt.Errorf("save workspace: %w", err)
	}
	p.finishAttempt(ctx, key, model.AttemptSucceeded, "")

	result := &Phase1Result{
		WorkspaceOID: res.WorkspaceOID,
		OfferingOID:  res.OfferingOID,
		Credential:   res.APIKey,
		Personas:     res.Personas,
		UseCases:     res.UseCases,
	}
	if deg := p.Notifier.Notify(ctx, notify.Notification{
		URL:       p.SubmissionWebhookURL,
		Event:     notify.EventQuestionnaireSubmitted,
		Recipient: actor.Email,
		Subject:   "Questionnaire submitted: " + company,
		Body:      string(runtimeContext),
		AccountID: accountID,
	}); deg != nil {
		result.Degradations = append(result.Degradations, *deg)
	}

	p.log().Info("workspace provisioned",
		slog.String("account_id", accountID),
		slog.String("workspace_oid", res.WorkspaceOID),
		slog.Bool("reprovisioned", existing != nil),
	)
	return result, nil
}

// claimAttempt records the attempt before any upstream call so concurrent or
// repeated submissions cannot build two workspaces.
func (p *Provisioner) claimAttempt(ctx context.Context, key, accountID string, retry bool) error {
	attempt, created, err := p.Workspaces.BeginAttempt(ctx, key, accountID)
	if err != nil {
		return fmt.Errorf("record provisioning attempt: %w", err)
	}
	if created {
		return nil
	}
	switch attempt.Status {
	case model.AttemptInFlight:
		return appErrors.NewConflict("provisioning already in progress for this account")
	case model.AttemptSucceeded:
		return appErrors.NewConflict("provisioning already completed for this request")
	case model.AttemptFailed:
		if !retry {
			return appErrors.NewConflict("previous provisioning attempt failed (%s); resubmit with retry=true", attempt.Detail)
		}
		restarted, err := p.Workspaces.RestartAttempt(ctx, key)
		if err != nil {
			return fmt.Errorf("restart provisioning attempt: %w", err)
		}
		if !restarted {
			return appErrors.NewConflict("provisioning already in progress for this account")
		}
	}
	return nil
}

func (p *Provisioner) finishAttempt(ctx context.Context, key, status, detail string) {
	if err := p.Workspaces.FinishAttempt(ctx, key, status, detail); err != nil {
		p.log().Error("failed to record attempt outcome",
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}

func reusedResult(ws *model.Workspace) *Phase1Result {
	res := &Phase1Result{
		WorkspaceOID: ws.WorkspaceOID,
		OfferingOID:  ws.OfferingOID,
		Credential:   ws.Credential,
		Reused:       true,
	}
	for oid, payload := range ws.Personas {
		res.Personas = append(res.Personas, agent.Object{OID: oid, Data: payload})
	}
	for oid, payload := range ws.UseCases {
		res.UseCases = append(res.UseCases, agent.Object{OID: oid, Data: payload})
	}
	return res
}

// BuildOffering derives the primary offering from the questionnaire. The
// output depends on the questionnaire only.
func BuildOffering(q Questionnaire) agent.OfferingSpec {
	company := orDefault(q.CompanyInfo.CompanyName, "Client Company")
	service := orDefault(q.WhatYouDeliver.MainService, "revenue growth services")
	answer := orDefault(q.CreatingDesire.WhyMoveAway, "operational challenges")
	return agent.OfferingSpec{
		Type:                "SERVICE",
		Name:                company + " - " + service,
		DifferentiatedValue: orDefault(q.HowYouDoIt.UniqueValue, "unique value proposition"),
		StatusQuo:           statusQuoQuestion + "\n\nAnswer: " + answer,
	}
}

// IdempotencyKey hashes its parts into a stable key.
func IdempotencyKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

// ProvisionPhase2 enriches an existing workspace. Every step runs on its own
// and failures in one never roll back another.
func (p *Provisioner) ProvisionPhase2(ctx context.Context, actor model.Actor, req Phase2Request) (*PhaseTwoResult, error) {
	steps, err := selectSteps(req.Steps)
	if err != nil {
		return nil, err
	}
	accountID := actor.AccountID()
	ws, err := p.Workspaces.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	if !ws.HasValidCredential() {
		return nil, appErrors.NewTransition("workspace", "not_provisioned", "enriched", "phase 1 must complete first")
	}

	result := &PhaseTwoResult{}
	if steps[StepReferences] {
		result.Steps = append(result.Steps, p.createReferences(ctx, ws, req.ClientReferences))
	}
	if steps[StepSegments] {
		industries := referenceIndustries(req.ClientReferences)
		if !steps[StepReferences] && len(req.ClientReferences) == 0 {
			industries = storedIndustries(ws.References)
		}
		result.Steps = append(result.Steps, p.createSegments(ctx, ws, industries))
	}
	if steps[StepCompetitors] {
		result.Steps = append(result.Steps, p.createCompetitors(ctx, ws, req.Competitors))
	}
	if steps[StepPlaybooks] {
		result.Steps = append(result.Steps, p.createPlaybooks(ctx, ws))
	}
	return result, nil
}

func selectSteps(requested []string) (map[string]bool, error) {
	selected := map[string]bool{}
	if len(requested) == 0 {
		for _, s := range allSteps {
			selected[s] = true
		}
		return selected, nil
	}
	for _, s := range requested {
		known := false
		for _, a := range allSteps {
			if s == a {
				known = true
			}
		}
		if !known {
			return nil, appErrors.NewValidation("steps", "unknown step "+s)
		}
		selected[s] = true
	}
	return selected, nil
}

func (p *Provisioner) createReferences(ctx context.Context, ws *model.Workspace, refs []ClientReference) StepResult {
	res := StepResult{Step: StepReferences, Total: len(refs)}
	if len(refs) == 0 {
		res.Skipped, res.Reason = true, "no client references supplied"
		return res
	}

	created := model.ElementSet{}
	for i, ref := range refs {
		if strings.TrimSpace(ref.CompanyName) == "" || strings.TrimSpace(ref.CompanyDomain) == "" || strings.TrimSpace(ref.Industry) == "" {
			res.Errors = append(res.Errors, ItemError{Index: i, Name: ref.CompanyName,
				Error: "missing required fields (companyName, companyDomain, or industry)"})
			continue
		}
		details := ref.SuccessStory
		if details == "" {
			details = "Client in " + ref.Industry + " industry"
		}
		obj, err := p.Platform.CreateReference(ctx, ws.Credential, agent.ReferenceInput{
			ProductOID:    ws.OfferingOID,
			BrandVoiceOID: brandVoiceOID,
			URL:           ref.CompanyDomain,
			CompanyName:   ref.CompanyName,
			CompanyDomain: bareDomain(ref.CompanyDomain),
			Details:       details,
		})
		if err != nil {
			res.Errors = append(res.Errors, ItemError{Index: i, Name: ref.CompanyName, Error: err.Error()})
			continue
		}
		if obj.OID == "" {
			res.Errors = append(res.Errors, ItemError{Index: i, Name: ref.CompanyName, Error: "platform returned no id"})
			continue
		}
		created[obj.OID] = map[string]any{
			"companyName": ref.CompanyName,
			"domain":      bareDomain(ref.CompanyDomain),
			"industry":    strings.TrimSpace(ref.Industry),
			"details":     details,
		}
		res.Created++
	}
	p.merge(ctx, ws, model.ElementReferences, created, &res)
	return res
}

// referenceIndustries returns the unique trimmed industries in input order.
func referenceIndustries(refs []ClientReference) []string {
	var industries []string
	seen := map[string]bool{}
	for _, ref := range refs {
		industry := strings.TrimSpace(ref.Industry)
		if industry == "" || seen[industry] {
			continue
		}
		seen[industry] = true
		industries = append(industries, industry)
	}
	return industries
}

// storedIndustries reads industries off references already on the workspace
// record, sorted so retries create segments in a stable order.
func storedIndustries(refs model.ElementSet) []string {
	var industries []string
	seen := map[string]bool{}
	for _, ref := range refs {
		industry, _ := ref["industry"].(string)
		industry = strings.TrimSpace(industry)
		if industry == "" || seen[industry] {
			continue
		}
		seen[industry] = true
		industries = append(industries, industry)
	}
	sort.Strings(industries)
	return industries
}

func (p *Provisioner) createSegments(ctx context.Context, ws *model.Workspace, industries []string) StepResult {
	res := StepResult{Step: StepSegments, Total: len(industries)}
	if len(industries) == 0 {
		res.Skipped, res.Reason = true, "no industries in client references"
		return res
	}

	created := model.ElementSet{}
	for i, industry := range industries {
		obj, err := p.Platform.CreateSegment(ctx, ws.Credential, agent.SegmentInput{
			Name:               industry,
			Description:        "Market segment for " + industry + " industry",
			Data:               map[string]any{},
			PrimaryOfferingOID: ws.OfferingOID,
			LinkingStrategy:    agent.LinkingStrategy{Mode: "ALL"},
		})
		if err != nil || obj.OID == "" {
			res.Errors = append(res.Errors, ItemError{Index: i, Name: industry, Error: errText(err, "platform returned no id")})
			continue
		}
		created[obj.OID] = map[string]any{"name": industry}
		res.Created++
	}
	p.merge(ctx, ws, model.ElementSegments, created, &res)
	return res
}

func (p *Provisioner) createCompetitors(ctx context.Context, ws *model.Workspace, competitors []Competitor) StepResult {
	res := StepResult{Step: StepCompetitors, Total: len(competitors)}
	var batch []agent.CompetitorSpec
	var valid []Competitor
	for i, c := range competitors {
		name, site := strings.TrimSpace(c.CompanyName), strings.TrimSpace(c.CompanyWebsite)
		if name == "" || site == "" {
			res.Errors = append(res.Errors, ItemError{Index: i, Name: name, Error: "missing companyName or companyWebsite"})
			continue
		}
		if !strings.HasPrefix(site, "http") {
			site = "https://" + site
		}
		batch = append(batch, agent.CompetitorSpec{Name: name, Sources: []agent.Source{{Type: "URL", Value: site}}})
		valid = append(valid, Competitor{CompanyName: name, CompanyWebsite: site})
	}
	if len(batch) == 0 {
		res.Skipped, res.Reason = true, "no valid competitors supplied"
		return res
	}

	objs, err := p.Platform.GenerateCompetitors(ctx, ws.Credential, agent.CompetitorBatch{
		Competitors:        batch,
		PrimaryOfferingOID: ws.OfferingOID,
		LinkingStrategy:    agent.LinkingStrategy{Mode: "ALL"},
	})
	if err != nil {
		res.Errors = append(res.Errors, ItemError{Index: -1, Error: err.Error()})
		return res
	}

	created := model.ElementSet{}
	for i, obj := range objs {
		if obj.OID == "" || i >= len(valid) {
			continue
		}
		payload := map[string]any{"name": valid[i].CompanyName, "website": valid[i].CompanyWebsite}
		if d, ok := obj.Data["description"]; ok {
			payload["description"] = d
		}
		created[obj.OID] = payload
		res.Created++
	}
	p.merge(ctx, ws, model.ElementCompetitors, created, &res)
	return res
}

func (p *Provisioner) createPlaybooks(ctx context.Context, ws *model.Workspace) StepResult {
	res := StepResult{Step: StepPlaybooks, Total: len(ws.Segments)}
	var unmet []string
	if len(ws.Segments) == 0 {
		unmet = append(unmet, "at least one segment")
	}
	if len(ws.Personas) == 0 {
		unmet = append(unmet, "at least one persona")
	}
	if len(ws.UseCases) == 0 {
		unmet = append(unmet, "at least one use case")
	}
	if len(unmet) > 0 {
		res.Skipped, res.Reason = true, "requires "+strings.Join(unmet, ", ")
		return res
	}

	personaOIDs := sortedKeys(ws.Personas)
	useCaseOIDs := sortedKeys(ws.UseCases)

	created := model.ElementSet{}
	for i, segOID := range sortedKeys(ws.Segments) {
		segName, _ := ws.Segments[segOID]["name"].(string)

		var refOIDs, refNames []string
		for _, oid := range sortedKeys(ws.References) {
			ref := ws.References[oid]
			if industry, _ := ref["industry"].(string); industry == segName {
				refOIDs = append(refOIDs, oid)
				name, _ := ref["companyName"].(string)
				refNames = append(refNames, name)
			}
		}

		insight := fmt.Sprintf("Target %s companies through %d key personas, addressing %d critical use cases.",
			segName, len(personaOIDs), len(useCaseOIDs))
		if len(refNames) > 0 {
			insight += " Proven success with " + strings.Join(refNames, ", ") + " in this market."
		}
		mode := "none"
		if len(refOIDs) > 0 {
			mode = "specific"
		}

		in := agent.PlaybookInput{
			Name:            segName + " Sales Playbook",
			Description:     "Comprehensive sales playbook targeting " + segName + " market segment",
			KeyInsight:      insight,
			Type:            "SECTOR",
			ProductOID:      ws.OfferingOID,
			SegmentOID:      segOID,
			PersonaOIDs:     personaOIDs,
			UseCaseOIDs:     useCaseOIDs,
			ReferenceOIDs:   refOIDs,
			CreateTemplates: true,
			Status:          "active",
			ReferenceMode:   mode,
			ProofPointMode:  "none",
		}
		obj, err := p.createPlaybookWithRetry(ctx, ws.Credential, in)
		if err != nil || obj.OID == "" {
			res.Errors = append(res.Errors, ItemError{Index: i, Name: in.Name, Error: errText(err, "platform returned no id")})
			continue
		}

		payload := map[string]any{"name": in.Name, "segmentOId": segOID, "keyInsight": insight}
		if full, err := p.Platform.GetPlaybook(ctx, ws.Credential, obj.OID); err == nil {
			for k, v := range full {
				payload[k] = v
			}
		} else {
			p.log().Warn("playbook details unavailable", slog.String("oid", obj.OID), slog.String("error", err.Error()))
		}
		created[obj.OID] = payload
		res.Created++
	}
	p.merge(ctx, ws, model.ElementPlaybooks, created, &res)
	return res
}

// createPlaybookWithRetry retries transport failures and 5xx responses with
// exponential backoff starting at one second.
func (p *Provisioner) createPlaybookWithRetry(ctx context.Context, credential string, in agent.PlaybookInput) (agent.Object, error) {
	var lastErr error
	for attempt := 1; attempt <= playbookAttempts; attempt++ {
		obj, err := p.Platform.CreatePlaybook(ctx, credential, in)
		if err == nil {
			return obj, nil
		}
		lastErr = err
		if !agent.IsRetryable(err) || attempt == playbookAttempts {
			break
		}
		wait := time.Duration(1<<(attempt-1)) * time.Second
		p.log().Warn("playbook create failed, retrying",
			slog.String("name", in.Name),
			slog.Int("attempt", attempt),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		if err := p.sleep(ctx, wait); err != nil {
			return agent.Object{}, err
		}
	}
	return agent.Object{}, lastErr
}

// merge stores what a step created and keeps the in-memory record in sync so
// later steps in the same run see it.
func (p *Provisioner) merge(ctx context.Context, ws *model.Workspace, kind string, set model.ElementSet, res *StepResult) {
	if len(set) == 0 {
		return
	}
	if err := p.Workspaces.MergeElements(ctx, ws.AccountID, kind, set); err != nil {
		res.Errors = append(res.Errors, ItemError{Index: -1, Error: "persist " + kind + ": " + err.Error()})
		return
	}
	target := ws.Elements(kind)
	if target == nil {
		target = model.ElementSet{}
		switch kind {
		case model.ElementReferences:
			ws.References = target
		case model.ElementSegments:
			ws.Segments = target
		case model.ElementCompetitors:
			ws.Competitors = target
		case model.ElementPlaybooks:
			ws.Playbooks = target
		}
	}
	for k, v := range set {
		target[k] = v
	}
}

func (p *Provisioner) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Provisioner) log() *slog.Logger {
	if p.Logger == nil {
		return slog.Default()
	}
	return p.Logger
}

// bareDomain strips scheme, "www." and any path.
func bareDomain(s string) string {
	d := strings.TrimSpace(s)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

func errText(err error, fallback string) string {
	if err != nil {
		return err.Error()
	}
	return fallback
}
