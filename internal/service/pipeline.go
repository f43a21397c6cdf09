package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/unclebandit/campaign-portal/internal/agent"
	"github.com/unclebandit/campaign-portal/internal/catalog"
	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/highlight"
	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/model"
)

const (
	generationTemperature = 0.7
	generationMaxTokens   = 4000

	nurturePlayCode    = "1009"
	agentListLimit     = 100
	listStrategyAbsent = "List building strategy not generated."
)

// GenerateIntermediaryOutputs is stage 1: hook, offer, asset, list strategy
// and case studies, drawn mostly from the brief.
func (s *CampaignService) GenerateIntermediaryOutputs(ctx context.Context, actor model.Actor, executionID string) (*model.IntermediaryOutputs, error) {
	e, err := s.GetExecution(ctx, actor, executionID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.StatusDraft {
		return nil, appErrors.NewTransition(string(model.AxisPipeline), e.PipelineStatus, model.PipelineIntermediaryGenerated,
			"status must be draft (is "+e.Status+")")
	}
	if s.LLM == nil {
		return nil, fmt.Errorf("content generation is not configured")
	}

	ws, err := s.Workspaces.GetByAccount(ctx, e.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	elements := StrategicElements{Elements: map[string][]agent.Object{}}
	if ws.HasValidCredential() && s.Platform != nil {
		elements = FetchStrategicElements(ctx, s.Platform, ws.Credential, s.log())
	}
	play := s.play(ctx, e)

	cleaned := CleanBrief(ctx, s.LLM, s.Model, e.Name, e.Brief, s.log())
	raw, err := s.LLM.Complete(ctx, llm.Request{
		Model:       s.Model,
		System:      campaignSystemPrompt,
		User:        buildIntermediaryPrompt(e, cleaned, play, elements, ws),
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("generate intermediary outputs: %w", err)
	}

	io := ParseIntermediary(raw)
	if io.AttractionOffer.Headline == "" && e.Brief.OfferHint != "" {
		io.AttractionOffer.Headline = strings.TrimSpace(e.Brief.OfferHint)
	}
	if io.Hook == "" {
		if sig, ok := DetectSignal(e.Brief, cleaned); ok {
			io.Hook = SynthesizeHook(sig, io.AttractionOffer.Headline)
			io.Source = SourceSignal
			s.log().Info("hook synthesized from brief signal",
				slog.String("execution_id", e.ID),
				slog.String("signal", sig.Kind),
			)
		}
	}
	io.CleanedBrief = cleaned
	io.GeneratedAt = s.now()

	ok, err := s.Executions.SaveIntermediary(ctx, e.ID, e.AccountID, io)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewConflict("execution %s changed while generating", e.ID)
	}
	s.log().Info("intermediary outputs generated",
		slog.String("execution_id", e.ID),
		slog.String("source", io.Source),
		slog.Int("missing", len(io.Missing())),
	)
	return io, nil
}

// UpdateIntermediaryOutputs replaces stage 1 output with the client's edit.
// Asset generation needs a hook and an offer headline, so an edit without
// them is refused rather than stored.
func (s *CampaignService) UpdateIntermediaryOutputs(ctx context.Context, actor model.Actor, executionID string, io *model.IntermediaryOutputs) (*model.IntermediaryOutputs, error) {
	if io == nil {
		return nil, appErrors.NewValidation("intermediary_outputs", "is required")
	}
	e, err := s.GetExecution(ctx, actor, executionID)
	if err != nil {
		return nil, err
	}
	if e.Status != model.StatusDraft {
		return nil, appErrors.NewTransition(string(model.AxisPipeline), e.PipelineStatus, model.PipelineIntermediaryGenerated,
			"status must be draft (is "+e.Status+")")
	}
	io.Hook = strings.TrimSpace(io.Hook)
	io.AttractionOffer.Headline = strings.TrimSpace(io.AttractionOffer.Headline)
	if missing := io.Missing(); len(missing) > 0 {
		return nil, appErrors.NewValidation("intermediary_outputs", "missing "+strings.Join(missing, ", "))
	}
	if io.CleanedBrief == "" && e.Intermediary != nil {
		io.CleanedBrief = e.Intermediary.CleanedBrief
	}
	io.Source = SourceEdited
	io.GeneratedAt = s.now()

	ok, err := s.Executions.SaveIntermediary(ctx, e.ID, e.AccountID, io)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewConflict("execution %s changed while saving", e.ID)
	}
	s.log().Info("intermediary outputs edited", slog.String("execution_id", e.ID))
	return io, nil
}

type GenerateAssetsRequest struct {
	Highlight bool `json:"highlight"`
}

// GenerateAssets is stage 2, plus stage 3 highlighting when asked for. It
// refuses to run without a hook and an offer headline.
func (s *CampaignService) GenerateAssets(ctx context.Context, actor model.Actor, executionID string, req GenerateAssetsRequest) (*model.FinalAssets, error) {
	e, err := s.GetExecution(ctx, actor, executionID)
	if err != nil {
		return nil, err
	}
	if missing := e.Intermediary.Missing(); len(missing) > 0 {
		return nil, appErrors.NewMissingIntermediaryOutputs(e.ID, missing...)
	}
	if e.Status != model.StatusDraft {
		return nil, appErrors.NewTransition(string(model.AxisPipeline), e.PipelineStatus, model.PipelineAssetsGenerated,
			"status must be draft (is "+e.Status+")")
	}

	ws, err := s.Workspaces.GetByAccount(ctx, e.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}
	io := e.Intermediary
	play := s.play(ctx, e)

	assets := &model.FinalAssets{
		ListBuildingInstructions: orDefault(strings.TrimSpace(io.ListBuildingStrategy), listStrategyAbsent),
		Asset:                    io.Asset,
		GeneratedAt:              s.now(),
	}
	assets.Emails = s.generateEmails(ctx, e, io, play)
	if assets.Asset.Content == "" && assets.Asset.URL == "" {
		domain := ""
		if ws != nil {
			domain = ws.CompanyDomain
		}
		assets.Asset = model.Asset{Type: model.AssetTypeLovablePrompt, Content: lovablePrompt(io, domain)}
	}

	nurture, deg := s.generateNurture(ctx, ws, io)
	assets.NurtureSequence = nurture
	if deg != nil {
		assets.Degradations = append(assets.Degradations, *deg)
	}

	highlighting := model.HighlightingNotRequested
	if req.Highlight {
		highlighting = s.highlightAssets(ctx, ws, play, assets)
	}

	ok, err := s.Executions.SaveAssets(ctx, e.ID, e.AccountID, assets, OutputContent(assets), highlighting)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewConflict("execution %s changed while generating", e.ID)
	}
	s.log().Info("assets generated",
		slog.String("execution_id", e.ID),
		slog.String("highlighting_status", highlighting),
		slog.Int("degradations", len(assets.Degradations)),
	)
	return assets, nil
}

// HighlightExecution re-runs tagging over already generated assets.
func (s *CampaignService) HighlightExecution(ctx context.Context, actor model.Actor, executionID string) (*model.FinalAssets, error) {
	e, err := s.GetExecution(ctx, actor, executionID)
	if err != nil {
		return nil, err
	}
	if e.Assets == nil {
		return nil, appErrors.NewValidation("final_assets", "generate assets before highlighting")
	}
	if e.Status != model.StatusDraft && e.Status != model.StatusRejected {
		return nil, appErrors.NewTransition(string(model.AxisStatus), e.Status, e.Status,
			"copy under review or approved cannot be re-highlighted")
	}
	ws, err := s.Workspaces.GetByAccount(ctx, e.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	assets := *e.Assets
	assets.Emails = append([]model.Email(nil), e.Assets.Emails...)
	assets.Degradations = append([]model.Degradation(nil), e.Assets.Degradations...)
	status := s.highlightAssets(ctx, ws, s.play(ctx, e), &assets)
	ok, err := s.Executions.SaveHighlighting(ctx, e.ID, e.AccountID, &assets, status)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, appErrors.NewConflict("execution %s changed while highlighting", e.ID)
	}
	return &assets, nil
}

type generatedEmail struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// generateEmails always returns a full sequence. Steps the model leaves out
// or garbles get the fallback copy.
func (s *CampaignService) generateEmails(ctx context.Context, e *model.Execution, io *model.IntermediaryOutputs, play *model.PlayTemplate) []model.Email {
	var drafted []generatedEmail
	if s.LLM == nil {
		return fillEmails(nil, io)
	}
	raw, err := s.LLM.Complete(ctx, llm.Request{
		Model:       s.Model,
		System:      campaignSystemPrompt,
		User:        buildEmailPrompt(e, io, play),
		Temperature: generationTemperature,
		MaxTokens:   generationMaxTokens,
		JSON:        true,
	})
	if err != nil {
		s.log().Warn("email generation failed, using fallback copy",
			slog.String("execution_id", e.ID),
			slog.String("error", err.Error()),
		)
	} else {
		drafted = parseEmails(raw)
	}
	return fillEmails(drafted, io)
}

func fillEmails(drafted []generatedEmail, io *model.IntermediaryOutputs) []model.Email {
	slots := fallbackSlots(io)
	emails := make([]model.Email, model.EmailsPerSequence)
	for i := range emails {
		email := model.Email{Step: i + 1, Purpose: EmailPurposes[i]}
		if i < len(drafted) && strings.TrimSpace(drafted[i].Body) != "" {
			email.Subject = strings.TrimSpace(drafted[i].Subject)
			email.Body = strings.TrimSpace(drafted[i].Body)
		} else {
			email.Subject = RenderTemplate(fallbackEmails[i].Subject, slots)
			email.Body = RenderTemplate(fallbackEmails[i].Body, slots)
		}
		if email.Subject == "" {
			email.Subject = RenderTemplate(fallbackEmails[i].Subject, slots)
		}
		email.Body = EnsureHook(email.Body, io.Hook)
		emails[i] = email
	}
	return emails
}

func parseEmails(raw string) []generatedEmail {
	text := llm.StripCodeFences(raw)
	var wrapped struct {
		Emails []generatedEmail `json:"emails"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && len(wrapped.Emails) > 0 {
		return wrapped.Emails
	}
	var list []generatedEmail
	if err := json.Unmarshal([]byte(text), &list); err == nil {
		return list
	}
	return nil
}

func fallbackSlots(io *model.IntermediaryOutputs) map[string]string {
	bullets := make([]string, 0, len(io.AttractionOffer.ValueBullets))
	for _, b := range io.AttractionOffer.ValueBullets {
		bullets = append(bullets, "- "+strings.TrimSpace(b))
	}
	asset := orDefault(io.Asset.URL, io.Asset.Content)
	return map[string]string{
		"hook":          io.Hook,
		"offer":         io.AttractionOffer.Headline,
		"value_bullets": strings.Join(bullets, "\n"),
		"asset":         orDefault(asset, "the resource"),
		"topic":         strings.ToLower(io.AttractionOffer.Headline),
	}
}

var salutations = []string{"hi ", "hi,", "hello", "hey", "dear ", "good morning", "good afternoon"}

// EnsureHook makes the hook the opening line of the body, after any
// salutation. Bodies that already open with it are returned unchanged.
func EnsureHook(body, hook string) string {
	hook = strings.TrimSpace(hook)
	if hook == "" {
		return body
	}
	lines := strings.Split(body, "\n")
	open := -1
	for i, line := range lines {
		t := strings.TrimSpace(line)
		if t == "" {
			continue
		}
		if open == -1 && isSalutation(t) {
			open = -2
			continue
		}
		open = i
		break
	}
	if open >= 0 && sameSentence(lines[open], hook) {
		return body
	}

	insertAt := 0
	if open >= 0 {
		insertAt = open
	} else if open == -2 {
		insertAt = len(lines)
	}
	out := make([]string, 0, len(lines)+2)
	out = append(out, lines[:insertAt]...)
	out = append(out, hook, "")
	out = append(out, lines[insertAt:]...)
	return strings.TrimRight(strings.Join(out, "\n"), "\n")
}

func isSalutation(line string) bool {
	lower := strings.ToLower(line)
	for _, s := range salutations {
		if strings.HasPrefix(lower, s) && len(line) <= 40 {
			return true
		}
	}
	return false
}

func sameSentence(line, hook string) bool {
	norm := func(s string) string {
		return strings.ToLower(strings.TrimRight(strings.TrimSpace(s), ".!?"))
	}
	return strings.HasPrefix(norm(line), norm(hook))
}

// generateNurture runs the nurture play's agent, or the workspace's content
// agent when no such agent exists.
func (s *CampaignService) generateNurture(ctx context.Context, ws *model.Workspace, io *model.IntermediaryOutputs) (string, *model.Degradation) {
	if !ws.HasValidCredential() || s.Platform == nil {
		return "", &model.Degradation{Component: "nurture", Reason: "workspace is not provisioned"}
	}

	agentOID := ws.ContextAgentOID
	pattern := nurturePlayCode
	if s.Catalog != nil {
		if play, ok, err := s.Catalog.Get(ctx, nurturePlayCode); err == nil && ok && play.AgentNamePattern != "" {
			pattern = play.AgentNamePattern
		}
	}
	if agents, err := s.Platform.ListElements(ctx, ws.Credential, "agents", agentListLimit); err != nil {
		s.log().Warn("agent lookup failed", slog.String("error", err.Error()))
	} else {
		names := make([]string, len(agents))
		for i, a := range agents {
			names[i] = a.Name
		}
		if i := catalog.MatchAgent(names, pattern); i >= 0 {
			agentOID = agents[i].OID
		}
	}
	if agentOID == "" {
		return "", &model.Degradation{Component: "nurture", Reason: "no content agent available"}
	}

	out, err := s.Platform.RunContextAgent(ctx, ws.Credential, agentOID, buildNurturePrompt(io))
	if err != nil {
		s.log().Warn("nurture generation failed", slog.String("error", err.Error()))
		return "", &model.Degradation{Component: "nurture", Reason: errText(err, "agent call failed")}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", &model.Degradation{Component: "nurture", Reason: "agent returned no content"}
	}
	return out, nil
}

// highlightAssets tags each email body and the nurture sequence in place.
// Raw copy is untouched so a failed run leaves nothing half-tagged.
func (s *CampaignService) highlightAssets(ctx context.Context, ws *model.Workspace, play *model.PlayTemplate, assets *model.FinalAssets) string {
	if s.Highlighter == nil {
		assets.Degradations = append(assets.Degradations, model.Degradation{Component: "highlighting", Reason: "highlighting is not configured"})
		return model.HighlightingFailed
	}
	elements := StrategicElements{}.HighlightElements(ws)
	hint := ""
	if play != nil {
		hint = play.Name
	}

	status := model.HighlightingCompleted
	apply := func(raw string) string {
		res := s.Highlighter.Highlight(ctx, raw, elements, hint)
		if res.Degraded != nil {
			status = model.HighlightingFailed
			assets.Degradations = append(assets.Degradations, *res.Degraded)
		}
		return res.Text
	}
	for i := range assets.Emails {
		assets.Emails[i].HighlightedBody = apply(assets.Emails[i].Body)
	}
	if assets.NurtureSequence != "" {
		assets.HighlightedNurture = apply(assets.NurtureSequence)
	}
	return status
}

// OutputContent is the plain-text copy a reviewer approves.
func OutputContent(a *model.FinalAssets) string {
	var b strings.Builder
	for _, email := range a.Emails {
		fmt.Fprintf(&b, "EMAIL %d (%s)\nSubject: %s\n\n%s\n\n", email.Step, email.Purpose, email.Subject, highlight.Strip(email.Body))
	}
	fmt.Fprintf(&b, "LIST BUILDING INSTRUCTIONS\n%s\n\n", a.ListBuildingInstructions)
	fmt.Fprintf(&b, "ASSET (%s)\n%s", a.Asset.Type, orDefault(a.Asset.URL, a.Asset.Content))
	if a.NurtureSequence != "" {
		fmt.Fprintf(&b, "\n\nNURTURE SEQUENCE\n%s", highlight.Strip(a.NurtureSequence))
	}
	return b.String()
}

func (s *CampaignService) play(ctx context.Context, e *model.Execution) *model.PlayTemplate {
	if e.TemplateCode == nil || s.Catalog == nil {
		return nil
	}
	p, ok, err := s.Catalog.Get(ctx, *e.TemplateCode)
	if err != nil || !ok {
		return nil
	}
	return &p
}

func buildEmailPrompt(e *model.Execution, io *model.IntermediaryOutputs, play *model.PlayTemplate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a 3-email outbound sequence for the campaign %q.\n\n", e.Name)
	if play != nil {
		fmt.Fprintf(&b, "Play: %s (%s)\n\n", play.Code, play.Name)
	}
	fmt.Fprintf(&b, "HOOK: %s\n", io.Hook)
	fmt.Fprintf(&b, "ATTRACTION OFFER: %s\n", io.AttractionOffer.Headline)
	for _, v := range io.AttractionOffer.ValueBullets {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	for _, v := range io.AttractionOffer.EaseBullets {
		fmt.Fprintf(&b, "- (ease) %s\n", v)
	}
	if a := orDefault(io.Asset.URL, io.Asset.Content); a != "" {
		fmt.Fprintf(&b, "ASSET: %s\n", a)
	}
	for _, cs := range io.CaseStudies {
		if cs.CanNameDrop && cs.ClientName != "" {
			fmt.Fprintf(&b, "CASE STUDY: %s - %s %s\n", cs.ClientName, cs.Description, cs.Results)
		} else {
			fmt.Fprintf(&b, "CASE STUDY (do not name the client): %s %s\n", cs.Description, cs.Results)
		}
	}
	b.WriteString(`
Rules:
- Email 1 introduces the attraction offer. Email 2 follows up with the asset. Email 3 is a referral ask.
- The first line of every email body, right after "Hi {{first_name}},", restates the hook.
- Use {{first_name}} and {{company_name}} merge tags and end every email with %signature%.
- Under 120 words per email. No links other than the asset.

OUTPUT FORMAT (JSON):
{"emails": [{"subject": "...", "body": "..."}, {"subject": "...", "body": "..."}, {"subject": "...", "body": "..."}]}`)
	return b.String()
}

func buildNurturePrompt(io *model.IntermediaryOutputs) string {
	var b strings.Builder
	b.WriteString("Generate a 30-day nurture sequence for prospects who engaged with this campaign but did not book a meeting. ")
	b.WriteString("Include 4-6 touches across email and LinkedIn with the day number, channel, subject where relevant, and message. ")
	b.WriteString("Write it so it can be loaded into the CRM as-is, one touch per section.\n\n")
	fmt.Fprintf(&b, "Hook: %s\nOffer: %s\n", io.Hook, io.AttractionOffer.Headline)
	for _, v := range io.AttractionOffer.ValueBullets {
		fmt.Fprintf(&b, "- %s\n", v)
	}
	if a := orDefault(io.Asset.URL, io.Asset.Content); a != "" {
		fmt.Fprintf(&b, "Asset: %s\n", a)
	}
	return b.String()
}
