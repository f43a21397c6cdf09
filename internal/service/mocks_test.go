package service_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/unclebandit/campaign-portal/internal/agent"
	"github.com/unclebandit/campaign-portal/internal/enrichment"
	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/highlight"
	"github.com/unclebandit/campaign-portal/internal/llm"
	"github.com/unclebandit/campaign-portal/internal/model"
	"github.com/unclebandit/campaign-portal/internal/notify"
	"github.com/unclebandit/campaign-portal/internal/repository"
)

var (
	client = model.Actor{AuthenticatedAccountID: "acct-1", Email: "owner@acme.test", Role: model.RoleClient}
	admin  = model.Actor{AuthenticatedAccountID: "admin-1", ActingAccountID: "acct-1", Email: "ops@portal.test", Role: model.RoleAdmin}
	other  = model.Actor{AuthenticatedAccountID: "acct-2", Role: model.RoleClient}
)

// MockExecutionRepo applies the same conditional-write rules as the SQL
// repository, in memory.
type MockExecutionRepo struct {
	mu    sync.Mutex
	rows  map[string]*model.Execution
	order []string
}

func NewMockExecutionRepo(execs ...*model.Execution) *MockExecutionRepo {
	m := &MockExecutionRepo{rows: map[string]*model.Execution{}}
	for _, e := range execs {
		m.Create(context.Background(), e)
	}
	return m
}

func (m *MockExecutionRepo) Create(ctx context.Context, e *model.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows[e.ID] = &cp
	m.order = append(m.order, e.ID)
	return nil
}

func (m *MockExecutionRepo) get(id string) *model.Execution {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[id]; ok {
		cp := *e
		return &cp
	}
	return nil
}

func (m *MockExecutionRepo) GetByID(ctx context.Context, id, accountID string) (*model.Execution, error) {
	e := m.get(id)
	if e == nil || e.AccountID != accountID {
		return nil, nil
	}
	return e, nil
}

func (m *MockExecutionRepo) GetForReview(ctx context.Context, id string) (*model.Execution, error) {
	return m.get(id), nil
}

func (m *MockExecutionRepo) List(ctx context.Context, accountID string, offset, limit int, status string) ([]*model.Execution, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.Execution
	for i := len(m.order) - 1; i >= 0; i-- {
		e := m.rows[m.order[i]]
		if e.AccountID == accountID && (status == "" || e.Status == status) {
			cp := *e
			all = append(all, &cp)
		}
	}
	if offset >= len(all) {
		return []*model.Execution{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

// update runs fn on the stored row when it belongs to accountID and cond
// holds.
func (m *MockExecutionRepo) update(id, accountID string, cond func(*model.Execution) bool, fn func(*model.Execution)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || (accountID != "" && e.AccountID != accountID) || !cond(e) {
		return false
	}
	fn(e)
	return true
}

func in(v string, set []string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func (m *MockExecutionRepo) SaveIntermediary(ctx context.Context, id, accountID string, io *model.IntermediaryOutputs) (bool, error) {
	return m.update(id, accountID, func(e *model.Execution) bool {
		return e.Status == model.StatusDraft && in(e.PipelineStatus, model.SourcesFor(model.AxisPipeline, model.PipelineIntermediaryGenerated))
	}, func(e *model.Execution) {
		e.Intermediary = io
		e.PipelineStatus = model.PipelineIntermediaryGenerated
	}), nil
}

func (m *MockExecutionRepo) SaveAssets(ctx context.Context, id, accountID string, assets *model.FinalAssets, outputContent, highlightingStatus string) (bool, error) {
	return m.update(id, accountID, func(e *model.Execution) bool {
		return e.Status == model.StatusDraft && in(e.PipelineStatus, model.SourcesFor(model.AxisPipeline, model.PipelineAssetsGenerated))
	}, func(e *model.Execution) {
		e.Assets = assets
		e.OutputContent = outputContent
		e.HighlightingStatus = highlightingStatus
		e.PipelineStatus = model.PipelineAssetsGenerated
	}), nil
}

func (m *MockExecutionRepo) SaveHighlighting(ctx context.Context, id, accountID string, assets *model.FinalAssets, highlightingStatus string) (bool, error) {
	return m.update(id, accountID, func(e *model.Execution) bool {
		return e.Assets != nil && (e.Status == model.StatusDraft || e.Status == model.StatusRejected)
	}, func(e *model.Execution) {
		e.Assets = assets
		e.HighlightingStatus = highlightingStatus
	}), nil
}

func field(e *model.Execution, axis model.Axis) *string {
	switch axis {
	case model.AxisStatus:
		return &e.Status
	case model.AxisPipeline:
		return &e.PipelineStatus
	case model.AxisCopy:
		return &e.CopyStatus
	case model.AxisList:
		return &e.ListStatus
	case model.AxisLaunch:
		return &e.LaunchStatus
	}
	return nil
}

func (m *MockExecutionRepo) Transition(ctx context.Context, id, accountID string, axis model.Axis, to string) (bool, error) {
	return m.update(id, accountID, func(e *model.Execution) bool {
		return in(*field(e, axis), model.SourcesFor(axis, to))
	}, func(e *model.Execution) {
		*field(e, axis) = to
	}), nil
}

func (m *MockExecutionRepo) ReviseOutput(ctx context.Context, id, accountID, content string) (bool, error) {
	return m.update(id, accountID, func(e *model.Execution) bool {
		return e.Status == model.StatusDraft || e.Status == model.StatusRejected
	}, func(e *model.Execution) {
		e.OutputContent = content
		e.Status = model.StatusDraft
		e.CopyStatus = model.CopyPending
	}), nil
}

func (m *MockExecutionRepo) StartLaunch(ctx context.Context, id, accountID string) (bool, error) {
	return m.update(id, accountID, func(e *model.Execution) bool {
		return e.LaunchStatus == model.LaunchNotStarted && e.CopyStatus == model.CopyApproved && e.ListStatus == model.ListApproved
	}, func(e *model.Execution) {
		e.LaunchStatus = model.LaunchInProgress
		e.Status = model.StatusLaunchApproved
	}), nil
}

func (m *MockExecutionRepo) DeleteDraft(ctx context.Context, id, accountID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.AccountID != accountID || e.Status != model.StatusDraft {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

var _ repository.ExecutionRepositoryInterface = (*MockExecutionRepo)(nil)

// MockApprovalRepo shares state with an execution mock so a decision moves
// the execution the way the transactional repository does.
type MockApprovalRepo struct {
	Exec      *MockExecutionRepo
	mu        sync.Mutex
	approvals []*model.Approval
}

func (m *MockApprovalRepo) CreatePending(ctx context.Context, a *model.Approval, accountID string) (int, error) {
	e := m.Exec.get(a.ExecutionID)
	if e == nil || e.AccountID != accountID {
		return 0, appErrors.NewNotFound("execution", a.ExecutionID)
	}
	if e.Status != model.StatusDraft && e.Status != model.StatusPendingApproval {
		return 0, appErrors.NewTransition(string(model.AxisStatus), e.Status, model.StatusPendingApproval, "execution must be draft or pending_approval")
	}
	if e.OutputContent == "" {
		return 0, appErrors.NewTransition(string(model.AxisStatus), e.Status, model.StatusPendingApproval, "output content must not be empty")
	}

	m.mu.Lock()
	superseded := 0
	for _, prior := range m.approvals {
		if prior.ExecutionID == a.ExecutionID && prior.Status == model.ApprovalPending {
			prior.Status = model.ApprovalSuperseded
			superseded++
		}
	}
	a.Status = model.ApprovalPending
	a.CreatedAt = time.Now()
	cp := *a
	m.approvals = append(m.approvals, &cp)
	m.mu.Unlock()

	m.Exec.update(a.ExecutionID, accountID, func(*model.Execution) bool { return true }, func(e *model.Execution) {
		e.Status = model.StatusPendingApproval
		e.CopyStatus = model.CopyPending
	})
	return superseded, nil
}

func (m *MockApprovalRepo) find(match func(*model.Approval) bool) *model.Approval {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.approvals {
		if match(a) {
			cp := *a
			return &cp
		}
	}
	return nil
}

func (m *MockApprovalRepo) GetByID(ctx context.Context, id string) (*model.Approval, error) {
	if a := m.find(func(a *model.Approval) bool { return a.ID == id }); a != nil {
		return a, nil
	}
	return nil, appErrors.NewNotFound("approval", id)
}

func (m *MockApprovalRepo) GetByToken(ctx context.Context, token string) (*model.Approval, error) {
	if a := m.find(func(a *model.Approval) bool { return a.Token == token }); a != nil {
		return a, nil
	}
	return nil, appErrors.NewNotFound("approval", "for token")
}

func (m *MockApprovalRepo) ListByExecution(ctx context.Context, executionID string) ([]*model.Approval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Approval{}
	for _, a := range m.approvals {
		if a.ExecutionID == executionID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockApprovalRepo) Decide(ctx context.Context, d repository.Decision) (*model.Approval, error) {
	m.mu.Lock()
	var target *model.Approval
	for _, a := range m.approvals {
		if a.ID == d.ApprovalID {
			target = a
		}
	}
	if target == nil {
		m.mu.Unlock()
		return nil, appErrors.NewNotFound("approval", d.ApprovalID)
	}
	if target.Status != model.ApprovalPending {
		m.mu.Unlock()
		return nil, appErrors.NewTransition("approval", target.Status, d.Outcome, "approval is no longer pending")
	}
	now := time.Now()
	target.Status = d.Outcome
	target.Comments = d.Comments
	if d.ApproverEmail != "" {
		target.ApproverEmail = d.ApproverEmail
	}
	target.ApproverAccountID = d.ApproverAccountID
	target.DecidedAt = &now
	cp := *target
	m.mu.Unlock()

	moved := m.Exec.update(cp.ExecutionID, "", func(e *model.Execution) bool {
		return e.Status == model.StatusPendingApproval
	}, func(e *model.Execution) {
		e.Status = d.Outcome
		e.CopyStatus = d.Outcome
		if d.EditedCopy != "" {
			e.OutputContent = d.EditedCopy
		}
		if d.Outcome == model.ApprovalApproved {
			e.ApprovedCopy = e.OutputContent
		}
	})
	if !moved {
		return nil, appErrors.NewTransition(string(model.AxisStatus), "unknown", d.Outcome, "execution must be pending_approval")
	}
	return &cp, nil
}

var _ repository.ApprovalRepositoryInterface = (*MockApprovalRepo)(nil)

type MockWorkspaceRepo struct {
	mu         sync.Mutex
	Workspaces map[string]*model.Workspace
	Attempts   map[string]*model.ProvisioningAttempt
	Created    int
	Replaced   int
	Revoked    int
	MergeErr   error
}

func NewMockWorkspaceRepo(ws ...*model.Workspace) *MockWorkspaceRepo {
	m := &MockWorkspaceRepo{Workspaces: map[string]*model.Workspace{}, Attempts: map[string]*model.ProvisioningAttempt{}}
	for _, w := range ws {
		m.Workspaces[w.AccountID] = w
	}
	return m
}

func (m *MockWorkspaceRepo) GetByAccount(ctx context.Context, accountID string) (*model.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.Workspaces[accountID]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (m *MockWorkspaceRepo) Create(ctx context.Context, w *model.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Workspaces[w.AccountID]; ok {
		return fmt.Errorf("duplicate workspace for %s", w.AccountID)
	}
	cp := *w
	m.Workspaces[w.AccountID] = &cp
	m.Created++
	return nil
}

func (m *MockWorkspaceRepo) RevokeCredential(ctx context.Context, accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w := m.Workspaces[accountID]; w != nil && w.CredentialRevokedAt == nil {
		now := time.Now()
		w.CredentialRevokedAt = &now
		m.Revoked++
	}
	return nil
}

func (m *MockWorkspaceRepo) ReplaceIdentity(ctx context.Context, w *model.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *w
	m.Workspaces[w.AccountID] = &cp
	m.Replaced++
	return nil
}

func (m *MockWorkspaceRepo) MergeElements(ctx context.Context, accountID, kind string, set model.ElementSet) error {
	if m.MergeErr != nil {
		return m.MergeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.Workspaces[accountID]
	target := w.Elements(kind)
	if target == nil {
		target = model.ElementSet{}
		switch kind {
		case model.ElementReferences:
			w.References = target
		case model.ElementSegments:
			w.Segments = target
		case model.ElementCompetitors:
			w.Competitors = target
		case model.ElementPlaybooks:
			w.Playbooks = target
		}
	}
	for k, v := range set {
		target[k] = v
	}
	return nil
}

func (m *MockWorkspaceRepo) BeginAttempt(ctx context.Context, key, accountID string) (*model.ProvisioningAttempt, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Attempts[key]; ok {
		cp := *a
		return &cp, false, nil
	}
	a := &model.ProvisioningAttempt{IdempotencyKey: key, AccountID: accountID, Status: model.AttemptInFlight}
	m.Attempts[key] = a
	cp := *a
	return &cp, true, nil
}

func (m *MockWorkspaceRepo) RestartAttempt(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.Attempts[key]
	if !ok || a.Status != model.AttemptFailed {
		return false, nil
	}
	a.Status = model.AttemptInFlight
	return true, nil
}

func (m *MockWorkspaceRepo) FinishAttempt(ctx context.Context, key, status, detail string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.Attempts[key]; ok {
		a.Status, a.Detail = status, detail
	}
	return nil
}

var _ repository.WorkspaceRepositoryInterface = (*MockWorkspaceRepo)(nil)

type MockProspectRepo struct {
	mu        sync.Mutex
	Prospects []*model.Prospect
	SaveErr   error
}

func (m *MockProspectRepo) CreateBatch(ctx context.Context, executionID string, prospects []*model.Prospect) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range prospects {
		p.ID = len(m.Prospects) + 1
		p.ExecutionID = executionID
		m.Prospects = append(m.Prospects, p)
	}
	return nil
}

func (m *MockProspectRepo) ListByExecution(ctx context.Context, executionID string) ([]*model.Prospect, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*model.Prospect{}
	for _, p := range m.Prospects {
		if p.ExecutionID == executionID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MockProspectRepo) SaveEnrichment(ctx context.Context, p *model.Prospect) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.Prospects {
		if existing.ID == p.ID {
			m.Prospects[i] = p
		}
	}
	return nil
}

var _ repository.ProspectRepositoryInterface = (*MockProspectRepo)(nil)

// MockPlatform records calls; each hook is optional.
type MockPlatform struct {
	mu    sync.Mutex
	Calls []string

	BuildFn       func(req agent.BuildWorkspaceRequest, key string) (*agent.BuildWorkspaceResult, error)
	ReferenceFn   func(in agent.ReferenceInput) (agent.Object, error)
	SegmentFn     func(in agent.SegmentInput) (agent.Object, error)
	CompetitorsFn func(in agent.CompetitorBatch) ([]agent.Object, error)
	PlaybookFn    func(in agent.PlaybookInput) (agent.Object, error)
	ListFn        func(kind string) ([]agent.Object, error)
	ContextFn     func(agentOID, prompt string) (string, error)
}

func (m *MockPlatform) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, call)
}

func (m *MockPlatform) Count(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (m *MockPlatform) BuildWorkspace(ctx context.Context, req agent.BuildWorkspaceRequest, key string) (*agent.BuildWorkspaceResult, error) {
	m.record("build")
	if m.BuildFn != nil {
		return m.BuildFn(req, key)
	}
	return &agent.BuildWorkspaceResult{
		WorkspaceOID:    "ws_1",
		OfferingOID:     "off_1",
		APIKey:          "key_1",
		ContextAgentOID: "ctx_1",
		Personas:        []agent.Object{{OID: "p1", Name: "VP Operations"}},
		UseCases:        []agent.Object{{OID: "u1", Name: "Close the books faster"}},
	}, nil
}

func (m *MockPlatform) CreateReference(ctx context.Context, credential string, in agent.ReferenceInput) (agent.Object, error) {
	m.record("reference:" + in.CompanyName)
	if m.ReferenceFn != nil {
		return m.ReferenceFn(in)
	}
	return agent.Object{OID: "ref_" + in.CompanyName}, nil
}

func (m *MockPlatform) CreateSegment(ctx context.Context, credential string, in agent.SegmentInput) (agent.Object, error) {
	m.record("segment:" + in.Name)
	if m.SegmentFn != nil {
		return m.SegmentFn(in)
	}
	return agent.Object{OID: "seg_" + in.Name}, nil
}

func (m *MockPlatform) GenerateCompetitors(ctx context.Context, credential string, in agent.CompetitorBatch) ([]agent.Object, error) {
	m.record("competitors")
	if m.CompetitorsFn != nil {
		return m.CompetitorsFn(in)
	}
	out := make([]agent.Object, len(in.Competitors))
	for i, c := range in.Competitors {
		out[i] = agent.Object{OID: "comp_" + c.Name}
	}
	return out, nil
}

func (m *MockPlatform) CreatePlaybook(ctx context.Context, credential string, in agent.PlaybookInput) (agent.Object, error) {
	m.record("playbook:" + in.Name)
	if m.PlaybookFn != nil {
		return m.PlaybookFn(in)
	}
	return agent.Object{OID: "pb_" + in.SegmentOID}, nil
}

func (m *MockPlatform) GetPlaybook(ctx context.Context, credential, oid string) (map[string]any, error) {
	m.record("get_playbook")
	return map[string]any{"status": "active"}, nil
}

func (m *MockPlatform) ListElements(ctx context.Context, credential, kind string, limit int) ([]agent.Object, error) {
	m.record("list:" + kind)
	if m.ListFn != nil {
		return m.ListFn(kind)
	}
	return []agent.Object{}, nil
}

func (m *MockPlatform) RunContextAgent(ctx context.Context, credential, agentOID, prompt string) (string, error) {
	m.record("context:" + agentOID)
	if m.ContextFn != nil {
		return m.ContextFn(agentOID, prompt)
	}
	return "Day 1 - Email: checking in", nil
}

// MockLLM answers by matching a marker in the user prompt.
type MockLLM struct {
	mu       sync.Mutex
	Requests []llm.Request
	Respond  func(req llm.Request) (string, error)
}

func (m *MockLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.mu.Unlock()
	if m.Respond == nil {
		return "", fmt.Errorf("no response scripted")
	}
	return m.Respond(req)
}

type MockHighlighter struct {
	Fail  bool
	Calls int
}

func (m *MockHighlighter) Highlight(ctx context.Context, rawText string, elements highlight.Elements, templateHint string) highlight.Result {
	m.Calls++
	if m.Fail {
		return highlight.Result{
			Text:     rawText,
			Status:   highlight.StatusNoHighlights,
			Degraded: &model.Degradation{Component: "highlighting", Reason: "model unavailable"},
		}
	}
	return highlight.Result{Text: "<persona>" + rawText + "</persona>", Status: highlight.StatusCompleted}
}

type MockEnricher struct {
	FailFor map[string]bool
}

func (m *MockEnricher) EnrichBatch(ctx context.Context, prospects []*model.Prospect) []enrichment.Result {
	out := make([]enrichment.Result, 0, len(prospects))
	for _, p := range prospects {
		cp := *p
		res := enrichment.Result{Prospect: &cp}
		if m.FailFor[p.Name] {
			res.Degradations = []model.Degradation{{Component: "enrichment.email", Reason: "timeout"}}
		} else {
			email := strings.ToLower(strings.Fields(p.Name)[0]) + "@example.test"
			status := model.EmailValid
			cp.Email, cp.EmailStatus = &email, &status
		}
		out = append(out, res)
	}
	return out
}

type MockCatalog struct {
	Plays map[string]model.PlayTemplate
}

func (m *MockCatalog) Get(ctx context.Context, code string) (model.PlayTemplate, bool, error) {
	p, ok := m.Plays[code]
	return p, ok, nil
}

// RecordingSender captures delivered notifications.
type RecordingSender struct {
	mu   sync.Mutex
	Sent []notify.Notification
	Err  error
}

func (r *RecordingSender) Send(ctx context.Context, n notify.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sent = append(r.Sent, n)
	return nil
}

func (r *RecordingSender) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.Sent {
		out = append(out, n.Event)
	}
	return out
}

func strPtr(s string) *string { return &s }
