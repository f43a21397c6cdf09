// internal/service/approval.go
package service

import (
    "context"
    "fmt"
    "log/slog"
    "sort"
    "strings"
    "time"

    "github.com/google/uuid"

    appErrors "github.com/unclebandit/campaign-portal/internal/errors"
    "github.com/unclebandit/campaign-portal/internal/model"
    "github.com/unclebandit/campaign-portal/internal/notify"
    "github.com/unclebandit/campaign-portal/internal/repository"
)

// ApprovalService moves executions through review, list upload and launch.
// Every state change is a conditional write; a lost race surfaces as a
// TransitionError naming what was not met.
type ApprovalService struct {
    Executions repository.ExecutionRepositoryInterface
    Approvals  repository.ApprovalRepositoryInterface
    Prospects  repository.ProspectRepositoryInterface
    Notifier   *notify.Notifier

    ApprovalWebhookURL string
    LaunchWebhookURL   string
    // ReviewBaseURL prefixes the token in shareable review links.
    ReviewBaseURL string

    Logger *slog.Logger
    Now    func() time.Time
}

type RequestApprovalRequest struct {
    ApproverEmail string     `json:"approver_email"`
    DueDate       *time.Time `json:"due_date,omitempty"`
}

type ApprovalRequested struct {
    Approval     *model.Approval     `json:"approval"`
    ReviewURL    string              `json:"review_url"`
    Superseded   int                 `json:"superseded"`
    Degradations []model.Degradation `json:"degradations,omitempty"`
}

// RequestApproval opens a new approval. Any pending one for the same
// execution is superseded in the same transaction.
func (s *ApprovalService) RequestApproval(ctx context.Context, actor model.Actor, executionID string, req RequestApprovalRequest) (*ApprovalRequested, error) {
    email := strings.TrimSpace(req.ApproverEmail)
    if email != "" && !strings.Contains(email, "@") {
        return nil, appErrors.NewValidation("approver_email", "must be an email address")
    }
    e, err := s.load(ctx, actor, executionID)
    if err != nil {
        return nil, err
    }

    now := s.now()
    due := now.Add(model.DefaultApprovalWindow)
    if req.DueDate != nil {
        if !req.DueDate.After(now) {
            return nil, appErrors.NewValidation("due_date", "must be in the future")
        }
        due = *req.DueDate
    }

    a := &model.Approval{
        ID:            uuid.NewString(),
        ExecutionID:   e.ID,
        Token:         uuid.NewString(),
        DueDate:       due,
        ApproverEmail: email,
        RequestedBy:   orDefault(actor.Email, actor.AuthenticatedAccountID),
    }
    superseded, err := s.Approvals.CreatePending(ctx, a, e.AccountID)
    if err != nil {
        return nil, err
    }

    out := &ApprovalRequested{Approval: a, ReviewURL: s.reviewURL(a.Token), Superseded: superseded}
    if deg := s.Notifier.Notify(ctx, notify.Notification{
        URL:         s.ApprovalWebhookURL,
        Event:       notify.EventApprovalRequested,
        Recipient:   email,
        Subject:     "Approval requested: " + e.Name,
        Body:        "Review the campaign copy at " + out.ReviewURL,
        AccountID:   e.AccountID,
        ExecutionID: e.ID,
        ApprovalID:  a.ID,
        Data:        map[string]any{"review_url": out.ReviewURL, "due_date": due},
    }); deg != nil {
        out.Degradations = append(out.Degradations, *deg)
    }

    s.log().Info("approval requested",
        slog.String("execution_id", e.ID),
        slog.String("approval_id", a.ID),
        slog.Int("superseded", superseded),
    )
    return out, nil
}

type DecisionRequest struct {
    Outcome    string `json:"outcome"`
    Comments   string `json:"comments,omitempty"`
    EditedCopy string `json:"edited_copy,omitempty"`
    // ApproverEmail is only read on the shared-link path.
    ApproverEmail string `json:"approver_email,omitempty"`
}

type DecisionResult struct {
    Approval     *model.Approval     `json:"approval"`
    Placeholders *PlaceholderReport  `json:"placeholders,omitempty"`
    Degradations []model.Degradation `json:"degradations,omitempty"`
}

// Decide closes an approval on behalf of the execution's owner.
func (s *ApprovalService) Decide(ctx context.Context, actor model.Actor, approvalID string, req DecisionRequest) (*DecisionResult, error) {
    a, err := s.Approvals.GetByID(ctx, approvalID)
    if err != nil {
        return nil, err
    }
    e, err := s.load(ctx, actor, a.ExecutionID)
    if err != nil {
        return nil, err
    }
    acct := actor.AuthenticatedAccountID
    return s.decide(ctx, a, e, req, orDefault(actor.Email, req.ApproverEmail), &acct)
}

// DecideByToken closes an approval from a shared review link. The token is
// the only credential; expired links are refused.
func (s *ApprovalService) DecideByToken(ctx context.Context, token string, req DecisionRequest) (*DecisionResult, error) {
    a, err := s.Approvals.GetByToken(ctx, token)
    if err != nil {
        return nil, err
    }
    if !a.IsTerminal() && s.now().After(a.DueDate) {
        return nil, appErrors.NewForbidden("this review link has expired")
    }
    e, err := s.Executions.GetForReview(ctx, a.ExecutionID)
    if err != nil {
        return nil, err
    }
    if e == nil {
        return nil, appErrors.NewNotFound("execution", a.ExecutionID)
    }
    return s.decide(ctx, a, e, req, strings.TrimSpace(req.ApproverEmail), nil)
}

func (s *ApprovalService) decide(ctx context.Context, a *model.Approval, e *model.Execution, req DecisionRequest, approverEmail string, approverAccount *string) (*DecisionResult, error) {
    outcome := strings.ToLower(strings.TrimSpace(req.Outcome))
    if outcome != model.ApprovalApproved && outcome != model.ApprovalRejected {
        return nil, appErrors.NewValidation("outcome", "must be approved or rejected")
    }
    if a.IsTerminal() {
        return nil, appErrors.NewTransition("approval", a.Status, outcome, "approval is no longer pending")
    }

    edited := strings.TrimSpace(req.EditedCopy)
    decided, err := s.Approvals.Decide(ctx, repository.Decision{
        ApprovalID:        a.ID,
        Outcome:           outcome,
        Comments:          strings.TrimSpace(req.Comments),
        ApproverEmail:     approverEmail,
        ApproverAccountID: approverAccount,
        EditedCopy:        edited,
    })
    if err != nil {
        return nil, err
    }

    out := &DecisionResult{Approval: decided}
    checked := edited
    if checked == "" && outcome == model.ApprovalApproved {
        checked = e.OutputContent
    }
    if checked != "" {
        report := CheckPlaceholders(checked)
        out.Placeholders = &report
    }

    if deg := s.Notifier.Notify(ctx, notify.Notification{
        URL:         s.ApprovalWebhookURL,
        Event:       notify.EventApprovalDecided,
        Subject:     fmt.Sprintf("Campaign %s: %s", outcome, e.Name),
        Body:        decided.Comments,
        AccountID:   e.AccountID,
        ExecutionID: e.ID,
        ApprovalID:  decided.ID,
        Data:        map[string]any{"outcome": outcome, "approver_email": decided.ApproverEmail},
    }); deg != nil {
        out.Degradations = append(out.Degradations, *deg)
    }

    s.log().Info("approval decided",
        slog.String("execution_id", e.ID),
        slog.String("approval_id", decided.ID),
        slog.String("outcome", outcome),
        slog.Bool("edited", edited != ""),
    )
    return out, nil
}

// ReviewView is what a shared link shows. The token is not echoed back.
type ReviewView struct {
    ApprovalID    string             `json:"approval_id"`
    Status        string             `json:"status"`
    DueDate       time.Time          `json:"due_date"`
    Expired       bool               `json:"expired"`
    ExecutionName string             `json:"execution_name"`
    OutputContent string             `json:"output_content"`
    Assets        *model.FinalAssets `json:"final_assets,omitempty"`
    Placeholders  PlaceholderReport  `json:"placeholders"`
}

func (s *ApprovalService) GetReview(ctx context.Context, token string) (*ReviewView, error) {
    a, err := s.Approvals.GetByToken(ctx, token)
    if err != nil {
        return nil, err
    }
    e, err := s.Executions.GetForReview(ctx, a.ExecutionID)
    if err != nil {
        return nil, err
    }
    if e == nil {
        return nil, appErrors.NewNotFound("execution", a.ExecutionID)
    }
    return &ReviewView{
        ApprovalID:    a.ID,
        Status:        a.Status,
        DueDate:       a.DueDate,
        Expired:       !a.IsTerminal() && s.now().After(a.DueDate),
        ExecutionName: e.Name,
        OutputContent: e.OutputContent,
        Assets:        e.Assets,
        Placeholders:  CheckPlaceholders(e.OutputContent),
    }, nil
}

func (s *ApprovalService) ListApprovals(ctx context.Context, actor model.Actor, executionID string) ([]*model.Approval, error) {
    if _, err := s.load(ctx, actor, executionID); err != nil {
        return nil, err
    }
    return s.Approvals.ListByExecution(ctx, executionID)
}

type ProspectInput struct {
    Name           string `json:"name"`
    Company        string `json:"company"`
    Title          string `json:"title"`
    CompanyWebsite string `json:"company_website"`
    LinkedInURL    string `json:"linkedin_url,omitempty"`
}

// AttachList uploads the audience list. Uploading again adds to it.
func (s *ApprovalService) AttachList(ctx context.Context, actor model.Actor, executionID string, prospects []ProspectInput) (int, error) {
    if len(prospects) == 0 {
        return 0, appErrors.NewValidation("prospects", "at least one prospect is required")
    }
    rows := make([]*model.Prospect, 0, len(prospects))
    for i, p := range prospects {
        if strings.TrimSpace(p.Name) == "" {
            return 0, appErrors.NewValidation(fmt.Sprintf("prospects[%d].name", i), "is required")
        }
        rows = append(rows, &model.Prospect{
            ExecutionID:    executionID,
            Name:           strings.TrimSpace(p.Name),
            Company:        strings.TrimSpace(p.Company),
            Title:          strings.TrimSpace(p.Title),
            CompanyWebsite: strings.TrimSpace(p.CompanyWebsite),
            LinkedInURL:    strings.TrimSpace(p.LinkedInURL),
        })
    }

    if err := s.transition(ctx, actor, executionID, model.AxisList, model.ListUploaded); err != nil {
        return 0, err
    }
    if err := s.Prospects.CreateBatch(ctx, executionID, rows); err != nil {
        return 0, fmt.Errorf("store prospects: %w", err)
    }
    s.log().Info("audience list attached", slog.String("execution_id", executionID), slog.Int("prospects", len(rows)))
    return len(rows), nil
}

func (s *ApprovalService) ApproveList(ctx context.Context, actor model.Actor, executionID string) error {
    return s.transition(ctx, actor, executionID, model.AxisList, model.ListApproved)
}

type LaunchResult struct {
    Execution    *model.Execution    `json:"execution"`
    Degradations []model.Degradation `json:"degradations,omitempty"`
}

// UpdateLaunchStatus starts or completes a launch. Starting requires approved
// copy and an approved list, checked in the same write that opens the gate.
func (s *ApprovalService) UpdateLaunchStatus(ctx context.Context, actor model.Actor, executionID, to string) (*LaunchResult, error) {
    acct := actor.AccountID()
    switch to {
    case model.LaunchInProgress:
        ok, err := s.Executions.StartLaunch(ctx, executionID, acct)
        if err != nil {
            return nil, err
        }
        if !ok {
            e, err := s.load(ctx, actor, executionID)
            if err != nil {
                return nil, err
            }
            unmet := model.LaunchBlockers(e)
            if len(unmet) == 0 {
                return nil, appErrors.NewConflict("execution %s changed while starting launch", executionID)
            }
            return nil, appErrors.NewTransition(string(model.AxisLaunch), e.LaunchStatus, to, unmet...)
        }
    case model.LaunchLive:
        if err := s.transition(ctx, actor, executionID, model.AxisLaunch, to); err != nil {
            return nil, err
        }
    default:
        return nil, appErrors.NewValidation("launch_status", "must be in_progress or live")
    }

    e, err := s.load(ctx, actor, executionID)
    if err != nil {
        return nil, err
    }
    out := &LaunchResult{Execution: e}
    if to == model.LaunchLive {
        if deg := s.Notifier.Notify(ctx, notify.Notification{
            URL:         s.LaunchWebhookURL,
            Event:       notify.EventLaunchLive,
            Recipient:   actor.Email,
            Subject:     "Campaign live: " + e.Name,
            Body:        e.ApprovedCopy,
            AccountID:   e.AccountID,
            ExecutionID: e.ID,
        }); deg != nil {
            out.Degradations = append(out.Degradations, *deg)
        }
    }
    s.log().Info("launch status updated", slog.String("execution_id", executionID), slog.String("launch_status", to))
    return out, nil
}

// DeleteExecution removes a draft. Anything further along is kept.
func (s *ApprovalService) DeleteExecution(ctx context.Context, actor model.Actor, executionID string) error {
    ok, err := s.Executions.DeleteDraft(ctx, executionID, actor.AccountID())
    if err != nil {
        return err
    }
    if ok {
        s.log().Info("execution deleted", slog.String("execution_id", executionID))
        return nil
    }
    e, err := s.load(ctx, actor, executionID)
    if err != nil {
        return err
    }
    return appErrors.NewTransition(string(model.AxisStatus), e.Status, "deleted", "only draft executions can be deleted")
}

type RevisionResult struct {
    Execution    *model.Execution  `json:"execution"`
    Placeholders PlaceholderReport `json:"placeholders"`
}

// ReviseOutput replaces the copy of a draft or rejected execution. A rejected
// execution returns to draft.
func (s *ApprovalService) ReviseOutput(ctx context.Context, actor model.Actor, executionID, content string) (*RevisionResult, error) {
    content = strings.TrimSpace(content)
    if content == "" {
        return nil, appErrors.NewValidation("output_content", "is required")
    }
    ok, err := s.Executions.ReviseOutput(ctx, executionID, actor.AccountID(), content)
    if err != nil {
        return nil, err
    }
    e, err := s.load(ctx, actor, executionID)
    if err != nil {
        return nil, err
    }
    if !ok {
        return nil, appErrors.NewTransition(string(model.AxisStatus), e.Status, model.StatusDraft,
            "only draft or rejected executions can be revised")
    }
    return &RevisionResult{Execution: e, Placeholders: CheckPlaceholders(content)}, nil
}

// transition applies a single-axis move and explains a refusal from the
// current state.
func (s *ApprovalService) transition(ctx context.Context, actor model.Actor, executionID string, axis model.Axis, to string) error {
    ok, err := s.Executions.Transition(ctx, executionID, actor.AccountID(), axis, to)
    if err != nil {
        return err
    }
    if ok {
        return nil
    }
    e, err := s.load(ctx, actor, executionID)
    if err != nil {
        return err
    }
    sources := model.SourcesFor(axis, to)
    sort.Strings(sources)
    return appErrors.NewTransition(string(axis), axisValue(e, axis), to,
        fmt.Sprintf("%s must be one of %s", axis, strings.Join(sources, ", ")))
}

func axisValue(e *model.Execution, axis model.Axis) string {
    switch axis {
    case model.AxisStatus:
        return e.Status
    case model.AxisPipeline:
        return e.PipelineStatus
    case model.AxisCopy:
        return e.CopyStatus
    case model.AxisList:
        return e.ListStatus
    case model.AxisLaunch:
        return e.LaunchStatus
    }
    return ""
}

func (s *ApprovalService) load(ctx context.Context, actor model.Actor, executionID string) (*model.Execution, error) {
    e, err := s.Executions.GetByID(ctx, executionID, actor.AccountID())
    if err != nil {
        return nil, err
    }
    if e == nil {
        return nil, appErrors.NewNotFound("execution", executionID)
    }
    return e, nil
}

func (s *ApprovalService) reviewURL(token string) string {
    return strings.TrimRight(s.ReviewBaseURL, "/") + "/review/" + token
}

func (s *ApprovalService) now() time.Time {
    if s.Now != nil {
        return s.Now()
    }
    return time.Now().UTC()
}

func (s *ApprovalService) log() *slog.Logger {
    if s.Logger == nil {
        return slog.Default()
    }
    return s.Logger
}
