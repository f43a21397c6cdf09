// internal/service/campaign_service.go
package service

import (
    "context"
    "fmt"
    "log/slog"
    "strings"
    "time"

    "github.com/google/uuid"

    "github.com/unclebandit/campaign-portal/internal/enrichment"
    appErrors "github.com/unclebandit/campaign-portal/internal/errors"
    "github.com/unclebandit/campaign-portal/internal/highlight"
    "github.com/unclebandit/campaign-portal/internal/llm"
    "github.com/unclebandit/campaign-portal/internal/model"
    "github.com/unclebandit/campaign-portal/internal/queue"
    "github.com/unclebandit/campaign-portal/internal/repository"
)

// Highlighter tags generated copy. It never fails; see highlight.Engine.
type Highlighter interface {
    Highlight(ctx context.Context, rawText string, elements highlight.Elements, templateHint string) highlight.Result
}

type Enricher interface {
    EnrichBatch(ctx context.Context, prospects []*model.Prospect) []enrichment.Result
}

// PlayCatalog resolves a play code to its merged template.
type PlayCatalog interface {
    Get(ctx context.Context, code string) (model.PlayTemplate, bool, error)
}

var (
    _ Highlighter = (*highlight.Engine)(nil)
    _ Enricher    = (*enrichment.Service)(nil)
)

type CampaignService struct {
    Executions repository.ExecutionRepositoryInterface
    Workspaces repository.WorkspaceRepositoryInterface
    Prospects  repository.ProspectRepositoryInterface
    Platform   Platform
    LLM        llm.Completer
    // Model is passed on every LLM request; empty uses the client default.
    Model       string
    Highlighter Highlighter
    Enricher    Enricher
    Catalog     PlayCatalog
    Queue       queue.Queue
    Logger      *slog.Logger
    Now         func() time.Time
}

type CreateExecutionRequest struct {
    Name         string      `json:"name"`
    TemplateCode *string     `json:"template_code,omitempty"`
    Brief        model.Brief `json:"brief"`
}

func (s *CampaignService) CreateExecution(ctx context.Context, actor model.Actor, req CreateExecutionRequest) (*model.Execution, error) {
    name := strings.TrimSpace(req.Name)
    if name == "" {
        return nil, appErrors.NewValidation("name", "is required")
    }

    var code *string
    if req.TemplateCode != nil && strings.TrimSpace(*req.TemplateCode) != "" {
        c := strings.TrimSpace(*req.TemplateCode)
        if s.Catalog != nil {
            play, ok, err := s.Catalog.Get(ctx, c)
            if err != nil {
                return nil, fmt.Errorf("load play %s: %w", c, err)
            }
            if !ok || !play.IsActive {
                return nil, appErrors.NewValidation("template_code", "unknown or inactive play "+c)
            }
        }
        code = &c
    }

    e := &model.Execution{
        ID:                 uuid.NewString(),
        AccountID:          actor.AccountID(),
        TemplateCode:       code,
        Name:               name,
        Brief:              req.Brief,
        Status:             model.StatusDraft,
        PipelineStatus:     model.PipelineNotStarted,
        CopyStatus:         model.CopyPending,
        ListStatus:         model.ListPending,
        LaunchStatus:       model.LaunchNotStarted,
        HighlightingStatus: model.HighlightingNotRequested,
        CreatedAt:          s.now(),
    }
    if err := s.Executions.Create(ctx, e); err != nil {
        return nil, err
    }
    s.log().Info("execution created",
        slog.String("execution_id", e.ID),
        slog.String("account_id", e.AccountID),
    )
    return e, nil
}

// GetExecution only returns executions owned by the acting account.
func (s *CampaignService) GetExecution(ctx context.Context, actor model.Actor, id string) (*model.Execution, error) {
    e, err := s.Executions.GetByID(ctx, id, actor.AccountID())
    if err != nil {
        return nil, err
    }
    if e == nil {
        return nil, appErrors.NewNotFound("execution", id)
    }
    return e, nil
}

// ListExecutions fetches executions with pagination
func (s *CampaignService) ListExecutions(ctx context.Context, actor model.Actor, page, pageSize int, status string) ([]model.Execution, map[string]int, error) {
    if page < 1 {
        page = 1
    }
    if pageSize < 1 {
        pageSize = 20
    }
    if pageSize > 100 {
        pageSize = 100
    }
    offset := (page - 1) * pageSize

    ptrs, total, err := s.Executions.List(ctx, actor.AccountID(), offset, pageSize, status)
    if err != nil {
        return nil, nil, err
    }

    executions := make([]model.Execution, len(ptrs))
    for i, e := range ptrs {
        executions[i] = *e
    }

    totalPages := (total + pageSize - 1) / pageSize
    pagination := map[string]int{
        "page":        page,
        "page_size":   pageSize,
        "total_count": total,
        "total_pages": totalPages,
    }

    return executions, pagination, nil
}

// EnrichmentReport summarizes one EnrichProspects run.
type EnrichmentReport struct {
    Total        int                 `json:"total"`
    Enriched     int                 `json:"enriched"`
    Failed       int                 `json:"failed"`
    Prospects    []*model.Prospect   `json:"prospects"`
    Degradations []model.Degradation `json:"degradations,omitempty"`
}

// EnrichProspects looks up contact data for every prospect on the list. A
// failed lookup or save is reported and the batch carries on.
func (s *CampaignService) EnrichProspects(ctx context.Context, actor model.Actor, executionID string) (*EnrichmentReport, error) {
    if _, err := s.GetExecution(ctx, actor, executionID); err != nil {
        return nil, err
    }
    if s.Enricher == nil {
        return nil, appErrors.NewValidation("enrichment", "no enrichment provider is configured")
    }

    report, err := enrichList(ctx, s.Prospects, s.Enricher, s.log(), executionID)
    if err != nil {
        return nil, err
    }

    s.log().Info("prospects enriched",
        slog.String("execution_id", executionID),
        slog.Int("total", report.Total),
        slog.Int("enriched", report.Enriched),
    )
    return report, nil
}

// QueueEnrichment hands the list to the enrichment worker instead of
// enriching inside the request.
func (s *CampaignService) QueueEnrichment(ctx context.Context, actor model.Actor, executionID string) error {
    e, err := s.GetExecution(ctx, actor, executionID)
    if err != nil {
        return err
    }
    if s.Queue == nil {
        return appErrors.NewValidation("enrichment", "no job queue is configured")
    }
    if err := s.Queue.Publish(EnrichmentTopic, EnrichmentJob{ExecutionID: e.ID, AccountID: e.AccountID}); err != nil {
        return fmt.Errorf("queue enrichment: %w", err)
    }
    s.log().Info("enrichment queued", slog.String("execution_id", e.ID))
    return nil
}

func (s *CampaignService) now() time.Time {
    if s.Now != nil {
        return s.Now()
    }
    return time.Now().UTC()
}

func (s *CampaignService) log() *slog.Logger {
    if s.Logger == nil {
        return slog.Default()
    }
    return s.Logger
}
