package repository

import (
    "context"
    "database/sql"
    "encoding/json"
    "fmt"
    "time"

    "github.com/lib/pq"

    appErrors "github.com/unclebandit/campaign-portal/internal/errors"
    "github.com/unclebandit/campaign-portal/internal/model"
)

type ExecutionRepositoryInterface interface {
    Create(ctx context.Context, e *model.Execution) error
    GetByID(ctx context.Context, id, accountID string) (*model.Execution, error)
    GetForReview(ctx context.Context, id string) (*model.Execution, error)
    List(ctx context.Context, accountID string, offset, limit int, status string) ([]*model.Execution, int, error)

    // Pipeline writes; only allowed while the execution is a draft.
    // SaveHighlighting also accepts rejected executions.
    SaveIntermediary(ctx context.Context, id, accountID string, io *model.IntermediaryOutputs) (bool, error)
    SaveAssets(ctx context.Context, id, accountID string, assets *model.FinalAssets, outputContent, highlightingStatus string) (bool, error)
    SaveHighlighting(ctx context.Context, id, accountID string, assets *model.FinalAssets, highlightingStatus string) (bool, error)

    // Status writes. Each is conditional on the current state so concurrent
    // callers cannot skip a step; false means the guard did not match.
    Transition(ctx context.Context, id, accountID string, axis model.Axis, to string) (bool, error)
    ReviseOutput(ctx context.Context, id, accountID, content string) (bool, error)
    StartLaunch(ctx context.Context, id, accountID string) (bool, error)
    DeleteDraft(ctx context.Context, id, accountID string) (bool, error)
}

type ExecutionRepository struct {
    DB *sql.DB
}

const executionColumns = `
    id, account_id, template_code, name,
    meeting_transcript, written_strategy, additional_brief, hook_signal, offer_hint,
    intermediary_outputs, final_assets, output_content, approved_copy,
    status, pipeline_status, copy_status, list_status, launch_status, highlighting_status,
    created_at, updated_at`

// axisColumns whitelists the columns Transition may write.
var axisColumns = map[model.Axis]string{
    model.AxisStatus:   "status",
    model.AxisPipeline: "pipeline_status",
    model.AxisCopy:     "copy_status",
    model.AxisList:     "list_status",
    model.AxisLaunch:   "launch_status",
}

type rowScanner interface {
    Scan(dest ...any) error
}

func scanExecution(row rowScanner) (*model.Execution, error) {
    var (
        e                    model.Execution
        templateCode         sql.NullString
        intermediary, assets []byte
        updatedAt            sql.NullTime
    )
    err := row.Scan(
        &e.ID, &e.AccountID, &templateCode, &e.Name,
        &e.Brief.MeetingTranscript, &e.Brief.WrittenStrategy, &e.Brief.AdditionalBrief,
        &e.Brief.HookSignal, &e.Brief.OfferHint,
        &intermediary, &assets, &e.OutputContent, &e.ApprovedCopy,
        &e.Status, &e.PipelineStatus, &e.CopyStatus, &e.ListStatus, &e.LaunchStatus, &e.HighlightingStatus,
        &e.CreatedAt, &updatedAt,
    )
    if err != nil {
        return nil, err
    }
    if templateCode.Valid {
        e.TemplateCode = &templateCode.String
    }
    if updatedAt.Valid {
        e.UpdatedAt = &updatedAt.Time
    }
    if len(intermediary) > 0 {
        e.Intermediary = &model.IntermediaryOutputs{}
        if err := json.Unmarshal(intermediary, e.Intermediary); err != nil {
            return nil, fmt.Errorf("decode intermediary outputs: %w", err)
        }
    }
    if len(assets) > 0 {
        e.Assets = &model.FinalAssets{}
        if err := json.Unmarshal(assets, e.Assets); err != nil {
            return nil, fmt.Errorf("decode final assets: %w", err)
        }
    }
    return &e, nil
}

func (r *ExecutionRepository) Create(ctx context.Context, e *model.Execution) error {
    e.CreatedAt = time.Now()
    e.Status = model.StatusDraft
    e.PipelineStatus = model.PipelineNotStarted
    e.CopyStatus = model.CopyPending
    e.ListStatus = model.ListPending
    e.LaunchStatus = model.LaunchNotStarted
    e.HighlightingStatus = model.HighlightingNotRequested

    query := `
        INSERT INTO executions (id, account_id, template_code, name,
            meeting_transcript, written_strategy, additional_brief, hook_signal, offer_hint,
            output_content, status, pipeline_status, copy_status, list_status, launch_status,
            highlighting_status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `
    _, err := r.DB.ExecContext(ctx, query,
        e.ID, e.AccountID, e.TemplateCode, e.Name,
        e.Brief.MeetingTranscript, e.Brief.WrittenStrategy, e.Brief.AdditionalBrief,
        e.Brief.HookSignal, e.Brief.OfferHint,
        e.OutputContent, e.Status, e.PipelineStatus, e.CopyStatus, e.ListStatus, e.LaunchStatus,
        e.HighlightingStatus, e.CreatedAt,
    )
    if err != nil {
        return fmt.Errorf("insert execution: %w", err)
    }
    return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id, accountID string) (*model.Execution, error) {
    query := `SELECT ` + executionColumns + ` FROM executions WHERE id=$1 AND account_id=$2`
    e, err := scanExecution(r.DB.QueryRowContext(ctx, query, id, accountID))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewNotFound("execution", id)
        }
        return nil, err
    }
    return e, nil
}

// GetForReview loads an execution without an account scope. Only callers
// that already hold a valid review token may use it.
func (r *ExecutionRepository) GetForReview(ctx context.Context, id string) (*model.Execution, error) {
    query := `SELECT ` + executionColumns + ` FROM executions WHERE id=$1`
    e, err := scanExecution(r.DB.QueryRowContext(ctx, query, id))
    if err != nil {
        if err == sql.ErrNoRows {
            return nil, appErrors.NewNotFound("execution", id)
        }
        return nil, err
    }
    return e, nil
}

func (r *ExecutionRepository) List(ctx context.Context, accountID string, offset, limit int, status string) ([]*model.Execution, int, error) {
    query := `SELECT ` + executionColumns + ` FROM executions WHERE account_id=$1`
    args := []any{accountID}
    argPos := 2

    if status != "" {
        query += fmt.Sprintf(" AND status=$%d", argPos)
        args = append(args, status)
        argPos++
    }
    query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
    args = append(args, limit, offset)

    rows, err := r.DB.QueryContext(ctx, query, args...)
    if err != nil {
        return nil, 0, err
    }
    defer rows.Close()

    executions := []*model.Execution{}
    for rows.Next() {
        e, err := scanExecution(rows)
        if err != nil {
            return nil, 0, err
        }
        executions = append(executions, e)
    }
    if err := rows.Err(); err != nil {
        return nil, 0, err
    }

    countQuery := `SELECT COUNT(*) FROM executions WHERE account_id=$1`
    countArgs := []any{accountID}
    if status != "" {
        countQuery += ` AND status=$2`
        countArgs = append(countArgs, status)
    }
    var total int
    if err := r.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
        return nil, 0, err
    }
    return executions, total, nil
}

func (r *ExecutionRepository) SaveIntermediary(ctx context.Context, id, accountID string, io *model.IntermediaryOutputs) (bool, error) {
    payload, err := json.Marshal(io)
    if err != nil {
        return false, err
    }
    query := `
        UPDATE executions
        SET intermediary_outputs=$1, pipeline_status=$2, updated_at=NOW()
        WHERE id=$3 AND account_id=$4 AND status=$5 AND pipeline_status = ANY($6)
    `
    return affected(r.DB.ExecContext(ctx, query, payload, model.PipelineIntermediaryGenerated,
        id, accountID, model.StatusDraft,
        pq.Array(model.SourcesFor(model.AxisPipeline, model.PipelineIntermediaryGenerated))))
}

func (r *ExecutionRepository) SaveAssets(ctx context.Context, id, accountID string, assets *model.FinalAssets, outputContent, highlightingStatus string) (bool, error) {
    payload, err := json.Marshal(assets)
    if err != nil {
        return false, err
    }
    query := `
        UPDATE executions
        SET final_assets=$1, output_content=$2, highlighting_status=$3, pipeline_status=$4, updated_at=NOW()
        WHERE id=$5 AND account_id=$6 AND status=$7 AND pipeline_status = ANY($8)
    `
    return affected(r.DB.ExecContext(ctx, query, payload, outputContent, highlightingStatus,
        model.PipelineAssetsGenerated, id, accountID, model.StatusDraft,
        pq.Array(model.SourcesFor(model.AxisPipeline, model.PipelineAssetsGenerated))))
}

func (r *ExecutionRepository) SaveHighlighting(ctx context.Context, id, accountID string, assets *model.FinalAssets, highlightingStatus string) (bool, error) {
    payload, err := json.Marshal(assets)
    if err != nil {
        return false, err
    }
    query := `
        UPDATE executions
        SET final_assets=$1, highlighting_status=$2, updated_at=NOW()
        WHERE id=$3 AND account_id=$4 AND final_assets IS NOT NULL AND status IN ($5, $6)
    `
    return affected(r.DB.ExecContext(ctx, query, payload, highlightingStatus, id, accountID,
        model.StatusDraft, model.StatusRejected))
}

func (r *ExecutionRepository) Transition(ctx context.Context, id, accountID string, axis model.Axis, to string) (bool, error) {
    column, ok := axisColumns[axis]
    if !ok {
        return false, fmt.Errorf("unknown status axis %q", axis)
    }
    query := fmt.Sprintf(`
        UPDATE executions SET %[1]s=$1, updated_at=NOW()
        WHERE id=$2 AND account_id=$3 AND %[1]s = ANY($4)
    `, column)
    return affected(r.DB.ExecContext(ctx, query, to, id, accountID, pq.Array(model.SourcesFor(axis, to))))
}

// ReviseOutput replaces the reviewable copy. A rejected execution goes back
// to draft so it can be resubmitted.
func (r *ExecutionRepository) ReviseOutput(ctx context.Context, id, accountID, content string) (bool, error) {
    query := `
        UPDATE executions
        SET output_content=$1, status=$2, copy_status=$3, updated_at=NOW()
        WHERE id=$4 AND account_id=$5 AND status IN ($6, $7)
    `
    return affected(r.DB.ExecContext(ctx, query, content, model.StatusDraft, model.CopyPending,
        id, accountID, model.StatusDraft, model.StatusRejected))
}

// StartLaunch is the launch gate. The copy and list checks happen in the
// same statement as the write so a stale read cannot open the gate.
func (r *ExecutionRepository) StartLaunch(ctx context.Context, id, accountID string) (bool, error) {
    query := `
        UPDATE executions
        SET launch_status=$1, status=$2, updated_at=NOW()
        WHERE id=$3 AND account_id=$4
          AND launch_status=$5 AND copy_status=$6 AND list_status=$7
    `
    return affected(r.DB.ExecContext(ctx, query, model.LaunchInProgress, model.StatusLaunchApproved,
        id, accountID, model.LaunchNotStarted, model.CopyApproved, model.ListApproved))
}

func (r *ExecutionRepository) DeleteDraft(ctx context.Context, id, accountID string) (bool, error) {
    query := `DELETE FROM executions WHERE id=$1 AND account_id=$2 AND status=$3`
    return affected(r.DB.ExecContext(ctx, query, id, accountID, model.StatusDraft))
}

func affected(res sql.Result, err error) (bool, error) {
    if err != nil {
        return false, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return false, err
    }
    return n > 0, nil
}

var _ ExecutionRepositoryInterface = (*ExecutionRepository)(nil)
