package repository

import (
    "context"
    "database/sql"
    "errors"
    "fmt"

    "github.com/lib/pq"

    appErrors "github.com/unclebandit/campaign-portal/internal/errors"
    "github.com/unclebandit/campaign-portal/internal/model"
)

type ApprovalRepositoryInterface interface {
    // CreatePending supersedes any pending approval for the execution,
    // inserts a, and moves the execution to pending_approval, all in one
    // transaction. It returns how many approvals were superseded.
    CreatePending(ctx context.Context, a *model.Approval, accountID string) (int, error)
    GetByID(ctx context.Context, id string) (*model.Approval, error)
    GetByToken(ctx context.Context, token string) (*model.Approval, error)
    ListByExecution(ctx context.Context, executionID string) ([]*model.Approval, error)
    // Decide closes a pending approval and applies the outcome to its
    // execution. Both writes commit or neither does.
    Decide(ctx context.Context, d Decision) (*model.Approval, error)
}

// Decision is the input to ApprovalRepository.Decide.
type Decision struct {
    ApprovalID        string
    Outcome           string // model.ApprovalApproved or model.ApprovalRejected
    Comments          string
    ApproverEmail     string
    ApproverAccountID *string
    EditedCopy        string
}

type ApprovalRepository struct {
    DB *sql.DB
}

const approvalColumns = `id, execution_id, token, status, due_date, approver_email, approver_account_id,
    requested_by, comments, decided_at, created_at`

func scanApproval(row rowScanner) (*model.Approval, error) {
    var (
        a         model.Approval
        approver  sql.NullString
        decidedAt sql.NullTime
    )
    err := row.Scan(&a.ID, &a.ExecutionID, &a.Token, &a.Status, &a.DueDate, &a.ApproverEmail, &approver,
        &a.RequestedBy, &a.Comments, &decidedAt, &a.CreatedAt)
    if err != nil {
        return nil, err
    }
    if approver.Valid {
        a.ApproverAccountID = &approver.String
    }
    if decidedAt.Valid {
        a.DecidedAt = &decidedAt.Time
    }
    return &a, nil
}

func (r *ApprovalRepository) CreatePending(ctx context.Context, a *model.Approval, accountID string) (int, error) {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return 0, err
    }
    defer tx.Rollback()

    var status, output string
    err = tx.QueryRowContext(ctx,
        `SELECT status, output_content FROM executions WHERE id=$1 AND account_id=$2 FOR UPDATE`,
        a.ExecutionID, accountID,
    ).Scan(&status, &output)
    if err == sql.ErrNoRows {
        return 0, appErrors.NewNotFound("execution", a.ExecutionID)
    }
    if err != nil {
        return 0, err
    }
    if status != model.StatusDraft && status != model.StatusPendingApproval {
        return 0, appErrors.NewTransition(string(model.AxisStatus), status, model.StatusPendingApproval,
            "execution must be draft or pending_approval")
    }
    if output == "" {
        return 0, appErrors.NewTransition(string(model.AxisStatus), status, model.StatusPendingApproval,
            "output content must not be empty")
    }

    res, err := tx.ExecContext(ctx,
        `UPDATE approvals SET status=$1 WHERE execution_id=$2 AND status=$3`,
        model.ApprovalSuperseded, a.ExecutionID, model.ApprovalPending)
    if err != nil {
        return 0, err
    }
    superseded, err := res.RowsAffected()
    if err != nil {
        return 0, fmt.Errorf("count superseded approvals: %w", err)
    }

    a.Status = model.ApprovalPending
    err = tx.QueryRowContext(ctx, `
        INSERT INTO approvals (id, execution_id, token, status, due_date, approver_email, requested_by)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING created_at
    `, a.ID, a.ExecutionID, a.Token, a.Status, a.DueDate, a.ApproverEmail, a.RequestedBy).Scan(&a.CreatedAt)
    if err != nil {
        if isUniqueViolation(err) {
            return 0, appErrors.NewConflict("another approval request for execution %s is in progress", a.ExecutionID)
        }
        return 0, fmt.Errorf("insert approval: %w", err)
    }

    _, err = tx.ExecContext(ctx, `
        UPDATE executions SET status=$1, copy_status=$2, updated_at=NOW()
        WHERE id=$3 AND account_id=$4
    `, model.StatusPendingApproval, model.CopyPending, a.ExecutionID, accountID)
    if err != nil {
        return 0, err
    }

    if err := tx.Commit(); err != nil {
        return 0, err
    }
    return int(superseded), nil
}

func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*model.Approval, error) {
    a, err := scanApproval(r.DB.QueryRowContext(ctx,
        `SELECT `+approvalColumns+` FROM approvals WHERE id=$1`, id))
    if err == sql.ErrNoRows {
        return nil, appErrors.NewNotFound("approval", id)
    }
    return a, err
}

func (r *ApprovalRepository) GetByToken(ctx context.Context, token string) (*model.Approval, error) {
    a, err := scanApproval(r.DB.QueryRowContext(ctx,
        `SELECT `+approvalColumns+` FROM approvals WHERE token=$1`, token))
    if err == sql.ErrNoRows {
        // Never echo the token back.
        return nil, appErrors.NewNotFound("approval", "for token")
    }
    return a, err
}

func (r *ApprovalRepository) ListByExecution(ctx context.Context, executionID string) ([]*model.Approval, error) {
    rows, err := r.DB.QueryContext(ctx,
        `SELECT `+approvalColumns+` FROM approvals WHERE execution_id=$1 ORDER BY created_at DESC`, executionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()

    approvals := []*model.Approval{}
    for rows.Next() {
        a, err := scanApproval(rows)
        if err != nil {
            return nil, err
        }
        approvals = append(approvals, a)
    }
    return approvals, rows.Err()
}

func (r *ApprovalRepository) Decide(ctx context.Context, d Decision) (*model.Approval, error) {
    tx, err := r.DB.BeginTx(ctx, nil)
    if err != nil {
        return nil, err
    }
    defer tx.Rollback()

    a, err := scanApproval(tx.QueryRowContext(ctx, `
        UPDATE approvals
        SET status=$1, comments=$2, approver_email=COALESCE(NULLIF($3::text, ''), approver_email),
            approver_account_id=$4, decided_at=NOW()
        WHERE id=$5 AND status=$6
        RETURNING `+approvalColumns,
        d.Outcome, d.Comments, d.ApproverEmail, d.ApproverAccountID, d.ApprovalID, model.ApprovalPending))
    if errors.Is(err, sql.ErrNoRows) {
        var current string
        lookup := tx.QueryRowContext(ctx, `SELECT status FROM approvals WHERE id=$1`, d.ApprovalID).Scan(&current)
        if lookup == sql.ErrNoRows {
            return nil, appErrors.NewNotFound("approval", d.ApprovalID)
        }
        if lookup != nil {
            return nil, lookup
        }
        return nil, appErrors.NewTransition("approval", current, d.Outcome, "approval is no longer pending")
    }
    if err != nil {
        return nil, err
    }

    res, err := tx.ExecContext(ctx, `
        UPDATE executions
        SET status=$1, copy_status=$2,
            approved_copy=CASE WHEN $1::text = 'approved'
                THEN COALESCE(NULLIF($3::text, ''), output_content) ELSE approved_copy END,
            output_content=CASE WHEN $3::text <> '' THEN $3::text ELSE output_content END,
            updated_at=NOW()
        WHERE id=$4 AND status=$5
    `, d.Outcome, d.Outcome, d.EditedCopy, a.ExecutionID, model.StatusPendingApproval)
    if err != nil {
        return nil, err
    }
    if n, _ := res.RowsAffected(); n == 0 {
        return nil, appErrors.NewTransition(string(model.AxisStatus), "unknown", d.Outcome,
            "execution must be pending_approval")
    }

    if err := tx.Commit(); err != nil {
        return nil, err
    }
    return a, nil
}

func isUniqueViolation(err error) bool {
    var pqErr *pq.Error
    return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ ApprovalRepositoryInterface = (*ApprovalRepository)(nil)
