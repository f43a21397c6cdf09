// internal/model/approval.go
package model

import "time"

const (
    ApprovalPending    = "pending"
    ApprovalApproved   = "approved"
    ApprovalRejected   = "rejected"
    ApprovalSuperseded = "superseded"
)

// DefaultApprovalWindow is used when a request carries no due date.
const DefaultApprovalWindow = 7 * 24 * time.Hour

// Approval is one sign-off request for an execution. Token is the secret
// that backs the shareable review link.
type Approval struct {
    ID                string     `db:"id" json:"id"`
    ExecutionID       string     `db:"execution_id" json:"execution_id"`
    Token             string     `db:"token" json:"token,omitempty"`
    Status            string     `db:"status" json:"status"`
    DueDate           time.Time  `db:"due_date" json:"due_date"`
    ApproverEmail     string     `db:"approver_email" json:"approver_email,omitempty"`
    ApproverAccountID *string    `db:"approver_account_id" json:"approver_account_id,omitempty"`
    RequestedBy       string     `db:"requested_by" json:"requested_by"`
    Comments          string     `db:"comments" json:"comments,omitempty"`
    DecidedAt         *time.Time `db:"decided_at" json:"decided_at,omitempty"`
    CreatedAt         time.Time  `db:"created_at" json:"created_at"`
}

func (a *Approval) IsTerminal() bool {
    return a.Status != ApprovalPending
}
