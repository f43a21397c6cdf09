// internal/model/prospect.go
package model

import "time"

// Prospect is one contact in an execution's target list. The user-supplied
// fields are never overwritten by enrichment.
type Prospect struct {
    ID             int            `db:"id" json:"id"`
    ExecutionID    string         `db:"execution_id" json:"execution_id"`
    Name           string         `db:"name" json:"name"`
    Company        string         `db:"company" json:"company"`
    Title          string         `db:"title" json:"title"`
    CompanyWebsite string         `db:"company_website" json:"company_website"`
    LinkedInURL    string         `db:"linkedin_url" json:"linkedin_url,omitempty"`
    Email          *string        `db:"email" json:"email"`
    EmailStatus    *string        `db:"email_status" json:"email_status"`
    MobileNumber   *string        `db:"mobile_number" json:"mobile_number"`
    EnrichmentData map[string]any `db:"enrichment_data" json:"enrichment_data,omitempty"`
    EnrichedAt     *time.Time     `db:"enriched_at" json:"enriched_at,omitempty"`
    CreatedAt      time.Time      `db:"created_at" json:"created_at"`
}

// Email lookup outcomes reported by the provider. Only the first two are
// confident enough to spend a mobile lookup on.
const (
    EmailValid         = "valid"
    EmailValidCatchAll = "valid_catch_all"
    EmailCatchAll      = "catch_all"
    EmailNotFound      = "not_found"
    EmailUnknown       = "unknown"
)

func IsConfidentEmailStatus(status string) bool {
    return status == EmailValid || status == EmailValidCatchAll
}
