package model

import "time"

// ElementSet maps an agent platform object id to the payload it was created
// with (or returned).
type ElementSet map[string]map[string]any

// Element kinds stored on a workspace record.
const (
	ElementPersonas    = "personas"
	ElementUseCases    = "use_cases"
	ElementReferences  = "client_references"
	ElementSegments    = "segments"
	ElementCompetitors = "competitors"
	ElementProofPoints = "proof_points"
	ElementPlaybooks   = "playbooks"
)

// Workspace holds the agent platform identity of one client account. It is
// the only source of the credential used for that account's platform calls.
type Workspace struct {
	ID                  int        `json:"id"`
	AccountID           string     `json:"account_id"`
	WorkspaceOID        string     `json:"workspace_oid"`
	OfferingOID         string     `json:"offering_oid"`
	Credential          string     `json:"-"`
	CompanyName         string     `json:"company_name"`
	CompanyDomain       string     `json:"company_domain"`
	ContextAgentOID     string     `json:"context_agent_oid,omitempty"`
	Personas            ElementSet `json:"personas"`
	UseCases            ElementSet `json:"use_cases"`
	References          ElementSet `json:"client_references"`
	Segments            ElementSet `json:"segments"`
	Competitors         ElementSet `json:"competitors"`
	ProofPoints         ElementSet `json:"proof_points"`
	Playbooks           ElementSet `json:"playbooks"`
	CredentialRevokedAt *time.Time `json:"credential_revoked_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           *time.Time `json:"updated_at,omitempty"`
}

func (w *Workspace) HasValidCredential() bool {
	return w != nil && w.Credential != "" && w.CredentialRevokedAt == nil
}

// Elements returns the set stored under kind.
func (w *Workspace) Elements(kind string) ElementSet {
	switch kind {
	case ElementPersonas:
		return w.Personas
	case ElementUseCases:
		return w.UseCases
	case ElementReferences:
		return w.References
	case ElementSegments:
		return w.Segments
	case ElementCompetitors:
		return w.Competitors
	case ElementProofPoints:
		return w.ProofPoints
	case ElementPlaybooks:
		return w.Playbooks
	}
	return nil
}

// Provisioning attempt states.
const (
	AttemptInFlight  = "in_flight"
	AttemptSucceeded = "succeeded"
	AttemptFailed    = "failed"
)

// ProvisioningAttempt dedupes Phase 1 calls; the key is also sent upstream.
type ProvisioningAttempt struct {
	IdempotencyKey string    `json:"idempotency_key"`
	AccountID      string    `json:"account_id"`
	Status         string    `json:"status"`
	Detail         string    `json:"detail,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
