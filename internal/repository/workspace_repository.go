package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	appErrors "github.com/unclebandit/campaign-portal/internal/errors"
	"github.com/unclebandit/campaign-portal/internal/model"
)

type WorkspaceRepositoryInterface interface {
	// GetByAccount returns nil, nil when the account has no workspace yet.
	GetByAccount(ctx context.Context, accountID string) (*model.Workspace, error)
	Create(ctx context.Context, w *model.Workspace) error
	// RevokeCredential marks the stored credential unusable. Admin
	// re-provisioning calls it before building the replacement workspace.
	RevokeCredential(ctx context.Context, accountID string) error
	// ReplaceIdentity swaps the platform identifiers on an existing record
	// in place and clears any revocation.
	ReplaceIdentity(ctx context.Context, w *model.Workspace) error
	// MergeElements adds set to the stored elements of kind, keeping any
	// entries already present under other ids.
	MergeElements(ctx context.Context, accountID, kind string, set model.ElementSet) error

	BeginAttempt(ctx context.Context, key, accountID string) (*model.ProvisioningAttempt, bool, error)
	RestartAttempt(ctx context.Context, key string) (bool, error)
	FinishAttempt(ctx context.Context, key, status, detail string) error
}

type WorkspaceRepository struct {
	DB *sql.DB
}

var elementColumns = map[string]string{
	model.ElementPersonas:    "personas",
	model.ElementUseCases:    "use_cases",
	model.ElementReferences:  "client_references",
	model.ElementSegments:    "segments",
	model.ElementCompetitors: "competitors",
	model.ElementProofPoints: "proof_points",
	model.ElementPlaybooks:   "playbooks",
}

func (r *WorkspaceRepository) GetByAccount(ctx context.Context, accountID string) (*model.Workspace, error) {
	query := `
        SELECT id, account_id, workspace_oid, offering_oid, credential, company_name, company_domain,
               context_agent_oid, personas, use_cases, client_references, segments, competitors,
               proof_points, playbooks, credential_revoked_at, created_at, updated_at
        FROM workspaces WHERE account_id=$1
    `
	var (
		w                        model.Workspace
		personas, useCases, refs []byte
		segments, comps, proofs  []byte
		playbooks                []byte
		revokedAt, updatedAt     sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, query, accountID).Scan(
		&w.ID, &w.AccountID, &w.WorkspaceOID, &w.OfferingOID, &w.Credential, &w.CompanyName, &w.CompanyDomain,
		&w.ContextAgentOID, &personas, &useCases, &refs, &segments, &comps,
		&proofs, &playbooks, &revokedAt, &w.CreatedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		w.CredentialRevokedAt = &revokedAt.Time
	}
	if updatedAt.Valid {
		w.UpdatedAt = &updatedAt.Time
	}

	for _, col := range []struct {
		raw []byte
		dst *model.ElementSet
	}{
		{personas, &w.Personas}, {useCases, &w.UseCases}, {refs, &w.References},
		{segments, &w.Segments}, {comps, &w.Competitors}, {proofs, &w.ProofPoints},
		{playbooks, &w.Playbooks},
	} {
		set := model.ElementSet{}
		if len(col.raw) > 0 {
			if err := json.Unmarshal(col.raw, &set); err != nil {
				return nil, fmt.Errorf("decode workspace elements: %w", err)
			}
		}
		*col.dst = set
	}
	return &w, nil
}

func (r *WorkspaceRepository) Create(ctx context.Context, w *model.Workspace) error {
	personas, err := marshalSet(w.Personas)
	if err != nil {
		return err
	}
	useCases, err := marshalSet(w.UseCases)
	if err != nil {
		return err
	}
	query := `
        INSERT INTO workspaces (account_id, workspace_oid, offering_oid, credential, company_name,
                                company_domain, context_agent_oid, personas, use_cases)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        RETURNING id, created_at
    `
	err = r.DB.QueryRowContext(ctx, query, w.AccountID, w.WorkspaceOID, w.OfferingOID, w.Credential,
		w.CompanyName, w.CompanyDomain, w.ContextAgentOID, personas, useCases,
	).Scan(&w.ID, &w.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return appErrors.NewConflict("workspace for account %s already exists", w.AccountID)
		}
		return fmt.Errorf("insert workspace: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) RevokeCredential(ctx context.Context, accountID string) error {
	query := `
        UPDATE workspaces
        SET credential_revoked_at=NOW(), updated_at=NOW()
        WHERE account_id=$1 AND credential_revoked_at IS NULL
    `
	if _, err := r.DB.ExecContext(ctx, query, accountID); err != nil {
		return fmt.Errorf("revoke credential: %w", err)
	}
	return nil
}

func (r *WorkspaceRepository) ReplaceIdentity(ctx context.Context, w *model.Workspace) error {
	personas, err := marshalSet(w.Personas)
	if err != nil {
		return err
	}
	useCases, err := marshalSet(w.UseCases)
	if err != nil {
		return err
	}
	query := `
        UPDATE workspaces
        SET workspace_oid=$1, offering_oid=$2, credential=$3, company_name=$4, company_domain=$5,
            context_agent_oid=$6, personas=$7, use_cases=$8,
            client_references='{}', segments='{}', competitors='{}', proof_points='{}', playbooks='{}',
            credential_revoked_at=NULL, updated_at=NOW()
        WHERE account_id=$9
    `
	ok, err := affected(r.DB.ExecContext(ctx, query, w.WorkspaceOID, w.OfferingOID, w.Credential,
		w.CompanyName, w.CompanyDomain, w.ContextAgentOID, personas, useCases, w.AccountID))
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewNotFound("workspace", w.AccountID)
	}
	return nil
}

func (r *WorkspaceRepository) MergeElements(ctx context.Context, accountID, kind string, set model.ElementSet) error {
	column, ok := elementColumns[kind]
	if !ok {
		return fmt.Errorf("unknown element kind %q", kind)
	}
	if len(set) == 0 {
		return nil
	}
	payload, err := marshalSet(set)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		`UPDATE workspaces SET %[1]s = %[1]s || $1::jsonb, updated_at=NOW() WHERE account_id=$2`, column)
	ok, err = affected(r.DB.ExecContext(ctx, query, payload, accountID))
	if err != nil {
		return err
	}
	if !ok {
		return appErrors.NewNotFound("workspace", accountID)
	}
	return nil
}

// BeginAttempt records an in-flight Phase 1 call. When the key already
// exists the stored attempt is returned with created=false.
func (r *WorkspaceRepository) BeginAttempt(ctx context.Context, key, accountID string) (*model.ProvisioningAttempt, bool, error) {
	var a model.ProvisioningAttempt
	err := r.DB.QueryRowContext(ctx, `
        INSERT INTO provisioning_attempts (idempotency_key, account_id, status)
        VALUES ($1, $2, $3)
        ON CONFLICT (idempotency_key) DO NOTHING
        RETURNING idempotency_key, account_id, status, detail, created_at, updated_at
    `, key, accountID, model.AttemptInFlight).Scan(&a.IdempotencyKey, &a.AccountID, &a.Status, &a.Detail, &a.CreatedAt, &a.UpdatedAt)
	if err == nil {
		return &a, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	err = r.DB.QueryRowContext(ctx, `
        SELECT idempotency_key, account_id, status, detail, created_at, updated_at
        FROM provisioning_attempts WHERE idempotency_key=$1
    `, key).Scan(&a.IdempotencyKey, &a.AccountID, &a.Status, &a.Detail, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, false, err
	}
	return &a, false, nil
}

// RestartAttempt flips a failed attempt back to in-flight. It is a no-op
// (false) for attempts in any other state.
func (r *WorkspaceRepository) RestartAttempt(ctx context.Context, key string) (bool, error) {
	return affected(r.DB.ExecContext(ctx, `
        UPDATE provisioning_attempts SET status=$1, detail='', updated_at=NOW()
        WHERE idempotency_key=$2 AND status=$3
    `, model.AttemptInFlight, key, model.AttemptFailed))
}

func (r *WorkspaceRepository) FinishAttempt(ctx context.Context, key, status, detail string) error {
	_, err := r.DB.ExecContext(ctx, `
        UPDATE provisioning_attempts SET status=$1, detail=$2, updated_at=NOW()
        WHERE idempotency_key=$3
    `, status, detail, key)
	return err
}

func marshalSet(set model.ElementSet) ([]byte, error) {
	if set == nil {
		set = model.ElementSet{}
	}
	b, err := json.Marshal(set)
	if err != nil {
		return nil, fmt.Errorf("encode workspace elements: %w", err)
	}
	return b, nil
}

var _ WorkspaceRepositoryInterface = (*WorkspaceRepository)(nil)
