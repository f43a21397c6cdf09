package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/unclebandit/campaign-portal/internal/model"
)

type ProspectRepositoryInterface interface {
	CreateBatch(ctx context.Context, executionID string, prospects []*model.Prospect) error
	ListByExecution(ctx context.Context, executionID string) ([]*model.Prospect, error)
	SaveEnrichment(ctx context.Context, p *model.Prospect) error
}

type ProspectRepository struct {
	DB *sql.DB
}

// CreateBatch inserts the whole list or nothing.
func (r *ProspectRepository) CreateBatch(ctx context.Context, executionID string, prospects []*model.Prospect) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
        INSERT INTO prospects (execution_id, name, company, title, company_website, linkedin_url, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id
    `)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, p := range prospects {
		p.ExecutionID = executionID
		p.CreatedAt = now
		if err := stmt.QueryRowContext(ctx, executionID, p.Name, p.Company, p.Title,
			p.CompanyWebsite, p.LinkedInURL, now).Scan(&p.ID); err != nil {
			return fmt.Errorf("insert prospect %q: %w", p.Name, err)
		}
	}
	return tx.Commit()
}

func (r *ProspectRepository) ListByExecution(ctx context.Context, executionID string) ([]*model.Prospect, error) {
	rows, err := r.DB.QueryContext(ctx, `
        SELECT id, execution_id, name, company, title, company_website, linkedin_url,
               email, email_status, mobile_number, enrichment_data, enriched_at, created_at
        FROM prospects WHERE execution_id=$1 ORDER BY id
    `, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prospects := []*model.Prospect{}
	for rows.Next() {
		var (
			p                     model.Prospect
			email, status, mobile sql.NullString
			data                  []byte
			enrichedAt            sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.ExecutionID, &p.Name, &p.Company, &p.Title, &p.CompanyWebsite,
			&p.LinkedInURL, &email, &status, &mobile, &data, &enrichedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		if email.Valid {
			p.Email = &email.String
		}
		if status.Valid {
			p.EmailStatus = &status.String
		}
		if mobile.Valid {
			p.MobileNumber = &mobile.String
		}
		if enrichedAt.Valid {
			p.EnrichedAt = &enrichedAt.Time
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &p.EnrichmentData); err != nil {
				return nil, fmt.Errorf("decode enrichment data: %w", err)
			}
		}
		prospects = append(prospects, &p)
	}
	return prospects, rows.Err()
}

// SaveEnrichment only fills columns that are still empty, so a later run
// never replaces a value that an earlier one found.
func (r *ProspectRepository) SaveEnrichment(ctx context.Context, p *model.Prospect) error {
	var data any
	if len(p.EnrichmentData) > 0 {
		b, err := json.Marshal(p.EnrichmentData)
		if err != nil {
			return err
		}
		data = string(b)
	}
	_, err := r.DB.ExecContext(ctx, `
        UPDATE prospects
        SET email=COALESCE(email, $1),
            email_status=COALESCE(email_status, $2),
            mobile_number=COALESCE(mobile_number, $3),
            enrichment_data=COALESCE(enrichment_data, '{}'::jsonb) || COALESCE($4::jsonb, '{}'::jsonb),
            enriched_at=NOW()
        WHERE id=$5
    `, p.Email, p.EmailStatus, p.MobileNumber, data, p.ID)
	return err
}

var _ ProspectRepositoryInterface = (*ProspectRepository)(nil)
