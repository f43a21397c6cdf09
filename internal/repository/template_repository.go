package repository

import (
	"context"
	"database/sql"

	"github.com/unclebandit/campaign-portal/internal/model"
)

type TemplateRepositoryInterface interface {
	ListOverlays(ctx context.Context) (map[string]model.TemplateOverlay, error)
	// EnsureOverlay inserts a default row for code. Existing rows are left
	// untouched so operator edits survive reseeding.
	EnsureOverlay(ctx context.Context, code string) (bool, error)
}

type TemplateRepository struct {
	DB *sql.DB
}

func (r *TemplateRepository) ListOverlays(ctx context.Context) (map[string]model.TemplateOverlay, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT code, is_active, agent_name_pattern, prompt_override FROM play_templates`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overlays := map[string]model.TemplateOverlay{}
	for rows.Next() {
		var o model.TemplateOverlay
		if err := rows.Scan(&o.Code, &o.IsActive, &o.AgentNamePattern, &o.PromptOverride); err != nil {
			return nil, err
		}
		overlays[o.Code] = o
	}
	return overlays, rows.Err()
}

func (r *TemplateRepository) EnsureOverlay(ctx context.Context, code string) (bool, error) {
	return affected(r.DB.ExecContext(ctx,
		`INSERT INTO play_templates (code) VALUES ($1) ON CONFLICT (code) DO NOTHING`, code))
}

var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)
