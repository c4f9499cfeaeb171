package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bizlens/internal/domain"
	"bizlens/internal/port"
)

type templateRepo struct {
	db *sqlx.DB
}

// NewTemplateRepo creates a new PostgreSQL-backed TemplateRepository.
func NewTemplateRepo(db *sqlx.DB) port.TemplateRepository {
	return &templateRepo{db: db}
}

func (r *templateRepo) GetActive(ctx context.Context, sourceType domain.SourceType) (*domain.PromptTemplate, error) {
	var tpl domain.PromptTemplate
	err := r.db.GetContext(ctx, &tpl,
		`SELECT * FROM prompt_templates
		 WHERE source_type = $1 AND is_active = true
		 ORDER BY updated_at DESC
		 LIMIT 1`, sourceType)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("templateRepo.GetActive: %w", err)
	}
	return &tpl, nil
}

func (r *templateRepo) SetActive(ctx context.Context, tpl *domain.PromptTemplate) error {
	now := time.Now().UTC()
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
		tpl.CreatedAt = now
	}
	tpl.UpdatedAt = now
	tpl.IsActive = true

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("templateRepo.SetActive: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		"UPDATE prompt_templates SET is_active = false, updated_at = $1 WHERE source_type = $2 AND is_active = true",
		now, tpl.SourceType)
	if err != nil {
		return fmt.Errorf("templateRepo.SetActive: deactivate: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO prompt_templates (id, source_type, name, body, is_active, updated_by, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, body = EXCLUDED.body,
			is_active = EXCLUDED.is_active, updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		tpl.ID, tpl.SourceType, tpl.Name, tpl.Body, tpl.IsActive, tpl.UpdatedBy, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		return fmt.Errorf("templateRepo.SetActive: upsert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("templateRepo.SetActive: commit: %w", err)
	}
	return nil
}
