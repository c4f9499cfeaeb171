package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bizlens/internal/domain"
	"bizlens/internal/port"
)

type runRepo struct {
	db *sqlx.DB
}

// NewRunRepo creates a new PostgreSQL-backed RunRepository.
func NewRunRepo(db *sqlx.DB) port.RunRepository {
	return &runRepo{db: db}
}

func (r *runRepo) Create(ctx context.Context, run *domain.ChunkRun) error {
	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	query := `INSERT INTO chunk_runs (
		id, tenant_id, company_id, source_type,
		document_id, file_name, connector_type, entity_type,
		bundle_bucket, bundle_key,
		status, attempts, chunk_count,
		prompt_tokens, completion_tokens, total_tokens, llm_calls,
		failed_units, elapsed_ms, error,
		requested_by, created_at, updated_at
	) VALUES (
		$1, $2, $3, $4,
		$5, $6, $7, $8,
		$9, $10,
		$11, $12, $13,
		$14, $15, $16, $17,
		$18, $19, $20,
		$21, $22, $23
	)`

	_, err := r.db.ExecContext(ctx, query,
		run.ID, run.TenantID, run.CompanyID, run.SourceType,
		run.DocumentID, run.FileName, run.ConnectorType, run.EntityType,
		run.BundleBucket, run.BundleKey,
		run.Status, run.Attempts, run.ChunkCount,
		run.PromptTokens, run.CompletionTokens, run.TotalTokens, run.LLMCalls,
		run.FailedUnits, run.ElapsedMs, run.Error,
		run.RequestedBy, run.CreatedAt, run.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return domain.ErrRunAlreadyExists
		}
		return fmt.Errorf("runRepo.Create: %w", err)
	}
	return nil
}

func (r *runRepo) GetByID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.ChunkRun, error) {
	var run domain.ChunkRun
	err := r.db.GetContext(ctx, &run,
		"SELECT * FROM chunk_runs WHERE id = $1 AND tenant_id = $2", runID, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("runRepo.GetByID: %w", err)
	}
	return &run, nil
}

func (r *runRepo) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]domain.ChunkRun, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM chunk_runs WHERE tenant_id = $1", tenantID)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List: count: %w", err)
	}

	var runs []domain.ChunkRun
	err = r.db.SelectContext(ctx, &runs,
		`SELECT * FROM chunk_runs
		 WHERE tenant_id = $1
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`, tenantID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("runRepo.List: %w", err)
	}
	return runs, total, nil
}

// ClaimQueued marks up to limit queued runs as processing and returns them.
// SKIP LOCKED lets multiple workers poll the same table without contending.
func (r *runRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.ChunkRun, error) {
	query := `UPDATE chunk_runs SET
		status = 'processing',
		attempts = attempts + 1,
		updated_at = NOW()
	WHERE id IN (
		SELECT id FROM chunk_runs
		WHERE status = 'queued'
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	RETURNING *`

	var runs []domain.ChunkRun
	if err := r.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("runRepo.ClaimQueued: %w", err)
	}
	return runs, nil
}

func (r *runRepo) MarkCompleted(ctx context.Context, run *domain.ChunkRun) error {
	now := time.Now().UTC()
	run.UpdatedAt = now
	run.CompletedAt = &now
	run.Status = domain.RunStatusCompleted

	query := `UPDATE chunk_runs SET
		status = $1, chunk_count = $2,
		prompt_tokens = $3, completion_tokens = $4, total_tokens = $5, llm_calls = $6,
		failed_units = $7, elapsed_ms = $8, error = $9,
		updated_at = $10, completed_at = $11
	WHERE id = $12 AND tenant_id = $13`

	res, err := r.db.ExecContext(ctx, query,
		run.Status, run.ChunkCount,
		run.PromptTokens, run.CompletionTokens, run.TotalTokens, run.LLMCalls,
		run.FailedUnits, run.ElapsedMs, run.Error,
		run.UpdatedAt, run.CompletedAt,
		run.ID, run.TenantID)
	if err != nil {
		return fmt.Errorf("runRepo.MarkCompleted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}

func (r *runRepo) MarkFailed(ctx context.Context, runID uuid.UUID, reason string, requeue bool) error {
	status := domain.RunStatusFailed
	if requeue {
		status = domain.RunStatusQueued
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE chunk_runs SET status = $1, error = $2, updated_at = NOW() WHERE id = $3`,
		status, reason, runID)
	if err != nil {
		return fmt.Errorf("runRepo.MarkFailed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrRunNotFound
	}
	return nil
}
