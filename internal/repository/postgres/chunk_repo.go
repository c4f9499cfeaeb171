package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bizlens/internal/domain"
	"bizlens/internal/port"
)

type chunkRepo struct {
	db *sqlx.DB
}

// NewChunkRepo creates a new PostgreSQL-backed ChunkRepository.
func NewChunkRepo(db *sqlx.DB) port.ChunkRepository {
	return &chunkRepo{db: db}
}

const insertChunkQuery = `INSERT INTO chunks (
	id, tenant_id, company_id, run_id, source_type,
	document_id, connector_type, entity_type,
	content, summary, pillar, chunk_type,
	page_number, chunk_index, confidence_score,
	metadata, previous_context, embedding, created_at
) VALUES (
	$1, $2, $3, $4, $5,
	$6, $7, $8,
	$9, $10, $11, $12,
	$13, $14, $15,
	$16, $17, $18, $19
)`

func (r *chunkRepo) InsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("chunkRepo.InsertBatch: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for i := range chunks {
		c := &chunks[i]
		_, err := tx.ExecContext(ctx, insertChunkQuery,
			c.ID, c.TenantID, c.CompanyID, c.RunID, c.SourceType,
			c.DocumentID, c.ConnectorType, c.EntityType,
			c.Content, c.Summary, c.Pillar, c.ChunkType,
			c.PageNumber, c.ChunkIndex, c.ConfidenceScore,
			c.Metadata, c.PreviousContext, c.Embedding, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("chunkRepo.InsertBatch: chunk %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("chunkRepo.InsertBatch: commit: %w", err)
	}
	return nil
}

func (r *chunkRepo) ListByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := r.db.SelectContext(ctx, &chunks,
		`SELECT * FROM chunks
		 WHERE tenant_id = $1 AND document_id = $2
		 ORDER BY page_number, chunk_index`, tenantID, documentID)
	if err != nil {
		return nil, fmt.Errorf("chunkRepo.ListByDocument: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepo) ListByRun(ctx context.Context, tenantID, runID uuid.UUID) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	err := r.db.SelectContext(ctx, &chunks,
		`SELECT * FROM chunks
		 WHERE tenant_id = $1 AND run_id = $2
		 ORDER BY page_number, chunk_index`, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("chunkRepo.ListByRun: %w", err)
	}
	return chunks, nil
}

func (r *chunkRepo) ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID, offset, limit int) ([]domain.Chunk, int, error) {
	var total int
	err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM chunks WHERE tenant_id = $1 AND company_id = $2", tenantID, companyID)
	if err != nil {
		return nil, 0, fmt.Errorf("chunkRepo.ListByCompany: count: %w", err)
	}

	var chunks []domain.Chunk
	err = r.db.SelectContext(ctx, &chunks,
		`SELECT * FROM chunks
		 WHERE tenant_id = $1 AND company_id = $2
		 ORDER BY created_at DESC, page_number, chunk_index
		 OFFSET $3 LIMIT $4`, tenantID, companyID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("chunkRepo.ListByCompany: %w", err)
	}
	return chunks, total, nil
}

func (r *chunkRepo) DeleteByRun(ctx context.Context, tenantID, runID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE tenant_id = $1 AND run_id = $2", tenantID, runID)
	if err != nil {
		return fmt.Errorf("chunkRepo.DeleteByRun: %w", err)
	}
	return nil
}
