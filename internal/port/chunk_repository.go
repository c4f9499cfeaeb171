package port

import (
	"context"

	"github.com/google/uuid"

	"bizlens/internal/domain"
)

// ChunkRepository persists produced chunks.
type ChunkRepository interface {
	// InsertBatch inserts all chunks in one transaction, preserving order.
	InsertBatch(ctx context.Context, chunks []domain.Chunk) error
	ListByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]domain.Chunk, error)
	ListByRun(ctx context.Context, tenantID, runID uuid.UUID) ([]domain.Chunk, error)
	ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID, offset, limit int) ([]domain.Chunk, int, error)
	DeleteByRun(ctx context.Context, tenantID, runID uuid.UUID) error
}
