package port

import (
	"context"

	"github.com/google/uuid"

	"bizlens/internal/domain"
)

// RunRepository persists chunking run lifecycle state.
type RunRepository interface {
	Create(ctx context.Context, run *domain.ChunkRun) error
	GetByID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.ChunkRun, error)
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]domain.ChunkRun, int, error)
	// ClaimQueued atomically claims up to limit queued runs, marking them
	// processing. Claims survive worker restarts via the attempts counter.
	ClaimQueued(ctx context.Context, limit int) ([]domain.ChunkRun, error)
	MarkCompleted(ctx context.Context, run *domain.ChunkRun) error
	MarkFailed(ctx context.Context, runID uuid.UUID, reason string, requeue bool) error
}
