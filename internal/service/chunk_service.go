package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"bizlens/internal/csvexport"
	"bizlens/internal/domain"
	"bizlens/internal/port"
)

// exportPageSize bounds memory while streaming a CSV export.
const exportPageSize = 500

// ChunkService defines read access to produced chunks.
type ChunkService interface {
	ListByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]domain.Chunk, error)
	ListByRun(ctx context.Context, tenantID, runID uuid.UUID) ([]domain.Chunk, error)
	ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID, offset, limit int) ([]domain.Chunk, int, error)
	// ExportCSV streams all chunks of a company as CSV, BOM and header
	// included, paging through the store.
	ExportCSV(ctx context.Context, w io.Writer, tenantID, companyID uuid.UUID) error
}

type chunkService struct {
	chunkRepo port.ChunkRepository
}

// NewChunkService creates a ChunkService.
func NewChunkService(chunkRepo port.ChunkRepository) ChunkService {
	return &chunkService{chunkRepo: chunkRepo}
}

func (s *chunkService) ListByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]domain.Chunk, error) {
	return s.chunkRepo.ListByDocument(ctx, tenantID, documentID)
}

func (s *chunkService) ListByRun(ctx context.Context, tenantID, runID uuid.UUID) ([]domain.Chunk, error) {
	return s.chunkRepo.ListByRun(ctx, tenantID, runID)
}

func (s *chunkService) ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID, offset, limit int) ([]domain.Chunk, int, error) {
	return s.chunkRepo.ListByCompany(ctx, tenantID, companyID, offset, limit)
}

func (s *chunkService) ExportCSV(ctx context.Context, w io.Writer, tenantID, companyID uuid.UUID) error {
	if _, err := w.Write(csvexport.BOM); err != nil {
		return fmt.Errorf("chunkService.ExportCSV: writing BOM: %w", err)
	}

	writer := csvexport.NewWriter(w)
	if err := writer.WriteHeader(); err != nil {
		return fmt.Errorf("chunkService.ExportCSV: writing header: %w", err)
	}

	offset := 0
	for {
		chunks, total, err := s.chunkRepo.ListByCompany(ctx, tenantID, companyID, offset, exportPageSize)
		if err != nil {
			return fmt.Errorf("chunkService.ExportCSV: listing chunks: %w", err)
		}
		if err := writer.WriteChunks(chunks); err != nil {
			return fmt.Errorf("chunkService.ExportCSV: writing rows: %w", err)
		}

		offset += len(chunks)
		if offset >= total || len(chunks) == 0 {
			break
		}
	}

	writer.Flush()
	return writer.Error()
}
