package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bizlens/internal/domain"
)

// MockChunkRepo is a mock implementation of port.ChunkRepository.
type MockChunkRepo struct {
	mock.Mock
}

func (m *MockChunkRepo) InsertBatch(ctx context.Context, chunks []domain.Chunk) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

func (m *MockChunkRepo) ListByDocument(ctx context.Context, tenantID, documentID uuid.UUID) ([]domain.Chunk, error) {
	args := m.Called(ctx, tenantID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockChunkRepo) ListByRun(ctx context.Context, tenantID, runID uuid.UUID) ([]domain.Chunk, error) {
	args := m.Called(ctx, tenantID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Chunk), args.Error(1)
}

func (m *MockChunkRepo) ListByCompany(ctx context.Context, tenantID, companyID uuid.UUID, offset, limit int) ([]domain.Chunk, int, error) {
	args := m.Called(ctx, tenantID, companyID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.Chunk), args.Int(1), args.Error(2)
}

func (m *MockChunkRepo) DeleteByRun(ctx context.Context, tenantID, runID uuid.UUID) error {
	args := m.Called(ctx, tenantID, runID)
	return args.Error(0)
}
