package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bizlens/internal/domain"
)

// MockRunRepo is a mock implementation of port.RunRepository.
type MockRunRepo struct {
	mock.Mock
}

func (m *MockRunRepo) Create(ctx context.Context, run *domain.ChunkRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) GetByID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.ChunkRun, error) {
	args := m.Called(ctx, tenantID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChunkRun), args.Error(1)
}

func (m *MockRunRepo) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]domain.ChunkRun, int, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ChunkRun), args.Int(1), args.Error(2)
}

func (m *MockRunRepo) ClaimQueued(ctx context.Context, limit int) ([]domain.ChunkRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ChunkRun), args.Error(1)
}

func (m *MockRunRepo) MarkCompleted(ctx context.Context, run *domain.ChunkRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}

func (m *MockRunRepo) MarkFailed(ctx context.Context, runID uuid.UUID, reason string, requeue bool) error {
	args := m.Called(ctx, runID, reason, requeue)
	return args.Error(0)
}
