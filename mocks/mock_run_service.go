package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"bizlens/internal/domain"
	"bizlens/internal/service"
)

// MockRunService is a mock implementation of service.RunService.
type MockRunService struct {
	mock.Mock
}

func (m *MockRunService) Enqueue(ctx context.Context, input *service.EnqueueRunInput) (*domain.ChunkRun, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChunkRun), args.Error(1)
}

func (m *MockRunService) GetByID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.ChunkRun, error) {
	args := m.Called(ctx, tenantID, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChunkRun), args.Error(1)
}

func (m *MockRunService) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]domain.ChunkRun, int, error) {
	args := m.Called(ctx, tenantID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.ChunkRun), args.Int(1), args.Error(2)
}

func (m *MockRunService) ProcessRun(ctx context.Context, run *domain.ChunkRun, maxRetries int) {
	m.Called(ctx, run, maxRetries)
}
