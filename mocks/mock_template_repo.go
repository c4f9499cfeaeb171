package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"bizlens/internal/domain"
)

// MockTemplateRepo is a mock implementation of port.TemplateRepository.
type MockTemplateRepo struct {
	mock.Mock
}

func (m *MockTemplateRepo) GetActive(ctx context.Context, sourceType domain.SourceType) (*domain.PromptTemplate, error) {
	args := m.Called(ctx, sourceType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PromptTemplate), args.Error(1)
}

func (m *MockTemplateRepo) SetActive(ctx context.Context, tpl *domain.PromptTemplate) error {
	args := m.Called(ctx, tpl)
	return args.Error(0)
}
