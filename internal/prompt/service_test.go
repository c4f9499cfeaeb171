package prompt_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizlens/internal/domain"
	"bizlens/internal/prompt"
	"bizlens/mocks"
)

func activeTemplate(body string) *domain.PromptTemplate {
	return &domain.PromptTemplate{
		SourceType: domain.SourceTypeDocument,
		Name:       "custom",
		Body:       body,
		IsActive:   true,
	}
}

func TestServiceActiveTemplate_CachesWithinTTL(t *testing.T) {
	repo := new(mocks.MockTemplateRepo)
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(activeTemplate("v1"), nil).Once()

	svc := prompt.NewService(repo, time.Minute)

	for i := 0; i < 3; i++ {
		body, err := svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
		require.NoError(t, err)
		assert.Equal(t, "v1", body)
	}
	repo.AssertExpectations(t)
}

func TestServiceActiveTemplate_RefetchesAfterTTL(t *testing.T) {
	repo := new(mocks.MockTemplateRepo)
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(activeTemplate("v1"), nil).Once()
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(activeTemplate("v2"), nil).Once()

	svc := prompt.NewService(repo, 10*time.Millisecond)

	body, err := svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, "v1", body)

	time.Sleep(20 * time.Millisecond)

	body, err = svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, "v2", body)
	repo.AssertExpectations(t)
}

func TestServiceActiveTemplate_InvalidateForcesRefetch(t *testing.T) {
	repo := new(mocks.MockTemplateRepo)
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(activeTemplate("v1"), nil).Twice()

	svc := prompt.NewService(repo, time.Minute)

	_, err := svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	require.NoError(t, err)

	svc.Invalidate()

	_, err = svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestServiceActiveTemplate_DefaultWhenStoreEmpty(t *testing.T) {
	repo := new(mocks.MockTemplateRepo)
	repo.On("GetActive", mock.Anything, domain.SourceTypeConnector).
		Return(nil, domain.ErrTemplateNotFound).Once()

	svc := prompt.NewService(repo, time.Minute)

	body, err := svc.ActiveTemplate(context.Background(), domain.SourceTypeConnector)
	require.NoError(t, err)
	assert.Equal(t, prompt.DefaultTemplate(domain.SourceTypeConnector), body)

	// The default is cached too; an empty store is not a query per call.
	_, err = svc.ActiveTemplate(context.Background(), domain.SourceTypeConnector)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestServiceActiveTemplate_ServesStaleOnStoreError(t *testing.T) {
	repo := new(mocks.MockTemplateRepo)
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(activeTemplate("v1"), nil).Once()
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(nil, errors.New("connection refused")).Once()

	svc := prompt.NewService(repo, 10*time.Millisecond)

	body, err := svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, "v1", body)

	time.Sleep(20 * time.Millisecond)

	body, err = svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, "v1", body)
	repo.AssertExpectations(t)
}

func TestServiceActiveTemplate_ErrorWithEmptyCache(t *testing.T) {
	repo := new(mocks.MockTemplateRepo)
	repo.On("GetActive", mock.Anything, domain.SourceTypeDocument).
		Return(nil, errors.New("connection refused")).Once()

	svc := prompt.NewService(repo, time.Minute)

	_, err := svc.ActiveTemplate(context.Background(), domain.SourceTypeDocument)
	assert.Error(t, err)
}
