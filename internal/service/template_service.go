package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizlens/internal/domain"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
)

// UpdateTemplateInput is the DTO for replacing the active prompt template of
// a source type.
type UpdateTemplateInput struct {
	SourceType domain.SourceType
	Name       string
	Body       string
	UpdatedBy  uuid.UUID
}

// TemplateService manages editable prompt templates and keeps the pipeline's
// template cache coherent with edits.
type TemplateService interface {
	GetActive(ctx context.Context, sourceType domain.SourceType) (*domain.PromptTemplate, error)
	Update(ctx context.Context, input *UpdateTemplateInput) (*domain.PromptTemplate, error)
}

type templateService struct {
	repo   port.TemplateRepository
	prompt *prompt.Service
}

// NewTemplateService creates a TemplateService.
func NewTemplateService(repo port.TemplateRepository, promptSvc *prompt.Service) TemplateService {
	return &templateService{repo: repo, prompt: promptSvc}
}

// GetActive returns the stored active template, falling back to the built-in
// default when none has been saved yet.
func (s *templateService) GetActive(ctx context.Context, sourceType domain.SourceType) (*domain.PromptTemplate, error) {
	if !domain.SupportedSourceTypes[sourceType] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceType, sourceType)
	}

	tpl, err := s.repo.GetActive(ctx, sourceType)
	if err != nil {
		if errors.Is(err, domain.ErrTemplateNotFound) {
			return &domain.PromptTemplate{
				SourceType: sourceType,
				Name:       "default",
				Body:       prompt.DefaultTemplate(sourceType),
				IsActive:   true,
			}, nil
		}
		return nil, err
	}
	return tpl, nil
}

func (s *templateService) Update(ctx context.Context, input *UpdateTemplateInput) (*domain.PromptTemplate, error) {
	if !domain.SupportedSourceTypes[input.SourceType] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceType, input.SourceType)
	}
	if strings.TrimSpace(input.Body) == "" {
		return nil, fmt.Errorf("%w: template body is empty", domain.ErrInvalidInput)
	}

	name := input.Name
	if name == "" {
		name = fmt.Sprintf("%s template", input.SourceType)
	}

	now := time.Now().UTC()
	tpl := &domain.PromptTemplate{
		ID:         uuid.New(),
		SourceType: input.SourceType,
		Name:       name,
		Body:       input.Body,
		IsActive:   true,
		UpdatedBy:  &input.UpdatedBy,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.SetActive(ctx, tpl); err != nil {
		return nil, err
	}

	// Edits must reach in-flight pipelines no later than their next
	// template read.
	s.prompt.Invalidate()

	return tpl, nil
}
