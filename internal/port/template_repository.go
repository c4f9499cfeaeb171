package port

import (
	"context"

	"bizlens/internal/domain"
)

// TemplateRepository stores editable prompt templates, one active per source type.
type TemplateRepository interface {
	// GetActive returns the active template for a source type, or
	// domain.ErrTemplateNotFound when none exists.
	GetActive(ctx context.Context, sourceType domain.SourceType) (*domain.PromptTemplate, error)
	// SetActive upserts the template body for a source type and marks it active.
	SetActive(ctx context.Context, tpl *domain.PromptTemplate) error
}
