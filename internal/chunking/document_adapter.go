package chunking

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"bizlens/internal/domain"
)

// DocumentAdapter normalizes extracted document pages: one content unit per
// page, in page order.
type DocumentAdapter struct{}

// NewDocumentAdapter creates a DocumentAdapter.
func NewDocumentAdapter() *DocumentAdapter {
	return &DocumentAdapter{}
}

func (a *DocumentAdapter) SourceType() domain.SourceType {
	return domain.SourceTypeDocument
}

func (a *DocumentAdapter) Normalize(input ChunkInput) (*NormalizedInput, error) {
	doc := input.Document
	if doc == nil {
		return nil, fmt.Errorf("%w: document payload missing", domain.ErrInvalidInput)
	}
	if doc.DocumentID == uuid.Nil {
		return nil, fmt.Errorf("%w: document id missing", domain.ErrInvalidInput)
	}
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%w: document has no pages", domain.ErrInvalidInput)
	}

	units := make([]ContentUnit, 0, len(doc.Pages))
	for i, page := range doc.Pages {
		number := page.PageNumber
		if number == 0 {
			// Sources that omit page numbers fall back to position.
			number = i + 1
		}
		unit := ContentUnit{
			Type:           UnitPage,
			Number:         number,
			ImageBase64:    page.ImageBase64,
			ImageMediaType: page.ImageMediaType,
			Text:           page.Text,
			Width:          page.Width,
			Height:         page.Height,
			CharEstimate:   len(page.Text),
		}
		if err := unit.Validate(); err != nil {
			return nil, fmt.Errorf("page %d: %w", number, err)
		}
		units = append(units, unit)
	}

	docID := doc.DocumentID
	return &NormalizedInput{
		Units: units,
		Context: map[string]string{
			"file_name":   doc.FileName,
			"total_units": strconv.Itoa(len(units)),
		},
		TenantID:   input.TenantID,
		CompanyID:  input.CompanyID,
		DocumentID: &docID,
	}, nil
}

func (a *DocumentAdapter) Denormalize(outputs []ChunkOutput, input ChunkInput) []domain.Chunk {
	now := time.Now().UTC()
	records := make([]domain.Chunk, 0, len(outputs))
	for _, out := range outputs {
		var docID *uuid.UUID
		if input.Document != nil {
			id := input.Document.DocumentID
			docID = &id
		}
		records = append(records, domain.Chunk{
			ID:              uuid.New(),
			TenantID:        input.TenantID,
			CompanyID:       input.CompanyID,
			RunID:           input.RunID,
			SourceType:      domain.SourceTypeDocument,
			DocumentID:      docID,
			Content:         out.Content,
			Summary:         out.Summary,
			Pillar:          out.Pillar,
			ChunkType:       out.ChunkType,
			PageNumber:      out.PageNumber,
			ChunkIndex:      out.ChunkIndex,
			ConfidenceScore: out.Confidence,
			Metadata:        marshalMetadata(out.Metadata),
			PreviousContext: out.PreviousContext,
			Embedding:       marshalEmbedding(out.Embedding),
			CreatedAt:       now,
		})
	}
	return records
}

func marshalMetadata(m map[string]any) json.RawMessage {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return raw
}

func marshalEmbedding(v []float64) json.RawMessage {
	if len(v) == 0 {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
