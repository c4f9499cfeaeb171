package chunking

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"bizlens/internal/domain"
)

// UnitType classifies one atomic piece of source content.
type UnitType string

const (
	UnitPage        UnitType = "page"
	UnitRowBatch    UnitType = "row_batch"
	UnitRecordBatch UnitType = "record_batch"
)

// ContentUnit is one atomic piece of source content submitted to the LLM
// pipeline: a document page, a packed row section, or a connector record
// batch. At least one of the image and text payloads must be non-empty;
// both present means an image with a caption or extracted text.
type ContentUnit struct {
	Type           UnitType
	Number         int // 1-based ordinal, stable across retries
	ImageBase64    string
	ImageMediaType string
	Text           string
	Width          int
	Height         int
	CharEstimate   int
}

// Validate enforces the payload invariant.
func (u ContentUnit) Validate() error {
	if u.ImageBase64 == "" && u.Text == "" {
		return fmt.Errorf("%w: content unit %d has neither image nor text", domain.ErrInvalidInput, u.Number)
	}
	if u.Number < 1 {
		return fmt.Errorf("%w: content unit number %d is not 1-based", domain.ErrInvalidInput, u.Number)
	}
	return nil
}

// NormalizedInput is the adapter's output: ordered content units plus the
// shared context describing their source. Immutable once produced.
type NormalizedInput struct {
	Units         []ContentUnit
	Context       map[string]string
	TenantID      uuid.UUID
	CompanyID     uuid.UUID
	DocumentID    *uuid.UUID
	ConnectorType domain.ConnectorType
	EntityType    string
}

// Page is one extracted document page as submitted by the caller.
type Page struct {
	PageNumber     int    `json:"page_number"`
	Text           string `json:"text,omitempty"`
	ImageBase64    string `json:"image_base64,omitempty"`
	ImageMediaType string `json:"image_media_type,omitempty"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
}

// DocumentPayload is the source-specific payload for a document request.
type DocumentPayload struct {
	DocumentID uuid.UUID `json:"document_id"`
	FileName   string    `json:"file_name"`
	Pages      []Page    `json:"pages"`
}

// ConnectorPayload is the source-specific payload for a connector request.
type ConnectorPayload struct {
	ConnectorType domain.ConnectorType `json:"connector_type"`
	EntityType    string               `json:"entity_type"`
	Records       []map[string]any     `json:"records"`
}

// ChunkInput is one chunking request. Exactly the payload matching
// SourceType must be present; adapters fail fast otherwise.
type ChunkInput struct {
	SourceType domain.SourceType `json:"source_type"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	CompanyID  uuid.UUID         `json:"company_id"`
	RunID      uuid.UUID         `json:"run_id"`
	Document   *DocumentPayload  `json:"document,omitempty"`
	Connector  *ConnectorPayload `json:"connector,omitempty"`
}

// ChunkOutput is one produced chunk before denormalization.
type ChunkOutput struct {
	Content         string
	Summary         string
	Pillar          domain.Pillar
	ChunkType       domain.ChunkType
	PageNumber      int // 0 when not page-bound
	ChunkIndex      int // 0-based, unique within a unit's output
	Confidence      *float64
	Metadata        map[string]any
	PreviousContext string
	Embedding       []float64
}

// Usage aggregates token consumption across the LLM calls of one run.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	LLMCalls         int
}

// AddCall folds one completion call's usage into the aggregate.
func (u *Usage) AddCall(promptTokens, completionTokens, totalTokens int) {
	u.PromptTokens += promptTokens
	u.CompletionTokens += completionTokens
	u.TotalTokens += totalTokens
	u.LLMCalls++
}

// Merge folds another aggregate into this one.
func (u *Usage) Merge(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.LLMCalls += other.LLMCalls
}

// ChunkingResult is the pipeline's response: persistable records, aggregate
// usage, wall-clock timing, and the unit numbers that failed irrecoverably.
type ChunkingResult struct {
	Records     []domain.Chunk
	Usage       Usage
	Elapsed     time.Duration
	FailedUnits []int
}
