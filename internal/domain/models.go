package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Chunk is one persisted unit of LLM-labeled content derived from a
// document page or a connector record batch.
type Chunk struct {
	ID              uuid.UUID       `db:"id" json:"id"`
	TenantID        uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	CompanyID       uuid.UUID       `db:"company_id" json:"company_id"`
	RunID           uuid.UUID       `db:"run_id" json:"run_id"`
	SourceType      SourceType      `db:"source_type" json:"source_type"`
	DocumentID      *uuid.UUID      `db:"document_id" json:"document_id,omitempty"`
	ConnectorType   ConnectorType   `db:"connector_type" json:"connector_type,omitempty"`
	EntityType      string          `db:"entity_type" json:"entity_type,omitempty"`
	Content         string          `db:"content" json:"content"`
	Summary         string          `db:"summary" json:"summary"`
	Pillar          Pillar          `db:"pillar" json:"pillar"`
	ChunkType       ChunkType       `db:"chunk_type" json:"chunk_type"`
	PageNumber      int             `db:"page_number" json:"page_number"`
	ChunkIndex      int             `db:"chunk_index" json:"chunk_index"`
	ConfidenceScore *float64        `db:"confidence_score" json:"confidence_score,omitempty"`
	Metadata        json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	PreviousContext string          `db:"previous_context" json:"previous_context,omitempty"`
	Embedding       json.RawMessage `db:"embedding" json:"embedding,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
}

// ChunkRun tracks one chunking request through the queue: what source it
// covers, where its payload bundle lives, and the usage it consumed.
type ChunkRun struct {
	ID               uuid.UUID       `db:"id" json:"id"`
	TenantID         uuid.UUID       `db:"tenant_id" json:"tenant_id"`
	CompanyID        uuid.UUID       `db:"company_id" json:"company_id"`
	SourceType       SourceType      `db:"source_type" json:"source_type"`
	DocumentID       *uuid.UUID      `db:"document_id" json:"document_id,omitempty"`
	FileName         string          `db:"file_name" json:"file_name,omitempty"`
	ConnectorType    ConnectorType   `db:"connector_type" json:"connector_type,omitempty"`
	EntityType       string          `db:"entity_type" json:"entity_type,omitempty"`
	BundleBucket     string          `db:"bundle_bucket" json:"-"`
	BundleKey        string          `db:"bundle_key" json:"-"`
	Status           RunStatus       `db:"status" json:"status"`
	Attempts         int             `db:"attempts" json:"attempts"`
	ChunkCount       int             `db:"chunk_count" json:"chunk_count"`
	PromptTokens     int             `db:"prompt_tokens" json:"prompt_tokens"`
	CompletionTokens int             `db:"completion_tokens" json:"completion_tokens"`
	TotalTokens      int             `db:"total_tokens" json:"total_tokens"`
	LLMCalls         int             `db:"llm_calls" json:"llm_calls"`
	FailedUnits      json.RawMessage `db:"failed_units" json:"failed_units,omitempty"`
	ElapsedMs        int64           `db:"elapsed_ms" json:"elapsed_ms"`
	Error            string          `db:"error" json:"error,omitempty"`
	RequestedBy      uuid.UUID       `db:"requested_by" json:"requested_by"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
	CompletedAt      *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}

// PromptTemplate is an editable extraction prompt, one active per source type.
type PromptTemplate struct {
	ID         uuid.UUID  `db:"id" json:"id"`
	SourceType SourceType `db:"source_type" json:"source_type"`
	Name       string     `db:"name" json:"name"`
	Body       string     `db:"body" json:"body"`
	IsActive   bool       `db:"is_active" json:"is_active"`
	UpdatedBy  *uuid.UUID `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time  `db:"updated_at" json:"updated_at"`
}
