package chunking

import "bizlens/internal/domain"

// SourceAdapter translates a source-specific payload into the normalized
// input model and produced chunks back into persistable records.
//
// Normalize is deterministic and does no I/O beyond input parsing; it fails
// with a domain.ErrInvalidInput-wrapped error when required payload fields
// are missing. Denormalize is a pure transform: it preserves chunk ordering
// and maps pillar and chunk type values through unchanged.
type SourceAdapter interface {
	SourceType() domain.SourceType
	Normalize(input ChunkInput) (*NormalizedInput, error)
	Denormalize(outputs []ChunkOutput, input ChunkInput) []domain.Chunk
}
