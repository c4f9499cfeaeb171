package chunking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"bizlens/internal/domain"
	"bizlens/internal/port"
)

// Service routes a chunking request to the adapter and strategy matching
// its source type and assembles the final result.
type Service struct {
	adapters   map[domain.SourceType]SourceAdapter
	strategies map[domain.SourceType]ChunkingStrategy
	embedder   port.Embedder // nil when embedding is disabled
}

// NewService creates a chunking Service from explicit adapter and strategy
// sets. The embedder may be nil.
func NewService(adapters []SourceAdapter, strategies []ChunkingStrategy, embedder port.Embedder) *Service {
	am := make(map[domain.SourceType]SourceAdapter, len(adapters))
	for _, a := range adapters {
		am[a.SourceType()] = a
	}
	sm := make(map[domain.SourceType]ChunkingStrategy, len(strategies))
	for _, s := range strategies {
		sm[s.SourceType()] = s
	}
	return &Service{adapters: am, strategies: sm, embedder: embedder}
}

// Process runs one chunking request end to end: normalize, execute,
// denormalize, assemble. Per-batch failures land in the result's failure
// list; invalid input, unsupported source types, and permanent provider
// failures abort with an error.
//
// When ctx is canceled mid-run, the returned result covers the batches that
// completed before cancellation, alongside the context error.
func (s *Service) Process(ctx context.Context, input ChunkInput) (*ChunkingResult, error) {
	adapter, ok := s.adapters[input.SourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceType, input.SourceType)
	}
	strategy, ok := s.strategies[input.SourceType]
	if !ok {
		return nil, fmt.Errorf("%w: %q has no strategy", domain.ErrUnsupportedSourceType, input.SourceType)
	}

	start := time.Now()

	normalized, err := adapter.Normalize(input)
	if err != nil {
		return nil, err
	}

	execRes, execErr := strategy.Execute(ctx, normalized, input)
	if execRes == nil {
		return nil, execErr
	}

	if s.embedder != nil {
		s.embedOutputs(ctx, execRes.Outputs)
	}

	result := &ChunkingResult{
		Records:     adapter.Denormalize(execRes.Outputs, input),
		Usage:       execRes.Usage,
		FailedUnits: execRes.FailedUnits,
		Elapsed:     time.Since(start),
	}
	return result, execErr
}

// embedOutputs attaches embeddings to produced chunks. Embedding failures
// degrade to chunks without vectors; they never fail the run.
func (s *Service) embedOutputs(ctx context.Context, outputs []ChunkOutput) {
	for i := range outputs {
		if ctx.Err() != nil {
			return
		}
		vec, err := s.embedder.Embed(ctx, outputs[i].Content)
		if err != nil {
			log.Printf("chunking.Service: embedding chunk %d failed: %v", i, err)
			continue
		}
		outputs[i].Embedding = vec
	}
}

// EncodeFailedUnits serializes a failure list for run persistence.
func EncodeFailedUnits(units []int) json.RawMessage {
	if len(units) == 0 {
		return nil
	}
	raw, err := json.Marshal(units)
	if err != nil {
		return nil
	}
	return raw
}
