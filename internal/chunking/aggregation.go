package chunking

import (
	"fmt"

	"bizlens/internal/config"
	"bizlens/internal/domain"
)

// AggregationPolicy bounds how many raw units one LLM call may cover.
type AggregationPolicy struct {
	MaxUnits int
	MaxChars int
}

// AggregationTable maps (source type, entity type) to a batching policy,
// with a default fallback. Built once at startup; read-only afterwards.
type AggregationTable struct {
	policies map[string]AggregationPolicy
	def      AggregationPolicy
}

// NewAggregationTable builds the table from configuration. Override keys use
// the form "source/entity".
func NewAggregationTable(cfg *config.AggregationConfig) (*AggregationTable, error) {
	def := AggregationPolicy{MaxUnits: cfg.DefaultMaxUnits, MaxChars: cfg.DefaultMaxChars}
	if def.MaxUnits < 1 {
		def.MaxUnits = 1
	}
	if def.MaxChars < 1 {
		def.MaxChars = 8000
	}

	policies := make(map[string]AggregationPolicy, len(cfg.Overrides))
	for key, val := range cfg.Overrides {
		maxUnits, maxChars, err := config.ParseAggregationOverride(val)
		if err != nil {
			return nil, fmt.Errorf("aggregation override %q: %w", key, err)
		}
		if maxUnits < 1 || maxChars < 1 {
			return nil, fmt.Errorf("aggregation override %q: limits must be positive", key)
		}
		policies[key] = AggregationPolicy{MaxUnits: maxUnits, MaxChars: maxChars}
	}

	return &AggregationTable{policies: policies, def: def}, nil
}

// Lookup returns the policy for a (source type, entity type) pair. Unknown
// pairs always resolve to the default entry; Lookup never fails.
func (t *AggregationTable) Lookup(sourceType domain.SourceType, entityType string) AggregationPolicy {
	if p, ok := t.policies[string(sourceType)+"/"+entityType]; ok {
		return p
	}
	return t.def
}

// Default returns the fallback policy.
func (t *AggregationTable) Default() AggregationPolicy {
	return t.def
}
