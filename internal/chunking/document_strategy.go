package chunking

import (
	"context"
	"time"

	"bizlens/internal/config"
	"bizlens/internal/domain"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
)

// DocumentStrategy processes document pages in page order. Pages render as
// one LLM call each, except runs of small text-only pages, which are packed
// together under the token budget. Batches execute sequentially so the
// previous batch's closing context threads into the next prompt.
type DocumentStrategy struct {
	exec        executor
	tokenBudget int
}

// NewDocumentStrategy creates a DocumentStrategy.
func NewDocumentStrategy(client port.LLMClient, templates TemplateSource, manager *prompt.Manager,
	notifier port.ProgressNotifier, cfg *config.ChunkingConfig) *DocumentStrategy {
	tokenBudget := cfg.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = 2000
	}
	return &DocumentStrategy{
		exec: newExecutor(client, templates, manager, notifier,
			cfg.MaxOutputRetries, time.Duration(cfg.CallTimeoutSecs)*time.Second),
		tokenBudget: tokenBudget,
	}
}

func (s *DocumentStrategy) SourceType() domain.SourceType {
	return domain.SourceTypeDocument
}

func (s *DocumentStrategy) Execute(ctx context.Context, in *NormalizedInput, input ChunkInput) (*ExecutionResult, error) {
	template, err := s.exec.templates.ActiveTemplate(ctx, domain.SourceTypeDocument)
	if err != nil {
		return nil, err
	}

	batches := packDocumentBatches(in.Units, s.tokenBudget)
	res := &ExecutionResult{}
	prior := ""

	for _, b := range batches {
		outputs, usage, err := s.exec.processBatch(ctx, b, in, input, template, prior)
		res.Usage.Merge(usage)
		if err != nil {
			// Cancellation or a permanent provider failure: completed
			// batches stay in the partial result.
			return res, err
		}

		if b.state == batchFailedTerminal {
			res.FailedUnits = append(res.FailedUnits, b.unitNumbers()...)
			s.exec.notify(ctx, input.RunID, b.leadUnit(), port.UnitFailed)
			continue
		}

		assignContinuity(outputs, prior)
		lead := b.leadUnit()
		for i := range outputs {
			outputs[i].PageNumber = lead
			outputs[i].ChunkIndex = i
		}
		prior = continuationContext(outputs)
		res.Outputs = append(res.Outputs, outputs...)
		s.exec.notify(ctx, input.RunID, lead, port.UnitSucceeded)
	}

	return res, nil
}

// packDocumentBatches groups pages into batches: image pages one per call,
// consecutive text-only pages packed greedily under the token budget. A
// single text page over the budget still forms its own batch.
func packDocumentBatches(units []ContentUnit, tokenBudget int) []*unitBatch {
	var batches []*unitBatch
	var cur []ContentUnit
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		batches = append(batches, &unitBatch{units: cur, state: batchPending})
		cur = nil
		curTokens = 0
	}

	for _, u := range units {
		if u.ImageBase64 != "" {
			flush()
			batches = append(batches, &unitBatch{units: []ContentUnit{u}, state: batchPending})
			continue
		}
		t := estimateTokens(u.Text)
		if len(cur) > 0 && curTokens+t > tokenBudget {
			flush()
		}
		cur = append(cur, u)
		curTokens += t
	}
	flush()

	return batches
}

// estimateTokens approximates token count as chars/4 plus one per unit.
func estimateTokens(text string) int {
	return len(text)/4 + 1
}

// assignContinuity threads continuation text through a batch's chunks: the
// first chunk carries the previous batch's context, later chunks carry
// their predecessor's.
func assignContinuity(outputs []ChunkOutput, prior string) {
	for i := range outputs {
		if i == 0 {
			outputs[i].PreviousContext = prior
			continue
		}
		outputs[i].PreviousContext = continuationContext(outputs[:i])
	}
}
