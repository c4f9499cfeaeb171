package chunking

import (
	"context"
	"sort"
	"sync"
	"time"

	"bizlens/internal/config"
	"bizlens/internal/domain"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
)

// ConnectorStrategy processes connector record batches. Batches carry no
// narrative continuity, so they dispatch concurrently with a bounded fan-out
// to respect upstream rate limits. Output order still follows batch order.
type ConnectorStrategy struct {
	exec   executor
	fanOut int
}

// NewConnectorStrategy creates a ConnectorStrategy.
func NewConnectorStrategy(client port.LLMClient, templates TemplateSource, manager *prompt.Manager,
	notifier port.ProgressNotifier, cfg *config.ChunkingConfig) *ConnectorStrategy {
	fanOut := cfg.FanOut
	if fanOut < 1 {
		fanOut = 4
	}
	return &ConnectorStrategy{
		exec: newExecutor(client, templates, manager, notifier,
			cfg.MaxOutputRetries, time.Duration(cfg.CallTimeoutSecs)*time.Second),
		fanOut: fanOut,
	}
}

func (s *ConnectorStrategy) SourceType() domain.SourceType {
	return domain.SourceTypeConnector
}

func (s *ConnectorStrategy) Execute(ctx context.Context, in *NormalizedInput, input ChunkInput) (*ExecutionResult, error) {
	template, err := s.exec.templates.ActiveTemplate(ctx, domain.SourceTypeConnector)
	if err != nil {
		return nil, err
	}

	batches := make([]*unitBatch, len(in.Units))
	for i, u := range in.Units {
		batches[i] = &unitBatch{units: []ContentUnit{u}, state: batchPending}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	perBatch := make([][]ChunkOutput, len(batches))
	res := &ExecutionResult{}
	var mu sync.Mutex
	var fatalErr error

	sem := make(chan struct{}, s.fanOut)
	var wg sync.WaitGroup

	for i, b := range batches {
		if runCtx.Err() != nil {
			break
		}
		sem <- struct{}{} // acquire
		wg.Add(1)
		go func(i int, b *unitBatch) {
			defer wg.Done()
			defer func() { <-sem }() // release

			outputs, usage, err := s.exec.processBatch(runCtx, b, in, input, template, "")

			mu.Lock()
			defer mu.Unlock()
			res.Usage.Merge(usage)
			if err != nil {
				// First fatal error wins; stop dispatching the rest.
				if fatalErr == nil {
					fatalErr = err
					cancel()
				}
				return
			}
			if b.state == batchFailedTerminal {
				res.FailedUnits = append(res.FailedUnits, b.unitNumbers()...)
				s.exec.notify(ctx, input.RunID, b.leadUnit(), port.UnitFailed)
				return
			}
			for j := range outputs {
				outputs[j].PageNumber = 0
				outputs[j].ChunkIndex = j
			}
			perBatch[i] = outputs
			s.exec.notify(ctx, input.RunID, b.leadUnit(), port.UnitSucceeded)
		}(i, b)
	}
	wg.Wait()

	for _, outputs := range perBatch {
		res.Outputs = append(res.Outputs, outputs...)
	}
	sort.Ints(res.FailedUnits)

	if fatalErr != nil {
		return res, fatalErr
	}
	return res, nil
}
