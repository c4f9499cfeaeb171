package chunking

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"bizlens/internal/domain"
	"bizlens/internal/llm"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
)

// TemplateSource serves the active prompt template for a source type.
// Implemented by prompt.Service.
type TemplateSource interface {
	ActiveTemplate(ctx context.Context, sourceType domain.SourceType) (string, error)
}

// ExecutionResult is a strategy's output: produced chunks, aggregate usage,
// and the unit numbers of batches that failed terminally.
type ExecutionResult struct {
	Outputs     []ChunkOutput
	Usage       Usage
	FailedUnits []int
}

// ChunkingStrategy owns content-unit iteration order, per-batch LLM
// invocation, retry policy, and usage accounting for one source family.
//
// Execute returns a non-nil partial result alongside the error when a run is
// cut short (cancellation, permanent provider failure): batches already
// completed remain valid.
type ChunkingStrategy interface {
	SourceType() domain.SourceType
	Execute(ctx context.Context, in *NormalizedInput, input ChunkInput) (*ExecutionResult, error)
}

// batchState is the per-batch processing state machine. Terminal states are
// batchSucceeded and batchFailedTerminal.
type batchState string

const (
	batchPending         batchState = "pending"
	batchInFlight        batchState = "in_flight"
	batchSucceeded       batchState = "succeeded"
	batchFailedRetryable batchState = "failed_retryable"
	batchFailedTerminal  batchState = "failed_terminal"
)

// unitBatch groups the content units submitted in one LLM call.
type unitBatch struct {
	units    []ContentUnit
	state    batchState
	attempts int
}

func (b *unitBatch) unitNumbers() []int {
	nums := make([]int, len(b.units))
	for i, u := range b.units {
		nums[i] = u.Number
	}
	return nums
}

// leadUnit returns the batch's first unit number, used for progress events.
func (b *unitBatch) leadUnit() int {
	if len(b.units) == 0 {
		return 0
	}
	return b.units[0].Number
}

// executor holds the collaborators both strategies share.
type executor struct {
	client    port.LLMClient
	templates TemplateSource
	manager   *prompt.Manager
	notifier  port.ProgressNotifier

	maxRetries  int
	callTimeout time.Duration
}

func newExecutor(client port.LLMClient, templates TemplateSource, manager *prompt.Manager,
	notifier port.ProgressNotifier, maxRetries int, callTimeout time.Duration) executor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	return executor{
		client:      client,
		templates:   templates,
		manager:     manager,
		notifier:    notifier,
		maxRetries:  maxRetries,
		callTimeout: callTimeout,
	}
}

// processBatch drives one batch through the state machine. It returns the
// batch's chunk outputs and the usage consumed across all attempts. A nil
// error with b.state == batchFailedTerminal means the retry budget is
// exhausted; a non-nil error means the whole run must stop.
func (e *executor) processBatch(ctx context.Context, b *unitBatch, in *NormalizedInput,
	input ChunkInput, template, priorContext string) ([]ChunkOutput, Usage, error) {

	var usage Usage
	failureNote := ""

	for {
		b.state = batchInFlight
		b.attempts++

		p := e.manager.Build(prompt.BuildInput{
			Template:        template,
			SourceType:      input.SourceType,
			EntityType:      in.EntityType,
			Context:         in.Context,
			Units:           toPromptUnits(b.units),
			PreviousContext: priorContext,
			FailureNote:     failureNote,
		})

		callCtx, cancel := context.WithTimeout(ctx, e.callTimeout)
		out, err := e.client.Complete(callCtx, port.CompletionInput{
			System: p.System,
			User:   p.User,
			Images: p.Images,
		})
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				return nil, usage, ctx.Err()
			}
			if llm.IsPermanent(err) {
				b.state = batchFailedTerminal
				return nil, usage, err
			}
			// Transient: retry within the budget, waiting out any backoff hint.
			log.Printf("chunking: batch at unit %d attempt %d transient failure: %v", b.leadUnit(), b.attempts, err)
			failureNote = ""
			if b.attempts > e.maxRetries {
				b.state = batchFailedTerminal
				return nil, usage, nil
			}
			b.state = batchFailedRetryable
			if wait := retryDelay(err); wait > 0 {
				select {
				case <-ctx.Done():
					return nil, usage, ctx.Err()
				case <-time.After(wait):
				}
			}
			continue
		}

		usage.AddCall(out.Usage.PromptTokens, out.Usage.CompletionTokens, out.Usage.TotalTokens)

		outputs, parseErr := parseChunkResponse(out.Text)
		if parseErr != nil {
			log.Printf("chunking: batch at unit %d attempt %d malformed output: %v", b.leadUnit(), b.attempts, parseErr)
			if b.attempts > e.maxRetries {
				b.state = batchFailedTerminal
				return nil, usage, nil
			}
			b.state = batchFailedRetryable
			failureNote = parseErr.Error()
			continue
		}

		b.state = batchSucceeded
		return outputs, usage, nil
	}
}

// retryDelay extracts the backoff hint from a transient error, capped so a
// long Retry-After cannot stall a run indefinitely.
func retryDelay(err error) time.Duration {
	te, ok := llm.AsTransient(err)
	if !ok {
		return 0
	}
	d := te.RetryAfter
	if d > 30*time.Second {
		d = 30 * time.Second
	}
	return d
}

func (e *executor) notify(ctx context.Context, runID uuid.UUID, unitNumber int, status port.UnitStatus) {
	if e.notifier == nil {
		return
	}
	e.notifier.NotifyUnit(ctx, port.ProgressEvent{
		RunID:      runID,
		UnitNumber: unitNumber,
		Status:     status,
	})
}

func toPromptUnits(units []ContentUnit) []prompt.Unit {
	out := make([]prompt.Unit, len(units))
	for i, u := range units {
		out[i] = prompt.Unit{
			Number:         u.Number,
			Text:           u.Text,
			ImageBase64:    u.ImageBase64,
			ImageMediaType: u.ImageMediaType,
		}
	}
	return out
}

// rawChunk mirrors the response schema the prompt directive mandates.
type rawChunk struct {
	Content    string         `json:"content"`
	Summary    string         `json:"summary"`
	Pillar     string         `json:"pillar"`
	ChunkType  string         `json:"chunk_type"`
	Confidence *float64       `json:"confidence,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// parseChunkResponse validates one completion against the response schema.
// Any violation is a malformed-output failure: the caller retries with a
// failure note rather than persisting bad labels.
func parseChunkResponse(text string) ([]ChunkOutput, error) {
	var parsed struct {
		Chunks []rawChunk `json:"chunks"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &parsed); err != nil {
		return nil, fmt.Errorf("response is not the required JSON object: %v", err)
	}
	if len(parsed.Chunks) == 0 {
		return nil, fmt.Errorf("response contains no chunks")
	}

	outputs := make([]ChunkOutput, 0, len(parsed.Chunks))
	for i, rc := range parsed.Chunks {
		if strings.TrimSpace(rc.Content) == "" {
			return nil, fmt.Errorf("chunk %d has empty content", i)
		}
		pillar := domain.Pillar(rc.Pillar)
		if !domain.ValidPillars[pillar] {
			return nil, fmt.Errorf("chunk %d has unknown pillar %q", i, rc.Pillar)
		}
		if rc.Confidence != nil && (*rc.Confidence < 0 || *rc.Confidence > 1) {
			return nil, fmt.Errorf("chunk %d confidence %v outside [0,1]", i, *rc.Confidence)
		}
		chunkType := domain.ChunkType(rc.ChunkType)
		if !domain.ValidChunkTypes[chunkType] {
			chunkType = domain.ChunkTypeNarrative
		}
		outputs = append(outputs, ChunkOutput{
			Content:    rc.Content,
			Summary:    rc.Summary,
			Pillar:     pillar,
			ChunkType:  chunkType,
			Confidence: rc.Confidence,
			Metadata:   rc.Metadata,
		})
	}
	return outputs, nil
}

// continuationContext derives the short carry-over text threaded into the
// next batch's prompt from the latest produced chunk.
func continuationContext(outputs []ChunkOutput) string {
	if len(outputs) == 0 {
		return ""
	}
	last := outputs[len(outputs)-1]
	if last.Summary != "" {
		return last.Summary
	}
	const maxTail = 240
	if len(last.Content) <= maxTail {
		return last.Content
	}
	return last.Content[len(last.Content)-maxTail:]
}
