package chunking_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizlens/internal/chunking"
	"bizlens/internal/config"
	"bizlens/internal/llm"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
	"bizlens/mocks"
)

func newConnectorService(t *testing.T, client *mocks.MockLLMClient, cfg config.ChunkingConfig) *chunking.Service {
	t.Helper()
	table := newAggTable(t, config.AggregationConfig{DefaultMaxUnits: 1, DefaultMaxChars: 100000})
	strategy := chunking.NewConnectorStrategy(client, stubTemplates{body: "You analyze business records."},
		prompt.NewManager(), nil, &cfg)
	return chunking.NewService(
		[]chunking.SourceAdapter{chunking.NewConnectorAdapter(table)},
		[]chunking.ChunkingStrategy{strategy},
		nil,
	)
}

func TestConnectorStrategy_OutputOrderFollowsBatchOrder(t *testing.T) {
	client := new(mocks.MockLLMClient)
	for unit := 1; unit <= 4; unit++ {
		marker := fmt.Sprintf("--- unit %d ---", unit)
		client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
			return strings.Contains(in.User, marker)
		})).Return(completion(chunkJSON(fmt.Sprintf("record %d finding", unit)), 10), nil).Once()
	}

	svc := newConnectorService(t, client, config.ChunkingConfig{FanOut: 4})
	input := connectorInput([]map[string]any{
		{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4},
	})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Records, 4)
	for i, rec := range result.Records {
		assert.Equal(t, fmt.Sprintf("record %d finding", i+1), rec.Content)
		assert.Equal(t, 0, rec.PageNumber)
		assert.Equal(t, 0, rec.ChunkIndex)
	}
	assert.Equal(t, 4, result.Usage.LLMCalls)
	client.AssertExpectations(t)
}

func TestConnectorStrategy_FanOutBoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int64

	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			cur := inFlight.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			inFlight.Add(-1)
		}).
		Return(completion(chunkJSON("finding"), 10), nil)

	svc := newConnectorService(t, client, config.ChunkingConfig{FanOut: 2})
	records := make([]map[string]any, 8)
	for i := range records {
		records[i] = map[string]any{"id": i}
	}

	result, err := svc.Process(context.Background(), connectorInput(records))
	require.NoError(t, err)
	assert.Len(t, result.Records, 8)
	assert.LessOrEqual(t, peak.Load(), int64(2))
}

func TestConnectorStrategy_FailedUnitsSorted(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 1 ---") || strings.Contains(in.User, "--- unit 3 ---")
	})).Return(completion("garbage", 10), nil).Twice()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 2 ---")
	})).Return(completion(chunkJSON("record 2 finding"), 10), nil).Once()

	svc := newConnectorService(t, client, config.ChunkingConfig{FanOut: 3, MaxOutputRetries: 0})
	input := connectorInput([]map[string]any{{"id": 1}, {"id": 2}, {"id": 3}})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "record 2 finding", result.Records[0].Content)
	assert.Equal(t, []int{1, 3}, result.FailedUnits)
}

func TestConnectorStrategy_PermanentFailureCancelsRun(t *testing.T) {
	permanent := llm.NewPermanentError("openai", errors.New("model not found"))

	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(nil, error(permanent))

	svc := newConnectorService(t, client, config.ChunkingConfig{FanOut: 1})
	records := make([]map[string]any, 6)
	for i := range records {
		records[i] = map[string]any{"id": i}
	}

	result, err := svc.Process(context.Background(), connectorInput(records))
	require.Error(t, err)
	assert.True(t, llm.IsPermanent(err))
	require.NotNil(t, result)
	assert.Empty(t, result.Records)
}

func TestConnectorStrategy_CancelMidRunKeepsCompletedBatches(t *testing.T) {
	// Caller cancels while batches are in flight. The batch that finished
	// before the cancel keeps its chunks in the partial result.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cancelled := make(chan struct{})
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 1 ---")
	})).Run(func(mock.Arguments) {
		cancel()
		close(cancelled)
	}).Return(completion(chunkJSON("record 1 finding"), 10), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 2 ---")
	})).Run(func(mock.Arguments) {
		<-cancelled
	}).Return(nil, context.Canceled).Once()

	svc := newConnectorService(t, client, config.ChunkingConfig{FanOut: 2})
	input := connectorInput([]map[string]any{{"id": 1}, {"id": 2}})

	result, err := svc.Process(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "record 1 finding", result.Records[0].Content)
	client.AssertExpectations(t)
}

func TestConnectorStrategy_PromptNamesEntityType(t *testing.T) {
	var prompts []string
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			prompts = append(prompts, args.Get(1).(port.CompletionInput).User)
		}).
		Return(completion(chunkJSON("finding"), 10), nil).Once()

	svc := newConnectorService(t, client, config.ChunkingConfig{FanOut: 1})
	_, err := svc.Process(context.Background(), connectorInput([]map[string]any{{"id": 1}}))
	require.NoError(t, err)

	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], `The records below are "invoices" entities from an external business platform.`)
	assert.Contains(t, prompts[0], "- connector: quickbooks\n")
}
