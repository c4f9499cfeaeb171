package chunking_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizlens/internal/chunking"
	"bizlens/internal/config"
	"bizlens/internal/domain"
	"bizlens/internal/llm"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
	"bizlens/mocks"
)

// stubTemplates serves a fixed template body without touching storage.
type stubTemplates struct {
	body string
}

func (s stubTemplates) ActiveTemplate(_ context.Context, _ domain.SourceType) (string, error) {
	return s.body, nil
}

func chunkJSON(contents ...string) string {
	parts := make([]string, len(contents))
	for i, c := range contents {
		parts[i] = fmt.Sprintf(`{"content":%q,"summary":"s","pillar":"general","chunk_type":"narrative","confidence":0.9}`, c)
	}
	return `{"chunks":[` + strings.Join(parts, ",") + `]}`
}

func completion(text string, tokens int) *port.CompletionOutput {
	return &port.CompletionOutput{
		Text:      text,
		ModelUsed: "test-model",
		Usage:     port.Usage{PromptTokens: tokens, CompletionTokens: tokens, TotalTokens: 2 * tokens},
	}
}

func newDocumentService(t *testing.T, client port.LLMClient, embedder port.Embedder, cfg config.ChunkingConfig) *chunking.Service {
	t.Helper()
	strategy := chunking.NewDocumentStrategy(client, stubTemplates{body: "You analyze business documents."},
		prompt.NewManager(), nil, &cfg)
	return chunking.NewService(
		[]chunking.SourceAdapter{chunking.NewDocumentAdapter()},
		[]chunking.ChunkingStrategy{strategy},
		embedder,
	)
}

func TestServiceProcess_DocumentSinglePage(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Return(completion(chunkJSON("Revenue grew 40% YoY.", "Churn held at 2%."), 100), nil).Once()

	svc := newDocumentService(t, client, nil, config.ChunkingConfig{})
	input := documentInput([]chunking.Page{{PageNumber: 1, Text: "Revenue grew 40% YoY. Churn held at 2%."}})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Records, 2)
	assert.Equal(t, "Revenue grew 40% YoY.", result.Records[0].Content)
	assert.Equal(t, domain.PillarGeneral, result.Records[0].Pillar)
	assert.Equal(t, 1, result.Records[0].PageNumber)
	assert.Equal(t, 0, result.Records[0].ChunkIndex)
	assert.Equal(t, 1, result.Records[1].ChunkIndex)
	assert.Empty(t, result.FailedUnits)
	assert.Equal(t, 1, result.Usage.LLMCalls)
	assert.Equal(t, 200, result.Usage.TotalTokens)
	client.AssertExpectations(t)
}

func TestServiceProcess_UnsupportedSourceType(t *testing.T) {
	svc := chunking.NewService(nil, nil, nil)

	_, err := svc.Process(context.Background(), chunking.ChunkInput{SourceType: "fax"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSourceType)
}

func TestServiceProcess_PartialFailure(t *testing.T) {
	// Three oversized pages, each its own batch. The middle batch returns
	// malformed output with no retry budget left, so it fails terminally
	// while its neighbors' chunks survive.
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 2 ---")
	})).Return(completion("this is not json", 10), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return !strings.Contains(in.User, "--- unit 2 ---")
	})).Return(completion(chunkJSON("a finding"), 10), nil).Twice()

	svc := newDocumentService(t, client, nil, config.ChunkingConfig{TokenBudget: 1, MaxOutputRetries: 0})
	input := documentInput([]chunking.Page{
		{PageNumber: 1, Text: strings.Repeat("alpha ", 20)},
		{PageNumber: 2, Text: strings.Repeat("beta ", 20)},
		{PageNumber: 3, Text: strings.Repeat("gamma ", 20)},
	})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.NotNil(t, result)

	require.Len(t, result.Records, 2)
	assert.Equal(t, 1, result.Records[0].PageNumber)
	assert.Equal(t, 3, result.Records[1].PageNumber)
	assert.Equal(t, []int{2}, result.FailedUnits)
	assert.Equal(t, 3, result.Usage.LLMCalls)
	client.AssertExpectations(t)
}

func TestServiceProcess_PermanentFailureAborts(t *testing.T) {
	permanent := llm.NewPermanentError("claude", errors.New("invalid api key"))

	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 1 ---")
	})).Return(nil, error(permanent)).Once()

	svc := newDocumentService(t, client, nil, config.ChunkingConfig{TokenBudget: 1})
	input := documentInput([]chunking.Page{
		{PageNumber: 1, Text: strings.Repeat("alpha ", 20)},
		{PageNumber: 2, Text: strings.Repeat("beta ", 20)},
	})

	result, err := svc.Process(context.Background(), input)
	require.Error(t, err)
	assert.True(t, llm.IsPermanent(err))
	// Partial result is still returned; nothing completed before the abort.
	require.NotNil(t, result)
	assert.Empty(t, result.Records)
	client.AssertNumberOfCalls(t, "Complete", 1)
}

func TestServiceProcess_CancelMidRunKeepsCompletedBatches(t *testing.T) {
	// Caller cancels between batches. Chunks from batches that finished
	// before the cancel stay in the partial result.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 1 ---")
	})).Run(func(mock.Arguments) { cancel() }).
		Return(completion(chunkJSON("first page finding"), 10), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 2 ---")
	})).Return(nil, context.Canceled).Once()

	svc := newDocumentService(t, client, nil, config.ChunkingConfig{TokenBudget: 1})
	input := documentInput([]chunking.Page{
		{PageNumber: 1, Text: strings.Repeat("alpha ", 20)},
		{PageNumber: 2, Text: strings.Repeat("beta ", 20)},
	})

	result, err := svc.Process(ctx, input)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "first page finding", result.Records[0].Content)
	assert.Equal(t, 1, result.Records[0].PageNumber)
	assert.Equal(t, 1, result.Usage.LLMCalls)
	client.AssertExpectations(t)
}

func TestServiceProcess_MalformedOutputRetriedWithFailureNote(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return !strings.Contains(in.User, "previous response was rejected")
	})).Return(completion("not json at all", 10), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "previous response was rejected")
	})).Return(completion(chunkJSON("recovered finding"), 10), nil).Once()

	svc := newDocumentService(t, client, nil, config.ChunkingConfig{MaxOutputRetries: 2})
	input := documentInput([]chunking.Page{{PageNumber: 1, Text: "quarterly report"}})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Records, 1)
	assert.Equal(t, "recovered finding", result.Records[0].Content)
	assert.Empty(t, result.FailedUnits)
	assert.Equal(t, 2, result.Usage.LLMCalls)
	client.AssertExpectations(t)
}

func TestServiceProcess_ContinuityThreadsAcrossBatches(t *testing.T) {
	var secondPrompt string
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 1 ---")
	})).Return(completion(chunkJSON("first page finding"), 10), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		if strings.Contains(in.User, "--- unit 2 ---") {
			secondPrompt = in.User
			return true
		}
		return false
	})).Return(completion(chunkJSON("second page finding"), 10), nil).Once()

	svc := newDocumentService(t, client, nil, config.ChunkingConfig{TokenBudget: 1})
	input := documentInput([]chunking.Page{
		{PageNumber: 1, Text: strings.Repeat("alpha ", 20)},
		{PageNumber: 2, Text: strings.Repeat("beta ", 20)},
	})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	// The carry-over is the first batch's closing summary.
	assert.Contains(t, secondPrompt, "Content continues from earlier material. Immediately preceding context:\ns\n")
	assert.Equal(t, "s", result.Records[1].PreviousContext)
	client.AssertExpectations(t)
}

func TestServiceProcess_EmbeddingsAttached(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).
		Return(completion(chunkJSON("embedded finding", "failed finding"), 10), nil).Once()

	embedder := new(mocks.MockEmbedder)
	embedder.On("Embed", mock.Anything, "embedded finding").Return([]float64{0.25, 0.5}, nil).Once()
	embedder.On("Embed", mock.Anything, "failed finding").Return(nil, errors.New("embedding api down")).Once()

	svc := newDocumentService(t, client, embedder, config.ChunkingConfig{})
	input := documentInput([]chunking.Page{{PageNumber: 1, Text: "notes"}})

	result, err := svc.Process(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, result.Records, 2)
	assert.JSONEq(t, "[0.25,0.5]", string(result.Records[0].Embedding))
	// Embedding failures degrade to chunks without vectors.
	assert.Nil(t, result.Records[1].Embedding)
	embedder.AssertExpectations(t)
}

func TestServiceProcess_ProgressEventsEmitted(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return strings.Contains(in.User, "--- unit 2 ---")
	})).Return(completion("garbage", 10), nil).Once()
	client.On("Complete", mock.Anything, mock.MatchedBy(func(in port.CompletionInput) bool {
		return !strings.Contains(in.User, "--- unit 2 ---")
	})).Return(completion(chunkJSON("finding"), 10), nil).Once()

	notifier := new(mocks.RecordingNotifier)
	strategy := chunking.NewDocumentStrategy(client, stubTemplates{body: "tmpl"},
		prompt.NewManager(), notifier, &config.ChunkingConfig{TokenBudget: 1, MaxOutputRetries: 0})
	svc := chunking.NewService(
		[]chunking.SourceAdapter{chunking.NewDocumentAdapter()},
		[]chunking.ChunkingStrategy{strategy}, nil)

	input := documentInput([]chunking.Page{
		{PageNumber: 1, Text: strings.Repeat("alpha ", 20)},
		{PageNumber: 2, Text: strings.Repeat("beta ", 20)},
	})

	_, err := svc.Process(context.Background(), input)
	require.NoError(t, err)

	events := notifier.Events()
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].UnitNumber)
	assert.Equal(t, port.UnitSucceeded, events[0].Status)
	assert.Equal(t, 2, events[1].UnitNumber)
	assert.Equal(t, port.UnitFailed, events[1].Status)
}

func TestEncodeFailedUnits(t *testing.T) {
	assert.Nil(t, chunking.EncodeFailedUnits(nil))
	assert.JSONEq(t, "[2,7]", string(chunking.EncodeFailedUnits([]int{2, 7})))
}
