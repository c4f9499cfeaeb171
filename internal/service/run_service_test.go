package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"bizlens/internal/chunking"
	"bizlens/internal/config"
	"bizlens/internal/domain"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
	"bizlens/internal/service"
	"bizlens/mocks"
)

type runServiceMocks struct {
	runRepo   *mocks.MockRunRepo
	chunkRepo *mocks.MockChunkRepo
	storage   *mocks.MockObjectStorage
	email     *mocks.MockEmailSender
}

type fixedTemplates struct{}

func (fixedTemplates) ActiveTemplate(_ context.Context, _ domain.SourceType) (string, error) {
	return "You analyze business documents.", nil
}

func newRunServiceUnderTest(t *testing.T, client port.LLMClient, cfg service.RunServiceConfig) (service.RunService, *runServiceMocks) {
	t.Helper()
	m := &runServiceMocks{
		runRepo:   new(mocks.MockRunRepo),
		chunkRepo: new(mocks.MockChunkRepo),
		storage:   new(mocks.MockObjectStorage),
		email:     new(mocks.MockEmailSender),
	}

	strategy := chunking.NewDocumentStrategy(client, fixedTemplates{}, prompt.NewManager(), nil,
		&config.ChunkingConfig{})
	pipeline := chunking.NewService(
		[]chunking.SourceAdapter{chunking.NewDocumentAdapter()},
		[]chunking.ChunkingStrategy{strategy}, nil)

	svc := service.NewRunService(m.runRepo, m.chunkRepo, m.storage, pipeline, m.email, cfg)
	return svc, m
}

func enqueueDocumentInput(pages []chunking.Page) *service.EnqueueRunInput {
	return &service.EnqueueRunInput{
		TenantID:   uuid.New(),
		CompanyID:  uuid.New(),
		SourceType: domain.SourceTypeDocument,
		Document: &chunking.DocumentPayload{
			DocumentID: uuid.New(),
			FileName:   "board-deck.pdf",
			Pages:      pages,
		},
		RequestedBy: uuid.New(),
	}
}

func TestRunServiceEnqueue_Document(t *testing.T) {
	svc, m := newRunServiceUnderTest(t, nil, service.RunServiceConfig{Bucket: "bundles", MaxBundleSizeMB: 100})
	input := enqueueDocumentInput([]chunking.Page{{PageNumber: 1, Text: "hello"}})

	var uploadedKey string
	m.storage.On("Upload", mock.Anything, mock.MatchedBy(func(in port.UploadInput) bool {
		uploadedKey = in.Key
		return in.Bucket == "bundles" && in.ContentType == "application/json"
	})).Return(&port.UploadOutput{Location: "s3://bundles/x"}, nil).Once()
	m.runRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.ChunkRun")).Return(nil).Once()

	run, err := svc.Enqueue(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusQueued, run.Status)
	assert.Equal(t, input.TenantID, run.TenantID)
	assert.Equal(t, "board-deck.pdf", run.FileName)
	require.NotNil(t, run.DocumentID)
	assert.Equal(t, input.Document.DocumentID, *run.DocumentID)
	assert.Equal(t, "bundles", run.BundleBucket)
	assert.Equal(t, uploadedKey, run.BundleKey)
	assert.True(t, strings.HasPrefix(run.BundleKey, "bundles/"+input.TenantID.String()+"/"))
	assert.True(t, strings.HasSuffix(run.BundleKey, run.ID.String()+".json"))

	m.storage.AssertExpectations(t)
	m.runRepo.AssertExpectations(t)
}

func TestRunServiceEnqueue_UnsupportedSourceType(t *testing.T) {
	svc, m := newRunServiceUnderTest(t, nil, service.RunServiceConfig{Bucket: "bundles"})

	_, err := svc.Enqueue(context.Background(), &service.EnqueueRunInput{SourceType: "fax"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedSourceType)
	m.storage.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything)
}

func TestRunServiceEnqueue_BundleTooLarge(t *testing.T) {
	svc, _ := newRunServiceUnderTest(t, nil, service.RunServiceConfig{Bucket: "bundles", MaxBundleSizeMB: 1})
	input := enqueueDocumentInput([]chunking.Page{{PageNumber: 1, Text: strings.Repeat("x", 2*1024*1024)}})

	_, err := svc.Enqueue(context.Background(), input)
	assert.ErrorIs(t, err, domain.ErrBundleTooLarge)
}

func TestRunServiceEnqueue_CreateFailureCleansUpBundle(t *testing.T) {
	svc, m := newRunServiceUnderTest(t, nil, service.RunServiceConfig{Bucket: "bundles", MaxBundleSizeMB: 100})
	input := enqueueDocumentInput([]chunking.Page{{PageNumber: 1, Text: "hello"}})

	m.storage.On("Upload", mock.Anything, mock.Anything).Return(&port.UploadOutput{}, nil).Once()
	m.runRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed")).Once()
	m.storage.On("Delete", mock.Anything, "bundles", mock.AnythingOfType("string")).Return(nil).Once()

	_, err := svc.Enqueue(context.Background(), input)
	require.Error(t, err)
	m.storage.AssertExpectations(t)
}

func bundleBody(t *testing.T, input chunking.ChunkInput) io.ReadCloser {
	t.Helper()
	raw, err := json.Marshal(input)
	require.NoError(t, err)
	return io.NopCloser(bytes.NewReader(raw))
}

func TestRunServiceProcessRun_Completes(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(&port.CompletionOutput{
		Text:  `{"chunks":[{"content":"ARR grew 40%","summary":"growth","pillar":"financial_health","chunk_type":"metric","confidence":0.9}]}`,
		Usage: port.Usage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70},
	}, nil).Once()

	svc, m := newRunServiceUnderTest(t, client, service.RunServiceConfig{
		Bucket: "bundles", NotifyEmail: "ops@example.com", NotifyName: "Ops",
	})

	run := &domain.ChunkRun{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		CompanyID:    uuid.New(),
		SourceType:   domain.SourceTypeDocument,
		FileName:     "board-deck.pdf",
		BundleBucket: "bundles",
		BundleKey:    "bundles/t/r.json",
		Status:       domain.RunStatusProcessing,
		Attempts:     1,
	}
	bundle := chunking.ChunkInput{
		SourceType: domain.SourceTypeDocument,
		TenantID:   run.TenantID,
		CompanyID:  run.CompanyID,
		RunID:      run.ID,
		Document: &chunking.DocumentPayload{
			DocumentID: uuid.New(),
			FileName:   "board-deck.pdf",
			Pages:      []chunking.Page{{PageNumber: 1, Text: "ARR grew 40% this quarter."}},
		},
	}

	m.storage.On("Download", mock.Anything, "bundles", "bundles/t/r.json").
		Return(bundleBody(t, bundle), nil).Once()
	m.chunkRepo.On("DeleteByRun", mock.Anything, run.TenantID, run.ID).Return(nil).Once()
	m.chunkRepo.On("InsertBatch", mock.Anything, mock.MatchedBy(func(chunks []domain.Chunk) bool {
		return len(chunks) == 1 && chunks[0].Content == "ARR grew 40%"
	})).Return(nil).Once()
	m.runRepo.On("MarkCompleted", mock.Anything, mock.MatchedBy(func(r *domain.ChunkRun) bool {
		return r.Status == domain.RunStatusCompleted && r.ChunkCount == 1 &&
			r.TotalTokens == 70 && r.LLMCalls == 1 && r.Error == ""
	})).Return(nil).Once()
	m.email.On("SendRunSummary", mock.Anything, "ops@example.com", "Ops",
		mock.MatchedBy(func(s port.RunSummary) bool {
			return !s.Failed && s.ChunkCount == 1 && s.TotalUnits == 1 && s.SourceName == "board-deck.pdf"
		})).Return(nil).Once()

	svc.ProcessRun(context.Background(), run, 3)

	m.storage.AssertExpectations(t)
	m.chunkRepo.AssertExpectations(t)
	m.runRepo.AssertExpectations(t)
	m.email.AssertExpectations(t)
}

func TestRunServiceProcessRun_DownloadFailureRequeues(t *testing.T) {
	svc, m := newRunServiceUnderTest(t, nil, service.RunServiceConfig{Bucket: "bundles"})

	run := &domain.ChunkRun{ID: uuid.New(), BundleBucket: "bundles", BundleKey: "k", Attempts: 1}
	m.storage.On("Download", mock.Anything, "bundles", "k").
		Return(nil, errors.New("no such key")).Once()
	m.runRepo.On("MarkFailed", mock.Anything, run.ID, mock.AnythingOfType("string"), true).
		Return(nil).Once()

	svc.ProcessRun(context.Background(), run, 3)
	m.runRepo.AssertExpectations(t)
}

func TestRunServiceProcessRun_FinalFailureSendsSummary(t *testing.T) {
	svc, m := newRunServiceUnderTest(t, nil, service.RunServiceConfig{
		Bucket: "bundles", NotifyEmail: "ops@example.com",
	})

	run := &domain.ChunkRun{
		ID: uuid.New(), FileName: "board-deck.pdf",
		BundleBucket: "bundles", BundleKey: "k", Attempts: 3,
	}
	m.storage.On("Download", mock.Anything, "bundles", "k").
		Return(nil, errors.New("no such key")).Once()
	m.runRepo.On("MarkFailed", mock.Anything, run.ID, mock.AnythingOfType("string"), false).
		Return(nil).Once()
	m.email.On("SendRunSummary", mock.Anything, "ops@example.com", "",
		mock.MatchedBy(func(s port.RunSummary) bool { return s.Failed && s.Reason != "" })).
		Return(nil).Once()

	svc.ProcessRun(context.Background(), run, 3)
	m.runRepo.AssertExpectations(t)
	m.email.AssertExpectations(t)
}

func TestRunServiceProcessRun_UpdatesRunState(t *testing.T) {
	client := new(mocks.MockLLMClient)
	client.On("Complete", mock.Anything, mock.Anything).Return(&port.CompletionOutput{
		Text:  `{"chunks":[{"content":"finding","pillar":"general","chunk_type":"narrative"}]}`,
		Usage: port.Usage{TotalTokens: 10},
	}, nil).Once()

	svc, m := newRunServiceUnderTest(t, client, service.RunServiceConfig{Bucket: "bundles"})

	run := &domain.ChunkRun{
		ID:           uuid.New(),
		TenantID:     uuid.New(),
		CompanyID:    uuid.New(),
		SourceType:   domain.SourceTypeDocument,
		BundleBucket: "bundles",
		BundleKey:    "k",
		Attempts:     1,
	}
	bundle := chunking.ChunkInput{
		SourceType: domain.SourceTypeDocument,
		TenantID:   run.TenantID, CompanyID: run.CompanyID, RunID: run.ID,
		Document: &chunking.DocumentPayload{
			DocumentID: uuid.New(),
			Pages:      []chunking.Page{{PageNumber: 1, Text: "quarterly notes"}},
		},
	}

	m.storage.On("Download", mock.Anything, "bundles", "k").Return(bundleBody(t, bundle), nil).Once()
	m.chunkRepo.On("DeleteByRun", mock.Anything, run.TenantID, run.ID).Return(nil).Once()
	m.chunkRepo.On("InsertBatch", mock.Anything, mock.Anything).Return(nil).Once()
	m.runRepo.On("MarkCompleted", mock.Anything, mock.Anything).Return(nil).Once()

	svc.ProcessRun(context.Background(), run, 3)

	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, 1, run.ChunkCount)
	m.runRepo.AssertExpectations(t)
}
