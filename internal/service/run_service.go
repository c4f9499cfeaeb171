package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"bizlens/internal/chunking"
	"bizlens/internal/domain"
	"bizlens/internal/port"
)

// EnqueueRunInput is the DTO for submitting a chunking request.
type EnqueueRunInput struct {
	TenantID    uuid.UUID
	CompanyID   uuid.UUID
	SourceType  domain.SourceType
	Document    *chunking.DocumentPayload
	Connector   *chunking.ConnectorPayload
	RequestedBy uuid.UUID
}

// RunService defines the chunking-run lifecycle contract: enqueue requests,
// inspect run state, and process claimed runs.
type RunService interface {
	Enqueue(ctx context.Context, input *EnqueueRunInput) (*domain.ChunkRun, error)
	GetByID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.ChunkRun, error)
	List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]domain.ChunkRun, int, error)
	// ProcessRun executes one claimed run end to end. It never returns an
	// error; failures are recorded on the run itself, requeueing while the
	// attempt count permits.
	ProcessRun(ctx context.Context, run *domain.ChunkRun, maxRetries int)
}

type runService struct {
	runRepo       port.RunRepository
	chunkRepo     port.ChunkRepository
	storage       port.ObjectStorage
	pipeline      *chunking.Service
	email         port.EmailSender
	bucket        string
	maxBundleSize int64 // bytes
	notifyEmail   string
	notifyName    string
}

// RunServiceConfig carries the static settings of the run service.
type RunServiceConfig struct {
	Bucket          string
	MaxBundleSizeMB int64
	NotifyEmail     string
	NotifyName      string
}

// NewRunService creates a RunService. The email sender may be nil.
func NewRunService(
	runRepo port.RunRepository,
	chunkRepo port.ChunkRepository,
	storage port.ObjectStorage,
	pipeline *chunking.Service,
	email port.EmailSender,
	cfg RunServiceConfig,
) RunService {
	return &runService{
		runRepo:       runRepo,
		chunkRepo:     chunkRepo,
		storage:       storage,
		pipeline:      pipeline,
		email:         email,
		bucket:        cfg.Bucket,
		maxBundleSize: cfg.MaxBundleSizeMB * 1024 * 1024,
		notifyEmail:   cfg.NotifyEmail,
		notifyName:    cfg.NotifyName,
	}
}

// Enqueue validates the request, stages its payload bundle in object storage,
// and creates a queued run for the worker to claim.
func (s *runService) Enqueue(ctx context.Context, input *EnqueueRunInput) (*domain.ChunkRun, error) {
	if !domain.SupportedSourceTypes[input.SourceType] {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedSourceType, input.SourceType)
	}

	runID := uuid.New()
	chunkInput := chunking.ChunkInput{
		SourceType: input.SourceType,
		TenantID:   input.TenantID,
		CompanyID:  input.CompanyID,
		RunID:      runID,
		Document:   input.Document,
		Connector:  input.Connector,
	}

	bundle, err := json.Marshal(chunkInput)
	if err != nil {
		return nil, fmt.Errorf("runService.Enqueue: encoding bundle: %w", err)
	}
	if s.maxBundleSize > 0 && int64(len(bundle)) > s.maxBundleSize {
		return nil, fmt.Errorf("%w: bundle is %d bytes, limit %d", domain.ErrBundleTooLarge, len(bundle), s.maxBundleSize)
	}

	key := fmt.Sprintf("bundles/%s/%s.json", input.TenantID, runID)
	if _, err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.bucket,
		Key:         key,
		Body:        bytes.NewReader(bundle),
		ContentType: "application/json",
		Size:        int64(len(bundle)),
	}); err != nil {
		return nil, fmt.Errorf("runService.Enqueue: staging bundle: %w", err)
	}

	run := &domain.ChunkRun{
		ID:           runID,
		TenantID:     input.TenantID,
		CompanyID:    input.CompanyID,
		SourceType:   input.SourceType,
		BundleBucket: s.bucket,
		BundleKey:    key,
		Status:       domain.RunStatusQueued,
		RequestedBy:  input.RequestedBy,
	}
	if input.Document != nil {
		docID := input.Document.DocumentID
		run.DocumentID = &docID
		run.FileName = input.Document.FileName
	}
	if input.Connector != nil {
		run.ConnectorType = input.Connector.ConnectorType
		run.EntityType = input.Connector.EntityType
	}

	if err := s.runRepo.Create(ctx, run); err != nil {
		// Best effort cleanup of the orphaned bundle.
		if delErr := s.storage.Delete(ctx, s.bucket, key); delErr != nil {
			log.Printf("runService.Enqueue: deleting orphaned bundle %s: %v", key, delErr)
		}
		return nil, err
	}

	log.Printf("runService: enqueued run %s (tenant=%s source=%s)", run.ID, run.TenantID, run.SourceType)
	return run, nil
}

func (s *runService) GetByID(ctx context.Context, tenantID, runID uuid.UUID) (*domain.ChunkRun, error) {
	return s.runRepo.GetByID(ctx, tenantID, runID)
}

func (s *runService) List(ctx context.Context, tenantID uuid.UUID, offset, limit int) ([]domain.ChunkRun, int, error) {
	return s.runRepo.List(ctx, tenantID, offset, limit)
}

// ProcessRun downloads the run's bundle, drives the chunking pipeline, and
// persists the outcome. A run that fails before producing a result is
// requeued while attempts remain; partial results are persisted with their
// failure list.
func (s *runService) ProcessRun(ctx context.Context, run *domain.ChunkRun, maxRetries int) {
	input, err := s.loadBundle(ctx, run)
	if err != nil {
		s.failRun(ctx, run, fmt.Sprintf("loading bundle: %v", err), maxRetries)
		return
	}

	result, procErr := s.pipeline.Process(ctx, *input)
	if result == nil {
		s.failRun(ctx, run, fmt.Sprintf("processing: %v", procErr), maxRetries)
		return
	}

	if len(result.Records) > 0 {
		// Reprocessing after a requeue must not duplicate chunks.
		if err := s.chunkRepo.DeleteByRun(ctx, run.TenantID, run.ID); err != nil {
			s.failRun(ctx, run, fmt.Sprintf("clearing prior chunks: %v", err), maxRetries)
			return
		}
		if err := s.chunkRepo.InsertBatch(ctx, result.Records); err != nil {
			s.failRun(ctx, run, fmt.Sprintf("persisting chunks: %v", err), maxRetries)
			return
		}
	}

	run.ChunkCount = len(result.Records)
	run.PromptTokens = result.Usage.PromptTokens
	run.CompletionTokens = result.Usage.CompletionTokens
	run.TotalTokens = result.Usage.TotalTokens
	run.LLMCalls = result.Usage.LLMCalls
	run.FailedUnits = chunking.EncodeFailedUnits(result.FailedUnits)
	run.ElapsedMs = result.Elapsed.Milliseconds()
	run.Status = domain.RunStatusCompleted
	if procErr != nil {
		run.Error = procErr.Error()
	}

	if err := s.runRepo.MarkCompleted(ctx, run); err != nil {
		log.Printf("runService.ProcessRun: marking run %s completed: %v", run.ID, err)
		return
	}

	log.Printf("runService: run %s completed (chunks=%d failed_units=%d tokens=%d elapsed=%s)",
		run.ID, run.ChunkCount, len(result.FailedUnits), run.TotalTokens, result.Elapsed)

	s.sendSummary(ctx, run, summaryCounts{failedUnits: len(result.FailedUnits), totalUnits: totalUnits(input)}, false, "")
}

type summaryCounts struct {
	failedUnits int
	totalUnits  int
}

// totalUnits reports the unit count of a request without re-normalizing it.
// Document runs carry one unit per page; connector runs one per record batch,
// which the summary approximates with the record count.
func totalUnits(input *chunking.ChunkInput) int {
	switch {
	case input.Document != nil:
		return len(input.Document.Pages)
	case input.Connector != nil:
		return len(input.Connector.Records)
	}
	return 0
}

func (s *runService) loadBundle(ctx context.Context, run *domain.ChunkRun) (*chunking.ChunkInput, error) {
	body, err := s.storage.Download(ctx, run.BundleBucket, run.BundleKey)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var input chunking.ChunkInput
	if err := json.NewDecoder(body).Decode(&input); err != nil {
		return nil, fmt.Errorf("decoding bundle: %w", err)
	}
	return &input, nil
}

// failRun records a failure, requeueing the run while the attempt count
// permits.
func (s *runService) failRun(ctx context.Context, run *domain.ChunkRun, reason string, maxRetries int) {
	requeue := run.Attempts < maxRetries
	log.Printf("runService: run %s failed (attempt %d, requeue=%t): %s", run.ID, run.Attempts, requeue, reason)

	if err := s.runRepo.MarkFailed(ctx, run.ID, reason, requeue); err != nil {
		log.Printf("runService.failRun: marking run %s failed: %v", run.ID, err)
	}
	if !requeue {
		s.sendSummary(ctx, run, summaryCounts{}, true, reason)
	}
}

func (s *runService) sendSummary(ctx context.Context, run *domain.ChunkRun, counts summaryCounts, failed bool, reason string) {
	if s.email == nil || s.notifyEmail == "" {
		return
	}

	sourceName := run.FileName
	if sourceName == "" {
		sourceName = fmt.Sprintf("%s/%s", run.ConnectorType, run.EntityType)
	}

	summary := port.RunSummary{
		RunID:       run.ID.String(),
		SourceName:  sourceName,
		ChunkCount:  run.ChunkCount,
		FailedUnits: counts.failedUnits,
		TotalUnits:  counts.totalUnits,
		TotalTokens: run.TotalTokens,
		Failed:      failed,
		Reason:      reason,
	}

	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
	defer cancel()
	if err := s.email.SendRunSummary(sendCtx, s.notifyEmail, s.notifyName, summary); err != nil {
		log.Printf("runService: sending run summary for %s: %v", run.ID, err)
	}
}
