package service

import (
	"context"
	"log"
	"sync"
	"time"

	"bizlens/internal/port"
)

// ChunkQueueConfig holds settings for the run queue worker.
type ChunkQueueConfig struct {
	PollInterval   time.Duration
	MaxRetries     int
	Concurrency    int
	ProcessTimeout time.Duration
}

// ChunkQueueWorker polls for queued chunking runs and dispatches them for
// processing.
type ChunkQueueWorker struct {
	runRepo    port.RunRepository
	runService RunService
	cfg        ChunkQueueConfig
	wg         sync.WaitGroup
}

// NewChunkQueueWorker creates a new ChunkQueueWorker.
func NewChunkQueueWorker(runRepo port.RunRepository, runService RunService, cfg ChunkQueueConfig) *ChunkQueueWorker {
	if cfg.ProcessTimeout <= 0 {
		cfg.ProcessTimeout = 30 * time.Minute
	}
	return &ChunkQueueWorker{
		runRepo:    runRepo,
		runService: runService,
		cfg:        cfg,
	}
}

// Start runs the polling loop until ctx is canceled. It blocks until all
// in-flight runs have finished.
func (w *ChunkQueueWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	sem := make(chan struct{}, w.cfg.Concurrency)

	log.Printf("chunkQueueWorker: started (poll=%s, concurrency=%d, maxRetries=%d)",
		w.cfg.PollInterval, w.cfg.Concurrency, w.cfg.MaxRetries)

	for {
		select {
		case <-ctx.Done():
			log.Printf("chunkQueueWorker: shutting down, waiting for in-flight runs...")
			w.wg.Wait()
			log.Printf("chunkQueueWorker: shutdown complete")
			return
		case <-ticker.C:
			available := w.cfg.Concurrency - len(sem)
			if available <= 0 {
				continue
			}

			runs, err := w.runRepo.ClaimQueued(ctx, available)
			if err != nil {
				if ctx.Err() != nil {
					// Context canceled during poll; exit on the next select.
					continue
				}
				log.Printf("chunkQueueWorker: ClaimQueued error: %v", err)
				continue
			}

			for i := range runs {
				run := runs[i] // copy for goroutine

				sem <- struct{}{} // acquire
				w.wg.Add(1)
				go func() {
					defer w.wg.Done()
					defer func() { <-sem }() // release

					// Use a fresh context independent of the poll context
					// so in-flight runs complete even during shutdown.
					runCtx, cancel := context.WithTimeout(context.Background(), w.cfg.ProcessTimeout)
					defer cancel()

					log.Printf("chunkQueueWorker: dispatching run %s (attempt %d)", run.ID, run.Attempts)
					w.runService.ProcessRun(runCtx, &run, w.cfg.MaxRetries)
				}()
			}
		}
	}
}
