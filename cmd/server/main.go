package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bizlens/internal/chunking"
	"bizlens/internal/config"
	"bizlens/internal/email/noop"
	"bizlens/internal/email/ses"
	"bizlens/internal/handler"
	"bizlens/internal/llm"
	"bizlens/internal/llm/claude"
	"bizlens/internal/llm/gemini"
	"bizlens/internal/llm/openai"
	"bizlens/internal/notify"
	"bizlens/internal/port"
	"bizlens/internal/prompt"
	"bizlens/internal/repository/postgres"
	"bizlens/internal/router"
	"bizlens/internal/service"
	"bizlens/internal/spreadsheet"
	s3storage "bizlens/internal/storage/s3"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Repositories
	chunkRepo := postgres.NewChunkRepo(db)
	runRepo := postgres.NewRunRepo(db)
	templateRepo := postgres.NewTemplateRepo(db)

	// Object storage for payload bundles
	storage, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// LLM completion stack with fallback
	llmClient, err := buildLLMClient(&cfg.LLM)
	if err != nil {
		return err
	}

	var embedder port.Embedder
	if cfg.Embedding.Enabled {
		embedder = openai.NewEmbedder(&cfg.Embedding)
	}

	// Prompt templates and builder
	promptSvc := prompt.NewService(templateRepo, cfg.Prompt.CacheTTL)
	promptMgr := prompt.NewManager()

	// Chunking pipeline
	aggTable, err := chunking.NewAggregationTable(&cfg.Aggregation)
	if err != nil {
		return fmt.Errorf("invalid aggregation config: %w", err)
	}

	notifier := notify.NewLogNotifier()
	docStrategy := chunking.NewDocumentStrategy(llmClient, promptSvc, promptMgr, notifier, &cfg.Chunking)
	connStrategy := chunking.NewConnectorStrategy(llmClient, promptSvc, promptMgr, notifier, &cfg.Chunking)

	pipeline := chunking.NewService(
		[]chunking.SourceAdapter{chunking.NewDocumentAdapter(), chunking.NewConnectorAdapter(aggTable)},
		[]chunking.ChunkingStrategy{docStrategy, connStrategy},
		embedder,
	)

	// Run-summary email delivery
	emailSender, err := buildEmailSender(&cfg.Email)
	if err != nil {
		return err
	}

	// Services
	runSvc := service.NewRunService(runRepo, chunkRepo, storage, pipeline, emailSender, service.RunServiceConfig{
		Bucket:          cfg.S3.Bucket,
		MaxBundleSizeMB: cfg.S3.MaxBundleSizeMB,
		NotifyEmail:     cfg.Email.SummaryRecipient,
		NotifyName:      cfg.Email.SummaryRecipientName,
	})
	chunkSvc := service.NewChunkService(chunkRepo)
	templateSvc := service.NewTemplateService(templateRepo, promptSvc)

	// Queue worker
	worker := service.NewChunkQueueWorker(runRepo, runSvc, service.ChunkQueueConfig{
		PollInterval:   time.Duration(cfg.Queue.PollIntervalSecs) * time.Second,
		MaxRetries:     cfg.Queue.MaxRetries,
		Concurrency:    cfg.Queue.Concurrency,
		ProcessTimeout: time.Duration(cfg.Queue.ProcessTimeoutSecs) * time.Second,
	})
	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		worker.Start(ctx)
	}()

	// Handlers and router
	runH := handler.NewChunkRunHandler(runSvc, spreadsheet.NewPacker(cfg.Chunking.TokenBudget, cfg.Chunking.HeaderTokens))
	chunkH := handler.NewChunkHandler(chunkSvc)
	templateH := handler.NewTemplateHandler(templateSvc)
	healthH := handler.NewHealthHandler(db)

	r := router.Setup(cfg, runH, chunkH, templateH, healthH)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		stop()
		<-workerDone
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Printf("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown: %v", err)
	}

	// Wait for in-flight runs to finish.
	<-workerDone
	return nil
}

// buildLLMClient assembles the completion client from the configured
// providers, wrapping them in fallback order when more than one is set.
func buildLLMClient(cfg *config.LLMConfig) (port.LLMClient, error) {
	providers := cfg.Providers()
	if len(providers) == 0 {
		return nil, fmt.Errorf("no LLM providers configured")
	}

	var clients []port.LLMClient
	var names []string
	for i := range providers {
		p := &providers[i]
		switch p.Provider {
		case "claude":
			clients = append(clients, claude.NewClient(p))
		case "openai":
			clients = append(clients, openai.NewClient(p))
		case "gemini":
			clients = append(clients, gemini.NewClient(p))
		default:
			return nil, fmt.Errorf("unknown LLM provider %q", p.Provider)
		}
		names = append(names, p.Provider)
	}

	if len(clients) == 1 {
		return clients[0], nil
	}
	return llm.NewFallback(clients, names), nil
}

func buildEmailSender(cfg *config.EmailConfig) (port.EmailSender, error) {
	switch cfg.Provider {
	case "ses":
		sender, err := ses.NewSESSender(cfg.Region, cfg.FromAddress, cfg.FromName)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SES sender: %w", err)
		}
		return sender, nil
	case "noop", "":
		return noop.NewSender(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Provider)
	}
}
