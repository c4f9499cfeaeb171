package port

import "context"

// RunSummary carries the facts reported in a run-completion email.
type RunSummary struct {
	RunID       string
	SourceName  string
	ChunkCount  int
	FailedUnits int
	TotalUnits  int
	TotalTokens int
	Failed      bool
	Reason      string
}

// EmailSender delivers run-completion summary emails.
type EmailSender interface {
	SendRunSummary(ctx context.Context, toEmail, toName string, summary RunSummary) error
}
