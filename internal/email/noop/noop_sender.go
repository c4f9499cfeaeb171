package noop

import (
	"context"
	"log"

	"bizlens/internal/port"
)

type noopSender struct{}

// NewSender returns an EmailSender that logs instead of sending. Used in
// local development where no email provider is configured.
func NewSender() port.EmailSender {
	return &noopSender{}
}

func (s *noopSender) SendRunSummary(_ context.Context, toEmail, toName string, summary port.RunSummary) error {
	log.Printf("email (noop): run summary to %s <%s>: run=%s source=%s chunks=%d failed_units=%d/%d failed=%t",
		toName, toEmail, summary.RunID, summary.SourceName, summary.ChunkCount,
		summary.FailedUnits, summary.TotalUnits, summary.Failed)
	return nil
}
