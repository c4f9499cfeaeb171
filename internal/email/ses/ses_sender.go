package ses

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"bizlens/internal/port"
)

type sesSender struct {
	client      *sesv2.Client
	fromAddress string
	fromName    string
}

// NewSESSender creates a new SES-backed EmailSender.
func NewSESSender(region, fromAddress, fromName string) (port.EmailSender, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config for SES: %w", err)
	}
	client := sesv2.NewFromConfig(cfg)
	return &sesSender{
		client:      client,
		fromAddress: fromAddress,
		fromName:    fromName,
	}, nil
}

func (s *sesSender) SendRunSummary(ctx context.Context, toEmail, toName string, summary port.RunSummary) error {
	subject := fmt.Sprintf("Chunking run completed: %s", summary.SourceName)
	if summary.Failed {
		subject = fmt.Sprintf("Chunking run failed: %s", summary.SourceName)
	}

	htmlBody := buildRunSummaryHTML(toName, summary)
	textBody := buildRunSummaryText(toName, summary)

	from := fmt.Sprintf("%s <%s>", s.fromName, s.fromAddress)

	_, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: &from,
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &subject},
				Body: &types.Body{
					Html: &types.Content{Data: &htmlBody},
					Text: &types.Content{Data: &textBody},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("SES SendEmail: %w", err)
	}
	return nil
}

func buildRunSummaryText(name string, summary port.RunSummary) string {
	if summary.Failed {
		return fmt.Sprintf("Hi %s,\n\nYour chunking run %s for %s failed.\n\nReason: %s\n\nBizlens Team",
			name, summary.RunID, summary.SourceName, summary.Reason)
	}
	return fmt.Sprintf("Hi %s,\n\nYour chunking run %s for %s has completed.\n\nChunks produced: %d\nUnits processed: %d (%d failed)\nTokens used: %d\n\nBizlens Team",
		name, summary.RunID, summary.SourceName, summary.ChunkCount,
		summary.TotalUnits, summary.FailedUnits, summary.TotalTokens)
}

func buildRunSummaryHTML(name string, summary port.RunSummary) string {
	status := "completed"
	statusColor := "#16A34A"
	if summary.Failed {
		status = "failed"
		statusColor = "#DC2626"
	}

	detail := fmt.Sprintf(`<table style="border-collapse: collapse; width: 100%%;">
    <tr><td style="padding: 6px 12px; border: 1px solid #eee;">Chunks produced</td><td style="padding: 6px 12px; border: 1px solid #eee;">%d</td></tr>
    <tr><td style="padding: 6px 12px; border: 1px solid #eee;">Units processed</td><td style="padding: 6px 12px; border: 1px solid #eee;">%d (%d failed)</td></tr>
    <tr><td style="padding: 6px 12px; border: 1px solid #eee;">Tokens used</td><td style="padding: 6px 12px; border: 1px solid #eee;">%d</td></tr>
  </table>`, summary.ChunkCount, summary.TotalUnits, summary.FailedUnits, summary.TotalTokens)
	if summary.Failed {
		detail = fmt.Sprintf(`<p style="color: #666;">Reason: %s</p>`, summary.Reason)
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #333;">Chunking run <span style="color: %s;">%s</span></h2>
  <p>Hi %s,</p>
  <p>Your chunking run <strong>%s</strong> for <strong>%s</strong> has %s.</p>
  %s
  <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
  <p style="color: #999; font-size: 12px;">Bizlens - Business Document Intelligence</p>
</body>
</html>`, statusColor, status, name, summary.RunID, summary.SourceName, status, detail)
}
