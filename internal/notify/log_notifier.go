package notify

import (
	"context"
	"log"

	"bizlens/internal/port"
)

type logNotifier struct{}

// NewLogNotifier returns a ProgressNotifier that writes unit progress to the
// application log. Suitable as the default sink when no realtime channel is
// wired up.
func NewLogNotifier() port.ProgressNotifier {
	return &logNotifier{}
}

func (n *logNotifier) NotifyUnit(_ context.Context, event port.ProgressEvent) {
	log.Printf("progress: run=%s unit=%d status=%s", event.RunID, event.UnitNumber, event.Status)
}
