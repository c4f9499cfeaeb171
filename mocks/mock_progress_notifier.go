package mocks

import (
	"context"
	"sync"

	"bizlens/internal/port"
)

// RecordingNotifier captures progress events for assertions. Safe for
// concurrent use; connector strategies emit from multiple goroutines.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []port.ProgressEvent
}

func (n *RecordingNotifier) NotifyUnit(_ context.Context, event port.ProgressEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns a copy of the captured events.
func (n *RecordingNotifier) Events() []port.ProgressEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]port.ProgressEvent, len(n.events))
	copy(out, n.events)
	return out
}
