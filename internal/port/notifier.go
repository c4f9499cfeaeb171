package port

import (
	"context"

	"github.com/google/uuid"
)

// UnitStatus is the terminal outcome of one content-unit batch.
type UnitStatus string

const (
	UnitSucceeded UnitStatus = "succeeded"
	UnitFailed    UnitStatus = "failed"
)

// ProgressEvent reports completion of one content-unit batch within a run.
type ProgressEvent struct {
	RunID      uuid.UUID
	UnitNumber int
	Status     UnitStatus
}

// ProgressNotifier delivers per-unit progress events. Delivery is
// fire-and-forget; implementations must not block the pipeline.
type ProgressNotifier interface {
	NotifyUnit(ctx context.Context, event ProgressEvent)
}
