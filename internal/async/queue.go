package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job carries one unit of background work keyed by an aggregate id
// (a report for extraction, a scoring result for recommendations).
type Job struct {
	ID          uuid.UUID
	SubmittedAt time.Time
}

// Handler processes one job under the queue's per-job timeout.
type Handler func(ctx context.Context, id uuid.UUID) error

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
