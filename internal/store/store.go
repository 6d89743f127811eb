// Package store persists job records. Every backend offers the same three
// single-record operations; none of them spans more than one job.
package store

import (
	"context"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// JobStore is the durable key-value store of job records keyed by job ID.
type JobStore interface {
	// Create inserts a new record. It fails with domain.ErrAlreadyExists if the ID is taken.
	Create(ctx context.Context, job *domain.Job) error

	// Update applies a guarded status change. It fails with domain.ErrNotFound if the
	// job is absent and domain.ErrInvalidTransition if the stored status is not update.From.
	Update(ctx context.Context, jobID string, update domain.JobUpdate) (*domain.Job, error)

	// Get returns the latest state of a job or domain.ErrNotFound.
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}
