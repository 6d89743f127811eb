package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
	"github.com/pandson7/product-image-ocr-112820251703/internal/store"
)

// ResultService reads job records
type ResultService struct {
	store  store.JobStore
	logger *slog.Logger
}

// NewResultService creates a ResultService
func NewResultService(jobStore store.JobStore, logger *slog.Logger) *ResultService {
	return &ResultService{store: jobStore, logger: logger}
}

// Get returns the current job record. IDs that are not UUIDs can never exist
// and are reported as domain.ErrNotFound without a store round trip.
func (s *ResultService) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrNotFound
	}

	job, err := s.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Job read",
		slog.String("job_id", jobID),
		slog.String("status", job.Status.String()),
	)
	return job, nil
}
