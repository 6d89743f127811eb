package handler

import (
	"context"
	"log/slog"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
	"github.com/pandson7/product-image-ocr-112820251703/internal/service"
)

// Submitter registers jobs and issues upload URLs
type Submitter interface {
	Submit(ctx context.Context, req service.SubmitRequest) (*service.Submission, error)
}

// ResultReader reads job records
type ResultReader interface {
	Get(ctx context.Context, jobID string) (*domain.Job, error)
}

// HealthChecker reports whether a backing service is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	ServiceName string
	Submitter   Submitter
	Results     ResultReader
	// Health is optional; nil means there is nothing to check
	Health HealthChecker
}

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	logger    *slog.Logger
	submitter Submitter
	results   ResultReader
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:    deps.Logger,
		submitter: deps.Submitter,
		results:   deps.Results,
	}
}
