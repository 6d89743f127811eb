package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
	"github.com/pandson7/product-image-ocr-112820251703/internal/inference"
	"github.com/pandson7/product-image-ocr-112820251703/internal/store"
)

const (
	DefaultMaxObjectBytes = 10 << 20
	DefaultJobTimeout     = 4 * time.Minute

	outcomeWriteTimeout = 15 * time.Second
)

// ObjectFetcher reads uploaded images from object storage
type ObjectFetcher interface {
	Fetch(ctx context.Context, key string, maxBytes int64) ([]byte, string, error)
}

// Extractor turns a model response into product attributes
type Extractor interface {
	Extract(text string) (*domain.ExtractedData, error)
}

// ProcessorConfig holds the dependencies of a Processor
type ProcessorConfig struct {
	Logger         *slog.Logger
	Store          store.JobStore
	Objects        ObjectFetcher
	Inference      inference.Client
	Extractor      Extractor
	MaxObjectBytes int64
	JobTimeout     time.Duration
}

// Processor runs the OCR pipeline for one uploaded object and drives the job
// through PENDING -> PROCESSING -> COMPLETED | FAILED.
type Processor struct {
	logger         *slog.Logger
	store          store.JobStore
	objects        ObjectFetcher
	inference      inference.Client
	extractor      Extractor
	maxObjectBytes int64
	jobTimeout     time.Duration
	now            func() time.Time
}

// NewProcessor creates a new Processor
func NewProcessor(cfg *ProcessorConfig) *Processor {
	maxBytes := cfg.MaxObjectBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxObjectBytes
	}
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = DefaultJobTimeout
	}

	return &Processor{
		logger:         cfg.Logger,
		store:          cfg.Store,
		objects:        cfg.Objects,
		inference:      cfg.Inference,
		extractor:      cfg.Extractor,
		maxObjectBytes: maxBytes,
		jobTimeout:     timeout,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Process handles one object-created event for storageKey.
//
// Pipeline failures end in FAILED on the job and return nil. A repeated event for a
// job that is no longer PENDING is a no-op. Errors are returned only when the event
// cannot be tied to a job or the claim could not be written; the latter is retryable.
func (p *Processor) Process(ctx context.Context, storageKey string) error {
	jobID, err := domain.ParseStorageKey(storageKey)
	if err != nil {
		p.logger.Error("Ignoring object with unexpected key",
			slog.String("storage_key", storageKey),
			slog.String("error", err.Error()),
		)
		return err
	}

	// Step 1: Claim the job (PENDING -> PROCESSING)
	job, err := p.store.Update(ctx, jobID, domain.JobUpdate{
		From:      domain.JobStatusPending,
		To:        domain.JobStatusProcessing,
		UpdatedAt: p.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidTransition):
			p.logger.Warn("Job already claimed, skipping",
				slog.String("job_id", jobID),
				slog.String("storage_key", storageKey),
			)
			return nil
		case errors.Is(err, domain.ErrNotFound):
			p.logger.Error("No job for uploaded object",
				slog.String("job_id", jobID),
				slog.String("storage_key", storageKey),
			)
			return fmt.Errorf("failed to claim job %s: %w", jobID, err)
		default:
			p.logger.Error("Failed to claim job",
				slog.String("job_id", jobID),
				slog.String("error", err.Error()),
			)
			return domain.NewRetryableError(fmt.Errorf("failed to claim job %s: %w", jobID, err))
		}
	}

	p.logger.Info("Processing job",
		slog.String("job_id", jobID),
		slog.String("storage_key", storageKey),
	)

	// Steps 2-4: fetch, infer and parse under the job timeout
	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	data, runErr := p.run(jobCtx, job)
	cancel()

	// Step 5: Record the outcome, even if ctx was canceled meanwhile
	writeCtx, cancelWrite := context.WithTimeout(context.WithoutCancel(ctx), outcomeWriteTimeout)
	defer cancelWrite()

	if runErr != nil {
		return p.fail(writeCtx, jobID, runErr)
	}
	return p.complete(writeCtx, jobID, data)
}

func (p *Processor) run(ctx context.Context, job *domain.Job) (*domain.ExtractedData, error) {
	image, storedType, err := p.objects.Fetch(ctx, job.StorageKey, p.maxObjectBytes)
	if err != nil {
		return nil, domain.NewProcessingError(domain.StageFetch, err)
	}

	mediaType := job.ContentType
	if mediaType == "" {
		mediaType = storedType
	}

	text, err := p.inference.Analyze(ctx, inference.Request{
		JobID:     job.JobID,
		Image:     image,
		MediaType: mediaType,
	})
	if err != nil {
		return nil, domain.NewProcessingError(domain.StageInference, err)
	}

	data, err := p.extractor.Extract(text)
	if err != nil {
		return nil, domain.NewProcessingError(domain.StageParse, err)
	}
	return data, nil
}

func (p *Processor) complete(ctx context.Context, jobID string, data *domain.ExtractedData) error {
	_, err := p.store.Update(ctx, jobID, domain.JobUpdate{
		From:          domain.JobStatusProcessing,
		To:            domain.JobStatusCompleted,
		ExtractedData: data,
		UpdatedAt:     p.now(),
	})
	if err != nil {
		p.logger.Error("Failed to update job status to COMPLETED",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return p.fail(ctx, jobID, domain.NewProcessingError(domain.StageStore, err))
	}

	p.logger.Info("Job completed successfully",
		slog.String("job_id", jobID),
		slog.String("status", domain.JobStatusCompleted.String()),
	)
	return nil
}

func (p *Processor) fail(ctx context.Context, jobID string, cause error) error {
	p.logger.Error("Job processing failed",
		slog.String("job_id", jobID),
		slog.String("error", cause.Error()),
	)

	_, err := p.store.Update(ctx, jobID, domain.JobUpdate{
		From:         domain.JobStatusProcessing,
		To:           domain.JobStatusFailed,
		ErrorMessage: cause.Error(),
		UpdatedAt:    p.now(),
	})
	if err != nil {
		p.logger.Error("Failed to update job status to FAILED",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to record failure of job %s: %w", jobID, err)
	}
	return nil
}
