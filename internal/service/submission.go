// Package service holds the job submission and result query use cases shared by the HTTP API.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
	"github.com/pandson7/product-image-ocr-112820251703/internal/store"
)

// DefaultUploadExpiry is how long an upload handle stays valid
const DefaultUploadExpiry = time.Hour

// Presigner issues time-bounded upload URLs for a single object key
type Presigner interface {
	PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error)
}

// SubmitRequest is a client's request for an upload handle
type SubmitRequest struct {
	FileName string
	FileType string
}

// Submission is the result of a successful submit
type Submission struct {
	JobID      string
	StorageKey string
	UploadURL  string
	ExpiresAt  time.Time
}

// SubmissionService creates PENDING jobs and hands out upload URLs
type SubmissionService struct {
	store     store.JobStore
	presigner Presigner
	expiry    time.Duration
	logger    *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewSubmissionService creates a SubmissionService. A non-positive expiry falls back to DefaultUploadExpiry.
func NewSubmissionService(jobStore store.JobStore, presigner Presigner, expiry time.Duration, logger *slog.Logger) *SubmissionService {
	if expiry <= 0 {
		expiry = DefaultUploadExpiry
	}
	return &SubmissionService{
		store:     jobStore,
		presigner: presigner,
		expiry:    expiry,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// Submit registers a new job and returns where to upload its image.
// The job record is written before the upload URL is issued, so a presign
// failure leaves a PENDING job behind.
func (s *SubmissionService) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	fileName := strings.TrimSpace(req.FileName)
	if fileName == "" {
		return nil, domain.NewValidationError("fileName", "is required")
	}

	contentType, err := normalizeImageType(req.FileType)
	if err != nil {
		return nil, err
	}

	jobID := s.newID()
	job := &domain.Job{
		JobID:       jobID,
		StorageKey:  domain.StorageKey(jobID, fileName),
		FileName:    fileName,
		ContentType: contentType,
		Status:      domain.JobStatusPending,
		CreatedAt:   s.now(),
	}

	if err := s.store.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	uploadURL, err := s.presigner.PresignPut(ctx, job.StorageKey, contentType, s.expiry)
	if err != nil {
		s.logger.Error("Failed to issue upload URL",
			slog.String("job_id", jobID),
			slog.String("storage_key", job.StorageKey),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to issue upload URL: %w", err)
	}

	s.logger.Info("Job submitted",
		slog.String("job_id", jobID),
		slog.String("storage_key", job.StorageKey),
		slog.String("content_type", contentType),
	)

	return &Submission{
		JobID:      jobID,
		StorageKey: job.StorageKey,
		UploadURL:  uploadURL,
		ExpiresAt:  job.CreatedAt.Add(s.expiry),
	}, nil
}

func normalizeImageType(fileType string) (string, error) {
	fileType = strings.TrimSpace(fileType)
	if fileType == "" {
		return "", domain.NewValidationError("fileType", "is required")
	}

	mediaType, _, err := mime.ParseMediaType(fileType)
	if err != nil {
		return "", domain.NewValidationError("fileType", "is not a valid media type")
	}
	if !strings.HasPrefix(mediaType, "image/") || mediaType == "image/" {
		return "", domain.NewValidationError("fileType", "must be an image media type")
	}
	return mediaType, nil
}
