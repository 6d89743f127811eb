package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
	"github.com/pandson7/product-image-ocr-112820251703/internal/worker"
)

// handler runs the OCR pipeline for S3 object-created notifications
type handler struct {
	logger    *slog.Logger
	processor worker.TaskProcessor
}

// Handle processes every object-created record in the event. Only retryable
// failures are returned, so the platform retries the invocation for them alone.
func (h *handler) Handle(ctx context.Context, event events.S3Event) error {
	keys := worker.ObjectCreatedKeys(event)
	h.logger.Info("Received S3 event",
		slog.Int("records", len(event.Records)),
		slog.Int("object_created", len(keys)),
	)

	var retryable []error
	for _, key := range keys {
		err := h.processor.Process(ctx, key)
		if err == nil {
			continue
		}

		var retryErr *domain.RetryableError
		if errors.As(err, &retryErr) {
			retryable = append(retryable, err)
			continue
		}

		h.logger.Error("Dropping object",
			slog.String("storage_key", key),
			slog.String("error", err.Error()),
		)
	}

	if len(retryable) > 0 {
		return fmt.Errorf("%d of %d records need a retry: %w", len(retryable), len(keys), errors.Join(retryable...))
	}
	return nil
}
