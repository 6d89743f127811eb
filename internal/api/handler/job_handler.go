package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pandson7/product-image-ocr-112820251703/internal/api/dto"
	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
	"github.com/pandson7/product-image-ocr-112820251703/internal/service"
)

const (
	msgInvalidRequest = "fileName and fileType are required"
	msgNotFound       = "Image not found"
	msgInternal       = "Internal server error"
)

// Upload handles POST /upload
// Registers a PENDING job and returns a presigned URL for the image upload
func (h *JobHandler) Upload(c *gin.Context) {
	var req dto.UploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: msgInvalidRequest})
		return
	}

	sub, err := h.submitter.Submit(c.Request.Context(), service.SubmitRequest{
		FileName: req.FileName,
		FileType: req.FileType,
	})
	if err != nil {
		var vErr *domain.ValidationError
		if errors.As(err, &vErr) {
			h.logger.Warn("Rejected upload request",
				slog.String("field", vErr.Field),
				slog.String("error", vErr.Message),
			)
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: vErr.Error()})
			return
		}

		h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternal})
		return
	}

	c.JSON(http.StatusOK, dto.UploadResponse{
		ImageID:    sub.JobID,
		UploadURL:  sub.UploadURL,
		StorageKey: sub.StorageKey,
		ExpiresAt:  sub.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// GetResult handles GET /results/:id
func (h *JobHandler) GetResult(c *gin.Context) {
	jobID := c.Param("id")

	job, err := h.results.Get(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: msgNotFound})
			return
		}

		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: msgInternal})
		return
	}

	c.JSON(http.StatusOK, dto.NewResultResponse(job))
}
