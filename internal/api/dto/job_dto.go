package dto

import (
	"time"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// UploadRequest is the body of POST /upload
type UploadRequest struct {
	FileName string `json:"fileName" binding:"required"`
	FileType string `json:"fileType" binding:"required"`
}

// UploadResponse is returned by POST /upload
type UploadResponse struct {
	ImageID    string `json:"imageId"`
	UploadURL  string `json:"uploadUrl"`
	StorageKey string `json:"storageKey"`
	ExpiresAt  string `json:"expiresAt"`
}

// ResultResponse is returned by GET /results/:id.
// processingStatus mirrors status for older clients.
type ResultResponse struct {
	ImageID          string                `json:"imageId"`
	Status           string                `json:"status"`
	ProcessingStatus string                `json:"processingStatus"`
	StorageKey       string                `json:"storageKey"`
	FileName         string                `json:"fileName"`
	ContentType      string                `json:"contentType"`
	CreatedAt        string                `json:"createdAt"`
	UpdatedAt        *string               `json:"updatedAt"`
	ExtractedData    *domain.ExtractedData `json:"extractedData"`
	ErrorMessage     *string               `json:"errorMessage"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewResultResponse maps a job record to its API shape
func NewResultResponse(job *domain.Job) ResultResponse {
	resp := ResultResponse{
		ImageID:          job.JobID,
		Status:           job.Status.String(),
		ProcessingStatus: job.Status.String(),
		StorageKey:       job.StorageKey,
		FileName:         job.FileName,
		ContentType:      job.ContentType,
		CreatedAt:        job.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExtractedData:    job.ExtractedData,
		ErrorMessage:     job.ErrorMessage,
	}
	if job.UpdatedAt != nil {
		updatedAt := job.UpdatedAt.UTC().Format(time.RFC3339Nano)
		resp.UpdatedAt = &updatedAt
	}
	return resp
}
