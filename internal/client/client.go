// Package client talks to the OCR HTTP API: submit, upload and read results.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pandson7/product-image-ocr-112820251703/internal/api/dto"
	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// ErrNotFound is returned by GetResult for a 404
var ErrNotFound = errors.New("image not found")

// StatusError is a non-2xx API response
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.StatusCode, e.Message)
}

// Client is an HTTP client for the OCR API
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a Client for baseURL
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Submit asks for an upload handle for a new job
func (c *Client) Submit(ctx context.Context, fileName, fileType string) (*dto.UploadResponse, error) {
	body, err := json.Marshal(dto.UploadRequest{FileName: fileName, FileType: fileType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp dto.UploadResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upload PUTs the image to a presigned URL. contentType must match the one submitted.
func (c *Client) Upload(ctx context.Context, uploadURL, contentType string, image []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(image))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(image))

	return c.do(req, nil)
}

// GetResult reads the current job record
func (c *Client) GetResult(ctx context.Context, jobID string) (*dto.ResultResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/results/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}

	var resp dto.ResultResponse
	if err := c.do(req, &resp); err != nil {
		var statusErr *StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("response body close error", slog.String("error", err.Error()))
		}
	}(resp.Body)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(data))
		var apiErr dto.ErrorResponse
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return &StatusError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsTerminal reports whether a result is COMPLETED or FAILED
func IsTerminal(r *dto.ResultResponse) bool {
	return domain.Status(r.Status).IsTerminal()
}
