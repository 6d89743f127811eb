package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Config holds S3-compatible object storage configuration
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

// Client wraps a minio client bound to a single bucket
type Client struct {
	client *minio.Client
	bucket string
	logger *slog.Logger
}

// NewClient creates a new object storage client
func NewClient(config *Config, logger *slog.Logger) (*Client, error) {
	if config.Endpoint == "" || config.Bucket == "" {
		return nil, fmt.Errorf("object storage configuration is incomplete")
	}

	var creds *credentials.Credentials
	if config.AccessKey != "" {
		creds = credentials.NewStaticV4(config.AccessKey, config.SecretKey, "")
	} else {
		creds = credentials.NewIAM("")
	}

	// Region is set explicitly so presigning never needs a bucket location lookup.
	mc, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage client: %w", err)
	}

	logger.Info("Object storage client initialized",
		slog.String("endpoint", config.Endpoint),
		slog.String("bucket", config.Bucket),
		slog.String("region", config.Region),
	)

	return &Client{
		client: mc,
		bucket: config.Bucket,
		logger: logger,
	}, nil
}

// Bucket returns the bucket name the client is bound to
func (c *Client) Bucket() string {
	return c.bucket
}

// EnsureBucket creates the bucket if it doesn't exist
func (c *Client) EnsureBucket(ctx context.Context, region string) error {
	exists, err := c.client.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		if err := c.client.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
		c.logger.Info("Bucket created", slog.String("bucket", c.bucket))
	}
	return nil
}

// PresignPut returns a URL allowing a single PUT of key for the given duration.
// Content-Type is part of the signature, so the upload must declare the same type.
func (c *Client) PresignPut(ctx context.Context, key, contentType string, expiry time.Duration) (string, error) {
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	u, err := c.client.PresignHeader(ctx, http.MethodPut, c.bucket, key, expiry, nil, headers)
	if err != nil {
		return "", fmt.Errorf("failed to presign upload: %w", err)
	}
	return u.String(), nil
}

// Fetch reads an object into memory, refusing objects larger than maxBytes.
// It returns the content and the stored Content-Type.
func (c *Client) Fetch(ctx context.Context, key string, maxBytes int64) ([]byte, string, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("failed to get object: %w", err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		return nil, "", fmt.Errorf("failed to stat object: %w", err)
	}

	if maxBytes > 0 && stat.Size > maxBytes {
		return nil, "", fmt.Errorf("object %s is %d bytes, limit is %d", key, stat.Size, maxBytes)
	}

	buf := new(bytes.Buffer)
	if _, err := io.Copy(buf, obj); err != nil {
		return nil, "", fmt.Errorf("failed to read object: %w", err)
	}

	c.logger.Debug("Object fetched",
		slog.String("storage_key", key),
		slog.Int("size", buf.Len()),
		slog.String("content_type", stat.ContentType),
	)

	return buf.Bytes(), stat.ContentType, nil
}
