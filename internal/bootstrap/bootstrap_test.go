package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pandson7/product-image-ocr-112820251703/internal/config"
	"github.com/pandson7/product-image-ocr-112820251703/internal/inference"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewJobStore(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory}}

		jobStore, err := NewJobStore(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		assert.NoError(t, jobStore.HealthCheck(context.Background()))
		assert.NoError(t, jobStore.Close())
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{Store: config.StoreConfig{Backend: "redis"}}

		_, err := NewJobStore(context.Background(), cfg, discardLogger())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown store backend")
	})
}

func TestNewInference(t *testing.T) {
	t.Run("openai provider", func(t *testing.T) {
		cfg := &config.Config{Inference: config.InferenceConfig{
			Provider: config.InferenceProviderOpenAI,
			BaseURL:  "http://localhost:11434/v1",
			ModelID:  "llava",
			Timeout:  time.Second,
		}}

		client, err := NewInference(context.Background(), cfg, discardLogger())
		require.NoError(t, err)
		assert.IsType(t, &inference.OpenAIClient{}, client)
	})

	t.Run("unknown provider", func(t *testing.T) {
		cfg := &config.Config{Inference: config.InferenceConfig{Provider: "vertex"}}

		_, err := NewInference(context.Background(), cfg, discardLogger())
		require.Error(t, err)
	})
}

func TestNewObjectStore(t *testing.T) {
	client, err := NewObjectStore(context.Background(), &config.StorageConfig{
		Endpoint:  "localhost:9000",
		Bucket:    "product-images",
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
	}, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "product-images", client.Bucket())

	_, err = NewObjectStore(context.Background(), &config.StorageConfig{Endpoint: "localhost:9000"}, discardLogger())
	assert.Error(t, err)
}

func TestNewObjectStore_CreateBucket(t *testing.T) {
	var checks atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && strings.HasPrefix(r.URL.Path, "/product-images") {
			checks.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := &config.StorageConfig{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		Bucket:    "product-images",
		AccessKey: "minio",
		SecretKey: "minio123",
		Region:    "us-east-1",
	}

	_, err := NewObjectStore(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Zero(t, checks.Load())

	cfg.CreateBucket = true
	_, err = NewObjectStore(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, int32(1), checks.Load())
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "json", Output: "stdout"})
	require.NoError(t, err)
	assert.NotNil(t, log.Logger)
}
