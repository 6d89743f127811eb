package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/pandson7/product-image-ocr-112820251703/internal/bootstrap"
	"github.com/pandson7/product-image-ocr-112820251703/internal/client"
	"github.com/pandson7/product-image-ocr-112820251703/internal/config"
	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

// Exit codes
const (
	exitCompleted = 0
	exitFailed    = 1
	exitTimeout   = 2
	exitError     = 3
)

func main() {
	code, err := run()
	if err != nil {
		log.Println(err)
	}
	os.Exit(code)
}

func run() (int, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	defaultConfigPath := os.Getenv("OCR_CLIENT_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/ocr-client/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	imagePath := flag.String("image", "", "Path to the product image to analyze")
	resultID := flag.String("id", "", "Poll an existing image ID instead of uploading")
	flag.Parse()

	if *imagePath == "" && *resultID == "" {
		return exitError, fmt.Errorf("one of -image or -id is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return exitError, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateClientConfig(); err != nil {
		return exitError, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging)
	if err != nil {
		return exitError, fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer appLogger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.New(cfg.Poller.BaseURL, cfg.Poller.RequestTimeout, appLogger.Logger)

	jobID := *resultID
	if jobID == "" {
		jobID, err = submit(ctx, api, *imagePath, appLogger.Logger)
		if err != nil {
			return exitError, err
		}
	}

	poller := client.NewPoller(api, appLogger.Logger)
	poller.Interval = cfg.Poller.Interval
	poller.MaxAttempts = cfg.Poller.MaxAttempts
	poller.BackoffMultiplier = cfg.Poller.BackoffMultiplier
	poller.MaxInterval = cfg.Poller.MaxInterval

	result, attempts, err := poller.Poll(ctx, jobID)
	if errors.Is(err, client.ErrTimeout) {
		return exitTimeout, err
	}
	if err != nil {
		return exitError, fmt.Errorf("failed to poll result: %w", err)
	}

	appLogger.Info("Job finished",
		slog.String("image_id", jobID),
		slog.String("status", result.Status),
		slog.Int("attempts", attempts),
	)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return exitError, fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(out))

	if result.Status == domain.JobStatusFailed.String() {
		return exitFailed, nil
	}
	return exitCompleted, nil
}

// submit registers the image and uploads it through the returned URL
func submit(ctx context.Context, api *client.Client, path string, logger *slog.Logger) (string, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read image: %w", err)
	}

	fileName := filepath.Base(path)
	contentType := detectContentType(fileName, image)

	upload, err := api.Submit(ctx, fileName, contentType)
	if err != nil {
		return "", fmt.Errorf("failed to submit image: %w", err)
	}

	if err := api.Upload(ctx, upload.UploadURL, contentType, image); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	logger.Info("Image uploaded",
		slog.String("image_id", upload.ImageID),
		slog.String("storage_key", upload.StorageKey),
		slog.String("content_type", contentType),
	)
	return upload.ImageID, nil
}

// detectContentType prefers the file extension and falls back to sniffing the bytes
func detectContentType(fileName string, data []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(fileName)); ct != "" {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	mediaType, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	return mediaType
}
