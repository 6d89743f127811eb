package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/pandson7/product-image-ocr-112820251703/internal/bootstrap"
	"github.com/pandson7/product-image-ocr-112820251703/internal/config"
	"github.com/pandson7/product-image-ocr-112820251703/shared/logger"
)

func main() {
	h, err := setup()
	if err != nil {
		// config may not have loaded, so report with the default logger
		logger.NewDefault().Error("OCR function failed to initialize", slog.Any("error", err))
		os.Exit(1)
	}
	lambda.Start(h.Handle)
}

// setup builds every client once per execution environment
func setup() (*handler, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	configPath := os.Getenv("OCR_LAMBDA_CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/ocr-lambda/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateProcessorConfig(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	appLogger, err := bootstrap.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Initializing OCR function",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("inference_provider", cfg.Inference.Provider),
	)

	ctx := context.Background()

	jobStore, err := bootstrap.NewJobStore(ctx, cfg, appLogger.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize job store: %w", err)
	}

	processor, err := bootstrap.NewProcessor(ctx, cfg, jobStore, appLogger.Logger)
	if err != nil {
		jobStore.Close()
		return nil, err
	}

	return &handler{logger: appLogger.Logger, processor: processor}, nil
}
