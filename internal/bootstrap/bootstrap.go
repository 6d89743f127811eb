// Package bootstrap builds the clients and services shared by the binaries from a loaded Config.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pandson7/product-image-ocr-112820251703/internal/config"
	"github.com/pandson7/product-image-ocr-112820251703/internal/extract"
	"github.com/pandson7/product-image-ocr-112820251703/internal/inference"
	"github.com/pandson7/product-image-ocr-112820251703/internal/store"
	"github.com/pandson7/product-image-ocr-112820251703/internal/worker"
	"github.com/pandson7/product-image-ocr-112820251703/shared/awsclient"
	"github.com/pandson7/product-image-ocr-112820251703/shared/logger"
	"github.com/pandson7/product-image-ocr-112820251703/shared/objectstore"
	"github.com/pandson7/product-image-ocr-112820251703/shared/postgresql"
	"github.com/pandson7/product-image-ocr-112820251703/shared/rabbitmq"
)

// JobStore is the configured store plus the connection behind it, if any
type JobStore struct {
	store.JobStore
	db *postgresql.Client
}

// HealthCheck pings the database; stores without a connection are always healthy
func (s *JobStore) HealthCheck(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	return s.db.HealthCheck(ctx)
}

// Close releases the database connection
func (s *JobStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// NewLogger initializes and configures the application logger
func NewLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	})
}

// NewJobStore opens the store selected by cfg.Store.Backend
func NewJobStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (*JobStore, error) {
	switch cfg.Store.Backend {
	case config.StoreBackendPostgres:
		db, err := NewPostgreSQL(&cfg.Database, log)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgresStore(db.GetDB(), log)
		if cfg.Store.EnsureSchema {
			if err := pg.EnsureSchema(ctx); err != nil {
				db.Close()
				return nil, err
			}
		}
		return &JobStore{JobStore: pg, db: db}, nil

	case config.StoreBackendDynamoDB:
		awsCfg, err := awsclient.LoadConfig(ctx, &awsclient.Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		}, log)
		if err != nil {
			return nil, err
		}
		dynamo := awsclient.NewDynamoDB(awsCfg, cfg.DynamoDB.Endpoint)
		return &JobStore{JobStore: store.NewDynamoStore(dynamo, cfg.DynamoDB.TableName, log)}, nil

	case config.StoreBackendMemory:
		log.Warn("Using in-memory job store; records are lost on restart")
		return &JobStore{JobStore: store.NewMemoryStore()}, nil

	default:
		return nil, fmt.Errorf("unknown store backend: %q", cfg.Store.Backend)
	}
}

// NewPostgreSQL initializes the PostgreSQL database client
func NewPostgreSQL(cfg *config.DatabaseConfig, log *slog.Logger) (*postgresql.Client, error) {
	return postgresql.NewClient(&postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	}, log)
}

// NewObjectStore initializes the object storage client, creating the bucket when asked to
func NewObjectStore(ctx context.Context, cfg *config.StorageConfig, log *slog.Logger) (*objectstore.Client, error) {
	client, err := objectstore.NewClient(&objectstore.Config{
		Endpoint:  cfg.Endpoint,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Region:    cfg.Region,
		Bucket:    cfg.Bucket,
		UseSSL:    cfg.UseSSL,
	}, log)
	if err != nil {
		return nil, err
	}

	if cfg.CreateBucket {
		if err := client.EnsureBucket(ctx, cfg.Region); err != nil {
			return nil, err
		}
	}
	return client, nil
}

// NewInference creates the inference client for cfg.Inference.Provider
func NewInference(ctx context.Context, cfg *config.Config, log *slog.Logger) (inference.Client, error) {
	switch cfg.Inference.Provider {
	case config.InferenceProviderBedrock:
		awsCfg, err := awsclient.LoadConfig(ctx, &awsclient.Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
		}, log)
		if err != nil {
			return nil, err
		}
		runtime := awsclient.NewBedrockRuntime(awsCfg, cfg.Inference.Region)
		return inference.NewBedrockClient(runtime, cfg.Inference.ModelID, cfg.Inference.MaxTokens, log), nil

	case config.InferenceProviderOpenAI:
		return inference.NewOpenAIClient(inference.OpenAIConfig{
			BaseURL:   cfg.Inference.BaseURL,
			APIKey:    cfg.Inference.APIKey,
			Model:     cfg.Inference.ModelID,
			MaxTokens: cfg.Inference.MaxTokens,
			Timeout:   cfg.Inference.Timeout,
		}, log), nil

	default:
		return nil, fmt.Errorf("unknown inference provider: %q", cfg.Inference.Provider)
	}
}

// NewProcessor wires the OCR pipeline: object storage, inference and extraction over jobStore
func NewProcessor(ctx context.Context, cfg *config.Config, jobStore store.JobStore, log *slog.Logger) (*worker.Processor, error) {
	objects, err := NewObjectStore(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	inf, err := NewInference(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize inference client: %w", err)
	}

	extractor, err := extract.NewExtractor(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractor: %w", err)
	}

	return worker.NewProcessor(&worker.ProcessorConfig{
		Logger:         log,
		Store:          jobStore,
		Objects:        objects,
		Inference:      inf,
		Extractor:      extractor,
		MaxObjectBytes: cfg.Storage.MaxObjectBytes,
		JobTimeout:     cfg.Worker.JobTimeout,
	}), nil
}

// NewRabbitMQ initializes the RabbitMQ client
func NewRabbitMQ(cfg *config.RabbitMQConfig, log *slog.Logger) (*rabbitmq.Client, error) {
	return rabbitmq.NewClient(&rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueName:          cfg.Queue.Name,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		QueueExclusive:     cfg.Queue.Exclusive,
		RoutingKey:         cfg.RoutingKey,
		DeadLetterExchange: cfg.DeadLetterExchange,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}, log)
}
