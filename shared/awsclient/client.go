// Package awsclient builds the AWS SDK clients a process needs once at startup.
package awsclient

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Config selects region and optional static credentials
type Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// LoadConfig resolves an aws.Config from the default chain plus the overrides in cfg
func LoadConfig(ctx context.Context, cfg *Config, logger *slog.Logger) (aws.Config, error) {
	opts := []func(*config.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}

	logger.Info("AWS config loaded",
		slog.String("region", awsCfg.Region),
		slog.Bool("static_credentials", cfg.AccessKeyID != ""),
	)

	return awsCfg, nil
}

// NewDynamoDB creates a DynamoDB client; a non-empty endpoint overrides the default (DynamoDB Local, LocalStack)
func NewDynamoDB(awsCfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewBedrockRuntime creates a Bedrock runtime client for the given region
func NewBedrockRuntime(awsCfg aws.Config, region string) *bedrockruntime.Client {
	return bedrockruntime.NewFromConfig(awsCfg, func(o *bedrockruntime.Options) {
		if region != "" {
			o.Region = region
		}
	})
}
