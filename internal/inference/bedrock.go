package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

const anthropicVersion = "bedrock-2023-05-31"

// BedrockAPI is the subset of the Bedrock runtime client used here
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient invokes an Anthropic model hosted on Bedrock
type BedrockClient struct {
	api       BedrockAPI
	modelID   string
	maxTokens int
	logger    *slog.Logger
}

type anthropicSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContent struct {
	Type   string           `json:"type"`
	Text   string           `json:"text,omitempty"`
	Source *anthropicSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewBedrockClient creates a Bedrock-backed inference client
func NewBedrockClient(api BedrockAPI, modelID string, maxTokens int, logger *slog.Logger) *BedrockClient {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &BedrockClient{
		api:       api,
		modelID:   modelID,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// Analyze sends the image followed by the prompt and returns the concatenated text blocks
func (c *BedrockClient) Analyze(ctx context.Context, req Request) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        c.maxTokens,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContent{
				{
					Type: "image",
					Source: &anthropicSource{
						Type:      "base64",
						MediaType: req.MediaType,
						Data:      req.base64Image(),
					},
				},
				{Type: "text", Text: Prompt},
			},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal bedrock request: %w", err)
	}

	start := time.Now()
	out, err := c.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock invoke failed: %w", err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("failed to decode bedrock response: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("bedrock response has no text content")
	}

	c.logger.Info("Inference completed",
		slog.String("job_id", req.JobID),
		slog.String("provider", ProviderBedrock),
		slog.String("stop_reason", resp.StopReason),
		slog.Duration("elapsed", time.Since(start)),
	)

	return sb.String(), nil
}
