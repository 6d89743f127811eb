// Package inference sends product images to a multimodal model and returns its raw text answer.
package inference

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

const (
	ProviderBedrock = "bedrock"
	ProviderOpenAI  = "openai"

	DefaultMaxTokens = 1000
)

// Prompt is the fixed instruction sent alongside every image
const Prompt = `Extract the product information visible in this image and answer with a single JSON object using exactly these keys:
{
  "productName": "string",
  "brand": "string",
  "category": "string",
  "price": "string",
  "dimensions": "string",
  "weight": "string",
  "description": "string",
  "additionalDetails": {}
}
Leave out keys you cannot determine. Respond with the JSON object only.`

// Request is one image to analyze
type Request struct {
	JobID     string
	Image     []byte
	MediaType string
}

// Client calls an inference service
type Client interface {
	Analyze(ctx context.Context, req Request) (string, error)
}

func (r Request) validate() error {
	if len(r.Image) == 0 {
		return fmt.Errorf("image is empty")
	}
	if !strings.HasPrefix(r.MediaType, "image/") {
		return fmt.Errorf("unsupported media type %q", r.MediaType)
	}
	return nil
}

func (r Request) base64Image() string {
	return base64.StdEncoding.EncodeToString(r.Image)
}
