// Package extract turns free-form model output into validated product attributes.
package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/pandson7/product-image-ocr-112820251703/internal/domain"
)

const productSchemaURL = "product.schema.json"

// Bounds on a stored result. Normalize coerces types; these limits are left to the schema.
const (
	MaxFieldLength       = 256
	MaxDescriptionLength = 2000
	MaxAdditionalDetails = 50
	MaxDetailValueLength = 1000
)

// ProductSchema is the shape a normalized payload must satisfy
var ProductSchema = fmt.Sprintf(`{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "productName": {"type": "string", "maxLength": %[1]d},
    "brand": {"type": "string", "maxLength": %[1]d},
    "category": {"type": "string", "maxLength": %[1]d},
    "price": {"type": "string", "maxLength": %[1]d},
    "dimensions": {"type": "string", "maxLength": %[1]d},
    "weight": {"type": "string", "maxLength": %[1]d},
    "description": {"type": "string", "maxLength": %[2]d},
    "additionalDetails": {
      "type": "object",
      "maxProperties": %[3]d,
      "additionalProperties": {"maxLength": %[4]d}
    }
  },
  "additionalProperties": false
}`, MaxFieldLength, MaxDescriptionLength, MaxAdditionalDetails, MaxDetailValueLength)

// Extractor parses model responses into domain.ExtractedData
type Extractor struct {
	schema *jsonschema.Schema
	logger *slog.Logger
}

// NewExtractor compiles the product schema
func NewExtractor(logger *slog.Logger) (*Extractor, error) {
	if logger == nil {
		logger = slog.Default()
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(productSchemaURL, strings.NewReader(ProductSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile(productSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	return &Extractor{schema: schema, logger: logger}, nil
}

// Extract locates the JSON payload in text, normalizes it and validates it.
func (e *Extractor) Extract(text string) (*domain.ExtractedData, error) {
	payload := Payload(text)
	if payload == "" {
		return nil, fmt.Errorf("model response is empty")
	}

	var decoded any
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("model response is not valid JSON: %w", err)
	}
	m, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("model response is not a JSON object")
	}

	logChanged(e.logger, Normalize(m))

	if err := e.schema.Validate(m); err != nil {
		return nil, fmt.Errorf("model response does not match product schema: %w", err)
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode normalized payload: %w", err)
	}
	var data domain.ExtractedData
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to decode normalized payload: %w", err)
	}
	return &data, nil
}
