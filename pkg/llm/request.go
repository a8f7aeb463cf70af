// Package llm holds the provider-agnostic request and stream event types
// exchanged between the relay, its upstream providers, and stream consumers.
package llm

import (
	"bytes"
	"encoding/json"
)

// Built-in generation defaults, applied when a request omits the field.
const (
	DefaultMaxTokens   = 50000
	DefaultTemperature = 0.5
)

// GenerationRequest is the JSON body accepted by the relay endpoint.
type GenerationRequest struct {
	// APIKey is the caller's upstream credential. It is forwarded to the
	// provider for this request only and never logged.
	APIKey string `json:"apiKey"`

	Prompt string `json:"prompt"`

	// Optional generation parameters. Pointers distinguish "omitted" from an
	// explicit zero value.
	Model       string   `json:"model,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

// Defaults are the values filled into a GenerationRequest for omitted fields.
type Defaults struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// ParseGenerationRequest decodes and validates a relay request body.
// Every failure is a *ValidationError.
func ParseGenerationRequest(body []byte) (*GenerationRequest, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, &ValidationError{Message: "Missing request body"}
	}

	var req GenerationRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, &ValidationError{Message: "Invalid request body", Err: err}
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	return &req, nil
}

// Validate checks the required fields.
func (r *GenerationRequest) Validate() error {
	if r.APIKey == "" {
		return &ValidationError{Message: "Missing API key"}
	}
	if r.Prompt == "" {
		return &ValidationError{Message: "Missing prompt"}
	}
	return nil
}

// ApplyDefaults fills omitted optional fields from d. A non-positive
// d.MaxTokens falls back to DefaultMaxTokens; an empty d.Model leaves the model
// unset so the provider can choose its own.
func (r *GenerationRequest) ApplyDefaults(d Defaults) {
	if r.Model == "" {
		r.Model = d.Model
	}

	if r.MaxTokens == nil {
		maxTokens := d.MaxTokens
		if maxTokens <= 0 {
			maxTokens = DefaultMaxTokens
		}
		r.MaxTokens = &maxTokens
	}

	if r.Temperature == nil {
		temperature := d.Temperature
		r.Temperature = &temperature
	}
}

// NewDefaults returns the built-in defaults.
func NewDefaults() Defaults {
	return Defaults{
		MaxTokens:   DefaultMaxTokens,
		Temperature: DefaultTemperature,
	}
}
