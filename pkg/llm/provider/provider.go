// Package provider selects the upstream model API the relay streams from.
package provider

import (
	"context"

	"github.com/papercomputeco/relay/pkg/llm"
)

// Provider opens streaming generation calls against one upstream API.
type Provider interface {
	// Name returns the canonical provider name (e.g., "anthropic", "openai", "ollama").
	Name() string

	// DefaultModel is used when neither the request nor the relay defaults
	// name a model.
	DefaultModel() string

	// Stream starts one generation and returns the pull-based event sequence.
	// An error means the call was rejected before any increment was produced.
	Stream(ctx context.Context, req *llm.GenerationRequest) (llm.Stream, error)
}
