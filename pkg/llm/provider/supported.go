package provider

import (
	"fmt"
	"net/http"

	"github.com/papercomputeco/relay/pkg/llm/provider/anthropic"
	"github.com/papercomputeco/relay/pkg/llm/provider/ollama"
	"github.com/papercomputeco/relay/pkg/llm/provider/openai"
)

// Supported provider type constants
const (
	Anthropic = "anthropic"
	OpenAI    = "openai"
	Ollama    = "ollama"
)

// Options configure the upstream connection of a provider.
type Options struct {
	// BaseURL overrides the provider's public endpoint.
	BaseURL string

	// HTTPClient is used for upstream calls. Streaming calls must not carry
	// a client-wide timeout.
	HTTPClient *http.Client
}

// SupportedProviders returns the list of all supported provider type names.
func SupportedProviders() []string {
	return []string{Anthropic, OpenAI, Ollama}
}

// New creates a new Provider instance for the given provider type.
// Returns an error if the provider type is not recognized.
func New(providerType string, opts Options) (Provider, error) {
	switch providerType {
	case Anthropic:
		return anthropic.New(opts.BaseURL, opts.HTTPClient), nil
	case OpenAI:
		return openai.New(opts.BaseURL, opts.HTTPClient), nil
	case Ollama:
		return ollama.New(opts.BaseURL, opts.HTTPClient), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %q (supported: %v)", providerType, SupportedProviders())
	}
}
