package relay

import (
	"net/http"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/llm/provider"
)

// Default configuration values.
const (
	DefaultListenAddr  = ":8080"
	DefaultRoute       = "/api/generate"
	DefaultAllowOrigin = "*"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// Route is the path of the generation endpoint (e.g., "/api/generate")
	Route string

	// ProviderType selects the upstream API (e.g., "anthropic", "openai", "ollama")
	ProviderType string

	// UpstreamURL overrides the provider's public base URL.
	UpstreamURL string

	// AllowOrigin is the Access-Control-Allow-Origin value of every response
	// on the route.
	AllowOrigin string

	// Defaults fill omitted generation parameters.
	Defaults llm.Defaults

	// HTTPClient is used for upstream calls. Defaults to a client without a
	// timeout so long generations are bounded by the request only.
	HTTPClient *http.Client

	// Provider replaces the provider selected by ProviderType.
	Provider provider.Provider
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.Route == "" {
		c.Route = DefaultRoute
	}
	if c.ProviderType == "" {
		c.ProviderType = provider.Anthropic
	}
	if c.AllowOrigin == "" {
		c.AllowOrigin = DefaultAllowOrigin
	}
	if c.Defaults.MaxTokens <= 0 {
		c.Defaults.MaxTokens = llm.DefaultMaxTokens
	}
}
