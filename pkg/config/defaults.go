package config

import (
	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/llm/provider"
)

const (
	defaultProvider    = provider.Anthropic
	defaultListen      = ":8080"
	defaultRoute       = "/api/generate"
	defaultAllowOrigin = "*"

	defaultClientEndpoint = "http://localhost:8080/api/generate"
	defaultUpdateInterval = "1s"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	temperature := llm.DefaultTemperature

	return &Config{
		Version: CurrentV,
		Relay: RelayConfig{
			Listen:      defaultListen,
			Route:       defaultRoute,
			Provider:    defaultProvider,
			AllowOrigin: defaultAllowOrigin,
		},
		Defaults: DefaultsConfig{
			MaxTokens:   llm.DefaultMaxTokens,
			Temperature: &temperature,
		},
		Client: ClientConfig{
			Endpoint:       defaultClientEndpoint,
			Provider:       defaultProvider,
			UpdateInterval: defaultUpdateInterval,
		},
	}
}

// Generation converts the [defaults] section into the values the relay
// applies to requests. Unset fields keep the built-in defaults.
func (d DefaultsConfig) Generation() llm.Defaults {
	out := llm.NewDefaults()
	out.Model = d.Model
	if d.MaxTokens > 0 {
		out.MaxTokens = int(d.MaxTokens)
	}
	if d.Temperature != nil {
		out.Temperature = *d.Temperature
	}
	return out
}
