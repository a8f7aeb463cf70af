package config

import (
	"fmt"
	"strconv"
	"time"
)

// Config is the persistent relay configuration stored as config.toml in the
// .relay/ directory.
type Config struct {
	Version  int            `toml:"version"`
	Relay    RelayConfig    `toml:"relay"`
	Defaults DefaultsConfig `toml:"defaults"`
	Client   ClientConfig   `toml:"client"`
}

// RelayConfig holds settings for "relay serve".
type RelayConfig struct {
	Listen      string `toml:"listen,omitempty"`
	Route       string `toml:"route,omitempty"`
	Provider    string `toml:"provider,omitempty"`
	Upstream    string `toml:"upstream,omitempty"`
	AllowOrigin string `toml:"allow_origin,omitempty"`
}

// DefaultsConfig holds the generation parameters the relay applies when a
// request omits them. An empty model means the provider's own default.
type DefaultsConfig struct {
	Model       string   `toml:"model,omitempty"`
	MaxTokens   uint     `toml:"max_tokens,omitempty"`
	Temperature *float64 `toml:"temperature,omitempty"`
}

// ClientConfig holds settings for "relay generate".
type ClientConfig struct {
	// Endpoint is the full URL of the relay route.
	Endpoint string `toml:"endpoint,omitempty"`

	// Provider selects which stored credential is sent as the apiKey.
	Provider string `toml:"provider,omitempty"`

	// UpdateInterval bounds how often progress is reported and partial
	// output is written, as a Go duration string.
	UpdateInterval string `toml:"update_interval,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"relay.listen":       stringKey(func(c *Config) *string { return &c.Relay.Listen }),
	"relay.route":        stringKey(func(c *Config) *string { return &c.Relay.Route }),
	"relay.provider":     stringKey(func(c *Config) *string { return &c.Relay.Provider }),
	"relay.upstream":     stringKey(func(c *Config) *string { return &c.Relay.Upstream }),
	"relay.allow_origin": stringKey(func(c *Config) *string { return &c.Relay.AllowOrigin }),
	"defaults.model":     stringKey(func(c *Config) *string { return &c.Defaults.Model }),
	"defaults.max_tokens": {
		get: func(c *Config) string {
			if c.Defaults.MaxTokens == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Defaults.MaxTokens), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				return fmt.Errorf("invalid value for defaults.max_tokens: %w", err)
			}
			c.Defaults.MaxTokens = uint(n)
			return nil
		},
	},
	"defaults.temperature": {
		get: func(c *Config) string {
			if c.Defaults.Temperature == nil {
				return ""
			}
			return strconv.FormatFloat(*c.Defaults.Temperature, 'g', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for defaults.temperature: %w", err)
			}
			if f < 0 || f > 2 {
				return fmt.Errorf("invalid value for defaults.temperature: %v is outside [0, 2]", f)
			}
			c.Defaults.Temperature = &f
			return nil
		},
	},
	"client.endpoint": stringKey(func(c *Config) *string { return &c.Client.Endpoint }),
	"client.provider": stringKey(func(c *Config) *string { return &c.Client.Provider }),
	"client.update_interval": {
		get: func(c *Config) string { return c.Client.UpdateInterval },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for client.update_interval: %w", err)
			}
			c.Client.UpdateInterval = v
			return nil
		},
	},
}

// orderedKeys lists configKeys in TOML section order.
var orderedKeys = []string{
	"relay.listen",
	"relay.route",
	"relay.provider",
	"relay.upstream",
	"relay.allow_origin",
	"defaults.model",
	"defaults.max_tokens",
	"defaults.temperature",
	"client.endpoint",
	"client.provider",
	"client.update_interval",
}
