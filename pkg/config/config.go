// Package config manages config.toml and the flag/env/file precedence chain
// used by relay commands.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/papercomputeco/relay/pkg/dotdir"
	"github.com/papercomputeco/relay/pkg/llm/provider"
)

const (
	configFile = "config.toml"

	// v0 is the alpha version of the config
	v0 = 0

	// CurrentV is the currently supported version, points to v0
	CurrentV = v0
)

type Configer struct {
	targetPath string
}

func NewConfiger(override string) (*Configer, error) {
	path, err := dotdir.NewManager().File(override, configFile)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	return &Configer{targetPath: path}, nil
}

// ValidConfigKeys returns all supported configuration keys in section order.
func ValidConfigKeys() []string {
	keys := make([]string, 0, len(orderedKeys))
	for _, k := range orderedKeys {
		if _, ok := configKeys[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsValidConfigKey returns true if the given key is a supported configuration key.
func IsValidConfigKey(key string) bool {
	_, ok := configKeys[key]
	return ok
}

func (c *Configer) GetTarget() string {
	return c.targetPath
}

// LoadConfig loads config.toml from the target .relay/ directory. A missing
// file yields NewDefaultConfig(); fields set in the file override defaults.
func (c *Configer) LoadConfig() (*Config, error) {
	data, err := os.ReadFile(c.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewDefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg, err := ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	return cfg, nil
}

// applyDefaults fills zero-value fields in cfg from NewDefaultConfig().
func applyDefaults(cfg *Config) {
	d := NewDefaultConfig()

	fill := func(dst *string, def string) {
		if *dst == "" {
			*dst = def
		}
	}

	fill(&cfg.Relay.Listen, d.Relay.Listen)
	fill(&cfg.Relay.Route, d.Relay.Route)
	fill(&cfg.Relay.Provider, d.Relay.Provider)
	fill(&cfg.Relay.AllowOrigin, d.Relay.AllowOrigin)
	fill(&cfg.Client.Endpoint, d.Client.Endpoint)
	fill(&cfg.Client.Provider, d.Client.Provider)
	fill(&cfg.Client.UpdateInterval, d.Client.UpdateInterval)

	if cfg.Defaults.MaxTokens == 0 {
		cfg.Defaults.MaxTokens = d.Defaults.MaxTokens
	}
	if cfg.Defaults.Temperature == nil {
		cfg.Defaults.Temperature = d.Defaults.Temperature
	}
}

// SaveConfig persists the configuration to config.toml.
func (c *Configer) SaveConfig(cfg *Config) error {
	if cfg == nil {
		return errors.New("cannot save nil config")
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(c.targetPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// SetConfigValue loads the config, sets key to value, and saves it.
func (c *Configer) SetConfigValue(key string, value string) error {
	info, ok := configKeys[key]
	if !ok {
		return fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return err
	}

	if err := info.set(cfg, value); err != nil {
		return err
	}

	return c.SaveConfig(cfg)
}

// GetConfigValue loads the config and returns the string form of key.
func (c *Configer) GetConfigValue(key string) (string, error) {
	info, ok := configKeys[key]
	if !ok {
		return "", fmt.Errorf("unknown config key: %q", key)
	}

	cfg, err := c.LoadConfig()
	if err != nil {
		return "", err
	}

	return info.get(cfg), nil
}

// PresetConfig returns a default Config pointed at the named provider.
func PresetConfig(name string) (*Config, error) {
	cfg := NewDefaultConfig()

	switch strings.ToLower(name) {
	case provider.Anthropic:
		cfg.Relay.Provider = provider.Anthropic
		cfg.Relay.Upstream = "https://api.anthropic.com"
	case provider.OpenAI:
		cfg.Relay.Provider = provider.OpenAI
		cfg.Relay.Upstream = "https://api.openai.com"
		cfg.Client.Provider = provider.OpenAI
	case provider.Ollama:
		cfg.Relay.Provider = provider.Ollama
		cfg.Relay.Upstream = "http://localhost:11434"
		cfg.Client.Provider = provider.Ollama
	default:
		return nil, fmt.Errorf("unknown preset: %q (available: %s)", name, strings.Join(ValidPresetNames(), ", "))
	}

	return cfg, nil
}

// ValidPresetNames returns the list of recognized preset names.
func ValidPresetNames() []string {
	return provider.SupportedProviders()
}

// ParseConfigTOML parses raw TOML bytes into a Config.
// Returns an error if the version field is present and not equal to CurrentV.
func ParseConfigTOML(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config TOML: %w", err)
	}

	if cfg.Version != 0 && cfg.Version != CurrentV {
		return nil, fmt.Errorf("unsupported config version %d (expected %d)", cfg.Version, CurrentV)
	}

	return cfg, nil
}
