package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/papercomputeco/relay/pkg/dotdir"
)

// EnvPrefix prefixes every environment variable override (RELAY_RELAY_LISTEN,
// RELAY_CLIENT_ENDPOINT, ...).
const EnvPrefix = "RELAY"

// InitViper creates a *viper.Viper seeded with NewDefaultConfig(), the
// config.toml found through dotdir resolution, and RELAY_ environment
// variables.
//
// Precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables
//  3. config.toml values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()
	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}
	v.AddConfigPath(target)

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v, nil
}

// setViperDefaults registers NewDefaultConfig() under dotted keys so
// defaults.go stays the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	v.SetDefault("relay.listen", d.Relay.Listen)
	v.SetDefault("relay.route", d.Relay.Route)
	v.SetDefault("relay.provider", d.Relay.Provider)
	v.SetDefault("relay.upstream", d.Relay.Upstream)
	v.SetDefault("relay.allow_origin", d.Relay.AllowOrigin)

	v.SetDefault("defaults.model", d.Defaults.Model)
	v.SetDefault("defaults.max_tokens", d.Defaults.MaxTokens)
	v.SetDefault("defaults.temperature", *d.Defaults.Temperature)

	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.provider", d.Client.Provider)
	v.SetDefault("client.update_interval", d.Client.UpdateInterval)
}
