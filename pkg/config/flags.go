package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag bound to a config key.
// Commands reference flags by registry key so names, shorthands, defaults and
// descriptions cannot drift between commands.
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "relay.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet maps registry keys to flag definitions.
type FlagSet map[string]Flag

// Flag registry keys.
const (
	FlagListen             = "listen"
	FlagRoute              = "route"
	FlagProvider           = "provider"
	FlagUpstream           = "upstream"
	FlagAllowOrigin        = "allow-origin"
	FlagDefaultModel       = "default-model"
	FlagDefaultMaxTokens   = "default-max-tokens"
	FlagDefaultTemperature = "default-temperature"
)

// ServeFlags are the flags of "relay serve".
var ServeFlags = FlagSet{
	FlagListen: {
		Name: "listen", Shorthand: "l", ViperKey: "relay.listen",
		Description: "Address for the relay to listen on",
	},
	FlagRoute: {
		Name: "route", ViperKey: "relay.route",
		Description: "Path of the streaming generation endpoint",
	},
	FlagProvider: {
		Name: "provider", Shorthand: "p", ViperKey: "relay.provider",
		Description: "Upstream provider type (anthropic, openai, ollama)",
	},
	FlagUpstream: {
		Name: "upstream", Shorthand: "u", ViperKey: "relay.upstream",
		Description: "Upstream API base URL (default: the provider's public endpoint)",
	},
	FlagAllowOrigin: {
		Name: "allow-origin", ViperKey: "relay.allow_origin",
		Description: "Value of Access-Control-Allow-Origin",
	},
	FlagDefaultModel: {
		Name: "default-model", ViperKey: "defaults.model",
		Description: "Model used when a request names none (default: the provider's)",
	},
	FlagDefaultMaxTokens: {
		Name: "default-max-tokens", ViperKey: "defaults.max_tokens",
		Description: "Token limit used when a request sets none",
	},
	FlagDefaultTemperature: {
		Name: "default-temperature", ViperKey: "defaults.temperature",
		Description: "Temperature used when a request sets none",
	},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaults().GetString(def.ViperKey), def.Description)
}

// AddUintFlag registers a uint flag on cmd from the given FlagSet.
func AddUintFlag(cmd *cobra.Command, fs FlagSet, key string, target *uint) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().UintVarP(target, def.Name, def.Shorthand, defaults().GetUint(def.ViperKey), def.Description)
}

// AddFloat64Flag registers a float64 flag on cmd from the given FlagSet.
func AddFloat64Flag(cmd *cobra.Command, fs FlagSet, key string, target *float64) {
	def, ok := fs[key]
	if !ok {
		return
	}
	cmd.Flags().Float64VarP(target, def.Name, def.Shorthand, defaults().GetFloat64(def.ViperKey), def.Description)
}

// BindRegisteredFlags binds already-registered flags to viper. Call it in
// PreRunE after InitViper to complete the flag > env > file > default chain.
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, keys []string) {
	for _, key := range keys {
		def, ok := fs[key]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaults returns a viper holding only NewDefaultConfig().
func defaults() *viper.Viper {
	v := viper.New()
	setViperDefaults(v)
	return v
}
