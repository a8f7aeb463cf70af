// Package configcmder provides the config command for managing persistent
// relay configuration stored in the .relay/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
)

const configLongDesc string = `Manage persistent relay configuration.

Configuration is stored as config.toml in the .relay/ directory and provides
default values for command flags. CLI flags always take precedence over
config file values; for relay serve, RELAY_* environment variables sit
between the two.

Keys use dotted notation matching the TOML section structure:
  relay.listen, relay.route, relay.provider, relay.upstream, relay.allow_origin,
  defaults.model, defaults.max_tokens, defaults.temperature,
  client.endpoint, client.provider, client.update_interval

Use subcommands to get, set, or list configuration values:
  relay config set <key> <value>    Set a configuration value
  relay config get <key>            Get a configuration value
  relay config list                 List all configuration values

Examples:
  relay config set relay.provider openai
  relay config set defaults.temperature 0.2
  relay config get client.endpoint
  relay config list`

const configShortDesc string = "Manage persistent relay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func checkKey(key string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}
	return nil
}

func printTarget(out io.Writer, cfger *config.Configer) {
	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
}
