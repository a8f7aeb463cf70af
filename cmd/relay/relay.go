// Package relaycmder
package relaycmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/relay/cmd/relay/auth"
	configcmder "github.com/papercomputeco/relay/cmd/relay/config"
	generatecmder "github.com/papercomputeco/relay/cmd/relay/generate"
	initcmder "github.com/papercomputeco/relay/cmd/relay/init"
	servecmder "github.com/papercomputeco/relay/cmd/relay/serve"
	versioncmder "github.com/papercomputeco/relay/cmd/version"
)

const relayLongDesc string = `Relay streams LLM generations to clients as server-sent events.

Run the server and talk to it using:
  relay serve                  Run the relay server
  relay generate <prompt>      Stream a generation through a relay
  relay auth <provider>        Store an API key used by generate
  relay config list            Show persistent configuration`

const relayShortDesc string = "Relay - streaming LLM relay"

func NewRelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "relay",
		Short:        relayShortDesc,
		Long:         relayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .relay/ config directory")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(generatecmder.NewGenerateCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
