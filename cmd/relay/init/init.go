// Package initcmder provides the init command for initializing a local .relay
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/dotdir"
)

const initLongDesc string = `Initialize a new .relay/ directory in the current working directory.

Creates a local .relay/ directory that takes precedence over the default
~/.relay/ directory for configuration and credentials. With --preset, a
config.toml pointed at the named provider is written as well.

Available presets: anthropic, openai, ollama

Examples:
  relay init
  relay init --preset ollama`

const initShortDesc string = "Initialize a local .relay/ directory"

func NewInitCmd() *cobra.Command {
	var preset string

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd.OutOrStdout(), preset)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "", "Write a config.toml for a provider ("+strings.Join(config.ValidPresetNames(), ", ")+")")

	return cmd
}

func runInit(out io.Writer, preset string) error {
	var cfg *config.Config
	if preset != "" {
		var err error
		cfg, err = config.PresetConfig(preset)
		if err != nil {
			return err
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dotdir.DirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		fmt.Fprintf(out, "Already initialized: %s\n", dir)
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("checking %s: %w", dir, err)
	default:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating .relay directory: %w", err)
		}
		fmt.Fprintf(out, "Initialized .relay directory: %s\n", dir)
	}

	if cfg == nil {
		return nil
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Wrote %s preset to %s\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(strings.ToLower(preset)),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
	return nil
}
