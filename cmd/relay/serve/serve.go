// Package servecmder provides the relay server command.
package servecmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/relay"
)

type serveCommander struct {
	listen       string
	route        string
	providerType string
	upstream     string
	allowOrigin  string

	defaultModel       string
	defaultMaxTokens   uint
	defaultTemperature float64

	debug    bool
	jsonLogs bool
	logFile  string

	logger *slog.Logger
}

const serveLongDesc string = `Run the relay server.

The relay accepts a JSON generation request on a single POST route, opens one
streaming call to the configured upstream provider using the caller's API key,
and re-emits every text increment as a server-sent event:

  data: {"text":"..."}     one per increment, in order
  data: {"done":true}      once the generation completed
  data: {"error":"..."}    once if the generation failed

Flag values fall back to RELAY_* environment variables, then config.toml,
then built-in defaults.

With --log-file, every record is also appended to the file as JSON with its
source location, next to the console output.

Supported provider types: anthropic, openai, ollama`

const serveShortDesc string = "Run the relay server"

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagRoute,
	config.FlagProvider,
	config.FlagUpstream,
	config.FlagAllowOrigin,
	config.FlagDefaultModel,
	config.FlagDefaultMaxTokens,
	config.FlagDefaultTemperature,
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return cmder.resolve(cmd, configDir)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ServeFlags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagRoute, &cmder.route)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagProvider, &cmder.providerType)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAllowOrigin, &cmder.allowOrigin)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagDefaultModel, &cmder.defaultModel)
	config.AddUintFlag(cmd, config.ServeFlags, config.FlagDefaultMaxTokens, &cmder.defaultMaxTokens)
	config.AddFloat64Flag(cmd, config.ServeFlags, config.FlagDefaultTemperature, &cmder.defaultTemperature)
	cmd.Flags().BoolVar(&cmder.jsonLogs, "json-logs", false, "Write structured JSON logs")
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

// resolve applies the flag > env > config.toml > default chain.
func (c *serveCommander) resolve(cmd *cobra.Command, configDir string) error {
	v, err := config.InitViper(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.ServeFlags, serveFlagKeys)

	c.listen = v.GetString("relay.listen")
	c.route = v.GetString("relay.route")
	c.providerType = v.GetString("relay.provider")
	c.upstream = v.GetString("relay.upstream")
	c.allowOrigin = v.GetString("relay.allow_origin")
	c.defaultModel = v.GetString("defaults.model")
	c.defaultMaxTokens = v.GetUint("defaults.max_tokens")
	c.defaultTemperature = v.GetFloat64("defaults.temperature")

	if c.defaultTemperature < 0 || c.defaultTemperature > 2 {
		return fmt.Errorf("default temperature must be between 0 and 2, got %v", c.defaultTemperature)
	}
	return nil
}

func (c *serveCommander) relayConfig() relay.Config {
	temperature := c.defaultTemperature
	defaults := config.DefaultsConfig{
		Model:       c.defaultModel,
		MaxTokens:   c.defaultMaxTokens,
		Temperature: &temperature,
	}

	return relay.Config{
		ListenAddr:   c.listen,
		Route:        c.route,
		ProviderType: c.providerType,
		UpstreamURL:  c.upstream,
		AllowOrigin:  c.allowOrigin,
		Defaults:     defaults.Generation(),
	}
}

// newLogger builds the console logger and, with --log-file, fans it out to a
// JSON file logger. The returned func closes the file.
func (c *serveCommander) newLogger(console io.Writer) (*slog.Logger, func() error, error) {
	consoleLogger := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(c.jsonLogs),
		logger.WithWriter(console),
	)
	if c.logFile == "" {
		return consoleLogger, func() error { return nil }, nil
	}

	f, err := os.OpenFile(c.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	fileLogger := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithSource(true),
		logger.WithWriter(f),
	)
	return logger.Multi(consoleLogger, fileLogger), f.Close, nil
}

func (c *serveCommander) run(ctx context.Context) error {
	var closeLog func() error
	var err error
	c.logger, closeLog, err = c.newLogger(os.Stdout)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := relay.New(c.relayConfig(), c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- r.Run()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		c.logger.Info("shutting down relay server")
		return r.Close()
	}
}
