// Package generatecmder provides the generate command, a streaming client of
// a running relay.
package generatecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"

	"github.com/papercomputeco/relay/pkg/cliui"
	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/consumer"
	"github.com/papercomputeco/relay/pkg/credentials"
	"github.com/papercomputeco/relay/pkg/logger"
)

// noKeyPlaceholder is sent for providers that take no API key, since the
// relay requires one on every request.
const noKeyPlaceholder = "none"

type generateCommander struct {
	endpoint    string
	provider    string
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	file        string
	output      string
	interval    string
	render      bool

	debug     bool
	configDir string

	fs     afs.Service
	logger *slog.Logger
}

const generateLongDesc string = `Stream a generation through a running relay.

The prompt is sent to the relay endpoint and the response is printed once the
stream completes while a status line shows the estimated token count.

With --file, the document is appended to the prompt after a blank line, so the
arguments act as instructions for processing it. With --output, the response
is written to the given location as it streams; if the stream fails, the text
received so far is kept there. Locations may be local paths or afs URLs
(file://, mem://, ...).

The API key is taken from --api-key, then the provider's environment variable
(ANTHROPIC_API_KEY, OPENAI_API_KEY), then credentials stored with relay auth.

Examples:
  relay generate "Write a haiku about the sea"
  relay generate -f notes.md "Summarize this document" -o summary.md
  relay generate --render --model claude-3-5-haiku-latest "Explain SSE"`

const generateShortDesc string = "Stream a generation through a relay"

func NewGenerateCmd() *cobra.Command {
	cmder := &generateCommander{fs: afs.New()}

	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: generateShortDesc,
		Long:  generateLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")
			cfger, err := config.NewConfiger(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			cfg, err := cfger.LoadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			if !cmd.Flags().Changed("endpoint") {
				cmder.endpoint = cfg.Client.Endpoint
			}
			if !cmd.Flags().Changed("provider") {
				cmder.provider = cfg.Client.Provider
			}
			if !cmd.Flags().Changed("interval") {
				cmder.interval = cfg.Client.UpdateInterval
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			return cmder.run(ctx, cmd, args)
		},
	}

	defaults := config.NewDefaultConfig()
	cmd.Flags().StringVar(&cmder.endpoint, "endpoint", defaults.Client.Endpoint, "Relay endpoint URL")
	cmd.Flags().StringVarP(&cmder.provider, "provider", "p", defaults.Client.Provider, "Provider whose stored API key is sent")
	cmd.Flags().StringVar(&cmder.apiKey, "api-key", "", "API key to send (default: environment or stored credentials)")
	cmd.Flags().StringVarP(&cmder.model, "model", "m", "", "Model to request (default: the relay's)")
	cmd.Flags().IntVar(&cmder.maxTokens, "max-tokens", 0, "Maximum tokens to generate (default: the relay's)")
	cmd.Flags().Float64Var(&cmder.temperature, "temperature", 0, "Sampling temperature (default: the relay's)")
	cmd.Flags().StringVarP(&cmder.file, "file", "f", "", "Document to process with the prompt")
	cmd.Flags().StringVarP(&cmder.output, "output", "o", "", "Write the response to this location as it streams")
	cmd.Flags().StringVar(&cmder.interval, "interval", defaults.Client.UpdateInterval, "Minimum time between progress updates and partial writes")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Render the response as markdown")

	return cmd
}

func (c *generateCommander) run(ctx context.Context, cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()

	c.logger = logger.New(
		logger.WithDebug(c.debug),
		logger.WithPretty(true),
		logger.WithWriter(errOut),
	)

	interval, err := time.ParseDuration(c.interval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", c.interval, err)
	}

	prompt, err := c.buildPrompt(ctx, errOut, args)
	if err != nil {
		return err
	}

	apiKey, err := c.resolveKey()
	if err != nil {
		return err
	}

	client, err := consumer.New(consumer.Config{
		Endpoint:         c.endpoint,
		APIKey:           apiKey,
		Logger:           c.logger,
		ProgressInterval: interval,
		Observer:         cliui.NewStatusIndicator(errOut),
		Notifier:         cliui.NewNotifier(errOut),
	})
	if err != nil {
		return err
	}

	opts := consumer.Options{Model: c.model}
	if cmd.Flags().Changed("max-tokens") {
		if c.maxTokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", c.maxTokens)
		}
		maxTokens := c.maxTokens
		opts.MaxTokens = &maxTokens
	}
	if cmd.Flags().Changed("temperature") {
		temperature := c.temperature
		opts.Temperature = &temperature
	}

	if c.output != "" {
		location, err := toURL(c.output)
		if err != nil {
			return err
		}

		text, err := client.GenerateTo(ctx, consumer.NewFileSink(c.fs, location), prompt, opts)
		if err != nil {
			return err
		}

		fmt.Fprintf(errOut, "  %s Wrote %s\n", cliui.SuccessMark, cliui.DimStyle.Render(location))
		if c.render {
			return c.print(out, text)
		}
		return nil
	}

	text, err := client.Generate(ctx, prompt, opts)
	if err != nil {
		var invErr *consumer.InvocationError
		if errors.As(err, &invErr) && invErr.Partial != "" {
			fmt.Fprintf(errOut, "\n  %s partial response:\n", cliui.WarnStyle.Render("!"))
			fmt.Fprintln(out, invErr.Partial)
		}
		return err
	}

	return c.print(out, text)
}

// buildPrompt joins the arguments and, with --file, appends the document
// after a blank line.
func (c *generateCommander) buildPrompt(ctx context.Context, w io.Writer, args []string) (string, error) {
	instructions := strings.TrimSpace(strings.Join(args, " "))
	if c.file == "" {
		if instructions == "" {
			return "", errors.New("a prompt is required: pass it as arguments or use --file")
		}
		return instructions, nil
	}

	location, err := toURL(c.file)
	if err != nil {
		return "", err
	}

	var document []byte
	err = cliui.Step(w, "Reading "+c.file, func() error {
		var derr error
		document, derr = c.fs.DownloadWithURL(ctx, location)
		return derr
	})
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", c.file, err)
	}

	if instructions == "" {
		return string(document), nil
	}
	return instructions + "\n\n" + string(document), nil
}

func (c *generateCommander) resolveKey() (string, error) {
	mgr, err := credentials.NewManager(c.configDir)
	if err != nil {
		return "", fmt.Errorf("loading credentials: %w", err)
	}

	key, source, err := mgr.Resolve(c.provider, c.apiKey)
	if err != nil {
		if errors.Is(err, credentials.ErrNoKey) && credentials.EnvVarForProvider(c.provider) == "" {
			c.logger.Debug("provider takes no api key", "provider", c.provider)
			return noKeyPlaceholder, nil
		}
		return "", err
	}

	c.logger.Debug("resolved api key", "provider", c.provider, "source", source)
	return key, nil
}

func (c *generateCommander) print(w io.Writer, text string) error {
	if !c.render {
		_, err := fmt.Fprintln(w, text)
		return err
	}

	rendered, err := cliui.RenderMarkdown(text)
	if err != nil {
		c.logger.Warn("could not render markdown", "error", err)
	}
	_, err = fmt.Fprint(w, rendered)
	return err
}

// toURL turns a local path into an absolute file:// URL and leaves afs URLs
// untouched.
func toURL(location string) (string, error) {
	if url.Scheme(location, "") != "" {
		return location, nil
	}

	abs, err := filepath.Abs(location)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", location, err)
	}
	return file.Scheme + "://" + abs, nil
}
