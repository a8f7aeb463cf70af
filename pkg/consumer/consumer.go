// Package consumer drives one request against a relay endpoint, reassembling
// its server-sent event stream into the generated text.
package consumer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/pkg/utils"
)

const readBufferSize = 32 * 1024

// Config configures a Client.
type Config struct {
	// Endpoint is the full URL of the relay route.
	Endpoint string

	// APIKey is sent as the request's apiKey.
	APIKey string

	// HTTPClient defaults to a client without a timeout; bound long
	// generations with the context instead.
	HTTPClient *http.Client

	Logger *slog.Logger

	// ProgressInterval is the minimum time between Progress notifications
	// (and periodic artifact writes in GenerateTo). Zero reports every chunk.
	ProgressInterval time.Duration

	Observer Observer
	Notifier Notifier

	// Now overrides the clock used for throttling.
	Now func() time.Time
}

// Options override the relay's generation defaults for one invocation.
type Options struct {
	Model       string
	MaxTokens   *int
	Temperature *float64
}

// Client issues relay requests. It holds no per-invocation state and may be
// used for several invocations, one artifact each.
type Client struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	interval   time.Duration
	observer   Observer
	notify     Notifier
	now        func() time.Time
}

// New validates cfg and returns a Client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("relay endpoint is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.ProgressInterval < 0 {
		return nil, fmt.Errorf("progress interval must not be negative, got %s", cfg.ProgressInterval)
	}

	c := &Client{
		endpoint:   cfg.Endpoint,
		apiKey:     cfg.APIKey,
		httpClient: cfg.HTTPClient,
		logger:     cfg.Logger,
		interval:   cfg.ProgressInterval,
		observer:   cfg.Observer,
		notify:     cfg.Notifier,
		now:        cfg.Now,
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.logger == nil {
		c.logger = logger.Nop()
	}
	if c.observer == nil {
		c.observer = ObserverFuncs{}
	}
	if c.notify == nil {
		c.notify = func(NoticeLevel, string) {}
	}
	if c.now == nil {
		c.now = time.Now
	}

	return c, nil
}

// Generate streams one generation and returns the accumulated text. Failures
// are returned as *InvocationError carrying the partial text.
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return c.invoke(ctx, prompt, opts, nil)
}

// GenerateTo streams one generation into sink. The artifact is rewritten on
// every progress notification, written in full once the stream is done, and
// left holding the partial text when the invocation fails.
func (c *Client) GenerateTo(ctx context.Context, sink Sink, prompt string, opts Options) (string, error) {
	if err := sink.Create(ctx); err != nil {
		c.notify(NoticeError, "Failed to create output: "+err.Error())
		return "", fmt.Errorf("creating output: %w", err)
	}

	c.notify(NoticeInfo, "Sending prompt and streaming response...")

	text, err := c.invoke(ctx, prompt, opts, sink)
	if err != nil {
		c.notify(NoticeError, "Error: "+err.Error())
		return "", err
	}

	c.notify(NoticeSuccess, "Response completed!")
	return text, nil
}

func (c *Client) invoke(ctx context.Context, prompt string, opts Options, sink Sink) (string, error) {
	inv := &invocation{
		ctx:      ctx,
		client:   c,
		sink:     sink,
		observer: c.observer,
		logger:   c.logger.With("endpoint", c.endpoint),
	}

	inv.transition(StateRequesting)

	resp, err := c.post(ctx, prompt, opts)
	if err != nil {
		return inv.fail(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return inv.fail(readStatusError(resp))
	}

	inv.started = c.now()
	inv.lastProgress = inv.started
	inv.transition(StateStreaming)

	if err := inv.consume(resp.Body); err != nil {
		return inv.fail(err)
	}
	return inv.complete()
}

func (c *Client) post(ctx context.Context, prompt string, opts Options) (*http.Response, error) {
	body, err := json.Marshal(llm.GenerationRequest{
		APIKey:      c.apiKey,
		Prompt:      prompt,
		Model:       opts.Model,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	return resp, nil
}

func readStatusError(resp *http.Response) error {
	statusErr := &StatusError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return statusErr
	}

	var body llm.ErrorResponse
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		statusErr.Message = body.Error
	} else {
		statusErr.Message = utils.Truncate(strings.TrimSpace(string(raw)), 200)
	}
	return statusErr
}

// invocation is the explicit state of one Generate call.
type invocation struct {
	ctx      context.Context
	client   *Client
	sink     Sink
	observer Observer
	logger   *slog.Logger

	state        State
	text         strings.Builder
	chunks       int
	tokens       int
	skipped      int
	started      time.Time
	lastProgress time.Time
}

func (inv *invocation) transition(s State) {
	inv.state = s
	inv.logger.Debug("consumer state changed", "state", s.String())
	inv.observer.StateChanged(s)
}

// consume reads the body one chunk at a time until a terminal event arrives.
func (inv *invocation) consume(body io.Reader) error {
	var dec sse.Decoder
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			if finished, err := inv.handle(dec.Feed(buf[:n])); finished {
				return err
			}
		}

		if errors.Is(readErr, io.EOF) {
			if finished, err := inv.handle(dec.Flush()); finished {
				return err
			}
			return &TransportError{Err: ErrIncompleteStream}
		}
		if readErr != nil {
			return &TransportError{Err: fmt.Errorf("reading stream: %w", readErr)}
		}
	}
}

// handle applies decoded payloads in order and reports whether a terminal
// event was seen, with the failure it carried.
func (inv *invocation) handle(payloads []string) (bool, error) {
	for _, payload := range payloads {
		var ev llm.StreamEvent
		if err := json.Unmarshal([]byte(payload), &ev); err != nil {
			inv.skipped++
			inv.logger.Debug("skipping malformed frame",
				"payload", utils.Truncate(payload, 80),
				"error", err,
			)
			continue
		}

		switch ev.Kind {
		case llm.KindText:
			inv.append(ev.Text)
		case llm.KindDone:
			return true, nil
		case llm.KindError:
			return true, &StreamError{Message: ev.Message}
		}
	}
	return false, nil
}

func (inv *invocation) append(text string) {
	inv.text.WriteString(text)
	inv.chunks++
	inv.tokens += EstimateTokens(text)

	now := inv.client.now()
	if now.Sub(inv.lastProgress) < inv.client.interval {
		return
	}
	inv.lastProgress = now

	p := Progress{
		Chunks:  inv.chunks,
		Tokens:  inv.tokens,
		Text:    inv.text.String(),
		Elapsed: now.Sub(inv.started),
	}
	inv.observer.Progress(p)

	if inv.sink != nil {
		if err := inv.sink.Overwrite(inv.ctx, p.Text); err != nil {
			inv.logger.Warn("periodic output write failed", "error", err)
		}
	}
}

func (inv *invocation) complete() (string, error) {
	text := inv.text.String()

	if inv.sink != nil {
		if err := inv.sink.Overwrite(inv.ctx, text); err != nil {
			return inv.fail(fmt.Errorf("writing final output: %w", err))
		}
	}

	inv.logger.Debug("stream completed",
		"chunks", inv.chunks,
		"estimated_tokens", inv.tokens,
		"skipped_frames", inv.skipped,
	)
	inv.transition(StateCompleted)
	return text, nil
}

func (inv *invocation) fail(err error) (string, error) {
	partial := inv.text.String()

	if inv.sink != nil && partial != "" {
		// the caller's context may be the reason for the failure
		if werr := inv.sink.Overwrite(context.WithoutCancel(inv.ctx), partial); werr != nil {
			inv.logger.Warn("writing partial output failed", "error", werr)
		}
	}

	inv.logger.Debug("stream failed", "chunks", inv.chunks, "error", err)
	inv.transition(StateFailed)
	return "", &InvocationError{Partial: partial, Err: err}
}
