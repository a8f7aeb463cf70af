// Package relay provides a streaming LLM relay: one POST endpoint that turns
// a generation request into a server-sent event stream of text increments.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/llm/provider"
	"github.com/papercomputeco/relay/pkg/sse"
	"github.com/papercomputeco/relay/relay/header"
)

const unknownErrorMessage = "Unknown error occurred"

// Relay is the HTTP server. Each generation request owns its upstream call
// and response stream; nothing is shared between requests.
type Relay struct {
	config   Config
	logger   *slog.Logger
	provider provider.Provider
	server   *fiber.App
	headers  *header.Handler

	// ctx is cancelled on Close and parents every upstream call.
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Relay.
// Returns an error if the configured provider type is not recognized.
func New(config Config, logger *slog.Logger) (*Relay, error) {
	config.applyDefaults()

	if !strings.HasPrefix(config.Route, "/") {
		return nil, fmt.Errorf("route must start with '/': %q", config.Route)
	}

	prov := config.Provider
	if prov == nil {
		var err error
		prov, err = provider.New(config.ProviderType, provider.Options{
			BaseURL:    config.UpstreamURL,
			HTTPClient: config.HTTPClient,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create new provider: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Relay{
		config:   config,
		logger:   logger,
		provider: prov,
		headers:  header.NewHandler(config.AllowOrigin),
		ctx:      ctx,
		cancel:   cancel,
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		ErrorHandler:          r.handleError,
	})
	app.Use(recover.New())

	app.Options(config.Route, r.handlePreflight)
	app.Post(config.Route, r.handleGenerate)
	app.Get("/health", r.handleHealth)

	r.server = app
	return r, nil
}

// Run starts the relay server on the configured listening address.
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		"listen", r.config.ListenAddr,
		"route", r.config.Route,
		"provider", r.provider.Name(),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		"listen", listener.Addr().String(),
		"route", r.config.Route,
		"provider", r.provider.Name(),
	)

	return r.server.Listener(listener)
}

// Close cancels in-flight upstream calls and shuts the server down.
func (r *Relay) Close() error {
	r.cancel()
	return r.server.Shutdown()
}

// Handler exposes the relay as a non-streaming net/http handler. The fiber
// adaptor buffers each response, so an event stream reaches the caller whole
// once it terminates. Use Run or RunWithListener for incremental delivery.
func (r *Relay) Handler() http.Handler {
	return adaptor.FiberApp(r.server)
}

// Provider returns the upstream provider the relay streams from.
func (r *Relay) Provider() provider.Provider {
	return r.provider
}

func (r *Relay) handlePreflight(c *fiber.Ctx) error {
	r.headers.SetPreflightHeaders(c)
	// c.SendStatus would write the status text as a body
	c.Status(fiber.StatusNoContent)
	return nil
}

func (r *Relay) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":   "ok",
		"provider": r.provider.Name(),
	})
}

func (r *Relay) handleGenerate(c *fiber.Ctx) error {
	r.headers.SetCORSHeaders(c)

	req, err := llm.ParseGenerationRequest(c.Body())
	if err != nil {
		var verr *llm.ValidationError
		if errors.As(err, &verr) {
			r.logger.Debug("rejected generation request", "reason", verr.Message, "ip", c.IP())
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: verr.Message})
		}
		return err
	}

	req.ApplyDefaults(r.config.Defaults)
	if req.Model == "" {
		req.Model = r.provider.DefaultModel()
	}

	requestID := uuid.NewString()
	r.headers.SetStreamHeaders(c, requestID)
	c.Status(fiber.StatusOK)

	// fasthttp recycles the request context once the handler returns, so the
	// upstream call hangs off the relay's own context.
	ctx, cancel := context.WithCancel(r.ctx)

	// io.Pipe gives one write per frame with backpressure: pw.Write blocks
	// until fasthttp has taken the bytes for the socket.
	pr, pw := io.Pipe()
	go r.streamGeneration(ctx, cancel, pw, req, requestID)

	// The status line and headers go out before the upstream has answered;
	// otherwise fasthttp holds them until the first frame.
	c.Context().Response.ImmediateHeaderFlush = true
	// Unknown size (-1) selects chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)
	return nil
}

// streamGeneration pulls the upstream stream and writes one frame per text
// increment, then exactly one done or error frame. A failed write means the
// client went away; returning cancels the upstream call.
func (r *Relay) streamGeneration(ctx context.Context, cancel context.CancelFunc, pw *io.PipeWriter, req *llm.GenerationRequest, requestID string) {
	defer cancel()
	defer pw.Close()

	start := time.Now()
	log := r.logger.With(
		"request_id", requestID,
		"provider", r.provider.Name(),
		"model", req.Model,
	)
	w := sse.NewWriter(pw)

	stream, err := r.provider.Stream(ctx, req)
	if err != nil {
		r.writeError(w, log, err, 0, start)
		return
	}
	defer stream.Close()

	chunks := 0
	for {
		ev, err := stream.Next()
		if err != nil {
			r.writeError(w, log, err, chunks, start)
			return
		}

		if ev == nil {
			usage := stream.Usage()
			if err := w.WriteData(llm.DoneEvent()); err != nil {
				log.Info("client disconnected before completion", "chunks", chunks)
				return
			}
			log.Info("generation completed",
				"chunks", chunks,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens,
				"duration", time.Since(start),
			)
			return
		}

		if ev.Kind != llm.KindText {
			continue
		}

		if err := w.WriteData(ev); err != nil {
			log.Info("client disconnected", "chunks", chunks, "duration", time.Since(start))
			return
		}
		chunks++
	}
}

func (r *Relay) writeError(w *sse.Writer, log *slog.Logger, err error, chunks int, start time.Time) {
	message := err.Error()
	if message == "" {
		message = unknownErrorMessage
	}

	attrs := []any{"error", message, "chunks", chunks, "duration", time.Since(start)}
	var upstream *llm.UpstreamError
	if errors.As(err, &upstream) {
		attrs = append(attrs, "status", upstream.StatusCode, "type", upstream.Type)
	}
	log.Error("generation failed", attrs...)

	if werr := w.WriteData(llm.ErrorEvent(message)); werr != nil {
		log.Debug("could not deliver error frame", "error", werr)
	}
}

// handleError renders errors that escaped a handler as a JSON body.
func (r *Relay) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		code = ferr.Code
		message = ferr.Message
	} else {
		r.logger.Error("unhandled error", "method", c.Method(), "path", c.Path(), "error", err)
	}
	if message == "" {
		message = unknownErrorMessage
	}

	return c.Status(code).JSON(llm.ErrorResponse{Error: message})
}
