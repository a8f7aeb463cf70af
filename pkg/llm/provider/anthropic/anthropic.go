// Package anthropic streams generations from the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/papercomputeco/relay/pkg/llm"
	"github.com/papercomputeco/relay/pkg/sse"
)

const (
	// DefaultBaseURL is the public Anthropic API.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultModel is used when neither the request nor the relay config
	// names one.
	DefaultModel = "claude-3-7-sonnet-20250219"

	apiVersion = "2023-06-01"
	name       = "anthropic"
)

// ErrIncomplete is returned when the body ends before message_stop.
var ErrIncomplete = errors.New("anthropic: stream ended before message_stop")

// Provider calls the Messages API with the per-request API key.
type Provider struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a Provider for baseURL (DefaultBaseURL when empty).
func New(baseURL string, httpClient *http.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Provider{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Name
func (p *Provider) Name() string {
	return name
}

// DefaultModel
func (p *Provider) DefaultModel() string {
	return DefaultModel
}

// Stream opens one streaming Messages call. Rejections by the API before the
// stream starts are returned as *llm.UpstreamError.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerationRequest) (llm.Stream, error) {
	body, err := json.Marshal(p.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("anthropic: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("anthropic: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("X-Api-Key", req.APIKey)
	httpReq.Header.Set("Anthropic-Version", apiVersion)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic: sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	return &stream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

func (p *Provider) buildRequest(req *llm.GenerationRequest) messagesRequest {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	maxTokens := llm.DefaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	return messagesRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: req.Prompt}},
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	}
}

func decodeError(resp *http.Response) error {
	upstreamErr := &llm.UpstreamError{Provider: name, StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return upstreamErr
	}

	var envelope errorEnvelope
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
		upstreamErr.Type = envelope.Error.Type
		upstreamErr.Message = envelope.Error.Message
	}
	return upstreamErr
}

// stream adapts the Messages SSE protocol to llm.Stream.
type stream struct {
	body   io.ReadCloser
	reader *sse.Reader

	usage llm.Usage

	// done marks a clean end; err is the sticky failure.
	done bool
	err  error

	closeOnce sync.Once
}

func (s *stream) Next() (*llm.StreamEvent, error) {
	for !s.done && s.err == nil {
		ev, err := s.reader.Next()
		if err != nil {
			s.err = fmt.Errorf("anthropic: reading stream: %w", err)
			break
		}
		if ev == nil {
			s.err = ErrIncomplete
			break
		}

		if text, ok := s.handle(ev); ok {
			out := llm.TextEvent(text)
			return &out, nil
		}
	}

	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

// handle applies one upstream event and reports whether it carried text.
func (s *stream) handle(ev *sse.Event) (string, bool) {
	var payload streamEvent
	if err := json.Unmarshal([]byte(ev.Data), &payload); err != nil {
		s.err = fmt.Errorf("anthropic: decoding %q event: %w", ev.Type, err)
		return "", false
	}

	eventType := payload.Type
	if eventType == "" {
		eventType = ev.Type
	}

	switch eventType {
	case "message_start":
		if payload.Message != nil && payload.Message.Usage != nil {
			s.usage.InputTokens = payload.Message.Usage.InputTokens
			s.usage.OutputTokens = payload.Message.Usage.OutputTokens
		}
	case "content_block_delta":
		if payload.Delta != nil && payload.Delta.Type == "text_delta" {
			return payload.Delta.Text, true
		}
	case "message_delta":
		if payload.Usage != nil {
			s.usage.OutputTokens = payload.Usage.OutputTokens
		}
	case "message_stop":
		s.done = true
	case "error":
		upstreamErr := &llm.UpstreamError{Provider: name}
		if payload.Error != nil {
			upstreamErr.Type = payload.Error.Type
			upstreamErr.Message = payload.Error.Message
		}
		s.err = upstreamErr
	}

	// ping, content_block_start and content_block_stop carry nothing to relay
	return "", false
}

func (s *stream) Usage() llm.Usage {
	return s.usage
}

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.body.Close()
	})
	return err
}
