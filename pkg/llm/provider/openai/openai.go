// Package openai streams generations from an OpenAI-compatible Chat
// Completions API.
package openai

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
	DefaultBaseURL = "https://api.openai.com"
	DefaultModel   = "gpt-4o"

	name       = "openai"
	doneMarker = "[DONE]"
)

// ErrIncomplete is returned when the body ends before the [DONE] marker.
var ErrIncomplete = errors.New("openai: stream ended before [DONE]")

type Provider struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string, httpClient *http.Client) *Provider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Provider{baseURL: strings.TrimSuffix(baseURL, "/"), httpClient: httpClient}
}

func (p *Provider) Name() string { return name }

func (p *Provider) DefaultModel() string { return DefaultModel }

func (p *Provider) Stream(ctx context.Context, req *llm.GenerationRequest) (llm.Stream, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model:         model,
		Messages:      []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:     req.MaxTokens,
		Temperature:   req.Temperature,
		Stream:        true,
		StreamOptions: &streamOptions{IncludeUsage: true},
	})
	if err != nil {
		return nil, fmt.Errorf("openai: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai: sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()

		upstreamErr := &llm.UpstreamError{Provider: name, StatusCode: resp.StatusCode}
		var envelope errorEnvelope
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); readErr == nil &&
			json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			upstreamErr.Type = envelope.Error.Type
			upstreamErr.Message = envelope.Error.Message
		}
		return nil, upstreamErr
	}

	return &stream{body: resp.Body, reader: sse.NewReader(resp.Body)}, nil
}

type stream struct {
	body   io.ReadCloser
	reader *sse.Reader
	usage  llm.Usage

	done bool
	err  error

	closeOnce sync.Once
}

func (s *stream) Next() (*llm.StreamEvent, error) {
	for !s.done && s.err == nil {
		ev, err := s.reader.Next()
		switch {
		case err != nil:
			s.err = fmt.Errorf("openai: reading stream: %w", err)
		case ev == nil:
			s.err = ErrIncomplete
		case ev.Data == doneMarker:
			s.done = true
		default:
			if text, ok := s.handle(ev.Data); ok {
				out := llm.TextEvent(text)
				return &out, nil
			}
		}
	}

	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

func (s *stream) handle(data string) (string, bool) {
	var c chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		s.err = fmt.Errorf("openai: decoding chunk: %w", err)
		return "", false
	}

	if c.Error != nil {
		s.err = &llm.UpstreamError{Provider: name, Type: c.Error.Type, Message: c.Error.Message}
		return "", false
	}

	if c.Usage != nil {
		s.usage = llm.Usage{InputTokens: c.Usage.PromptTokens, OutputTokens: c.Usage.CompletionTokens}
	}

	if len(c.Choices) == 0 || c.Choices[0].Delta.Content == "" {
		return "", false
	}
	return c.Choices[0].Delta.Content, true
}

func (s *stream) Usage() llm.Usage { return s.usage }

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.body.Close() })
	return err
}
