// Package ollama streams generations from an Ollama server's /api/chat
// endpoint, which answers with newline-delimited JSON rather than SSE.
package ollama

import (
	"bufio"
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
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"

	name = "ollama"
)

// ErrIncomplete is returned when the body ends before a done line.
var ErrIncomplete = errors.New("ollama: stream ended before done")

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

// Stream opens one streaming chat call. Ollama needs no credential; the API
// key is forwarded as a bearer token for servers behind an authenticating
// proxy.
func (p *Provider) Stream(ctx context.Context, req *llm.GenerationRequest) (llm.Stream, error) {
	model := req.Model
	if model == "" {
		model = DefaultModel
	}

	body, err := json.Marshal(chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: req.Prompt}},
		Stream:   true,
		Options:  &options{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: sending request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()

		upstreamErr := &llm.UpstreamError{Provider: name, StatusCode: resp.StatusCode}
		var line chatLine
		if raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024)); readErr == nil && json.Unmarshal(raw, &line) == nil {
			upstreamErr.Message = line.Error
		}
		return nil, upstreamErr
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	return &stream{body: resp.Body, scanner: scanner}, nil
}

type stream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	usage   llm.Usage

	done bool
	err  error

	closeOnce sync.Once
}

func (s *stream) Next() (*llm.StreamEvent, error) {
	for !s.done && s.err == nil {
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				s.err = fmt.Errorf("ollama: reading stream: %w", err)
			} else {
				s.err = ErrIncomplete
			}
			break
		}

		raw := bytes.TrimSpace(s.scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var line chatLine
		if err := json.Unmarshal(raw, &line); err != nil {
			s.err = fmt.Errorf("ollama: decoding line: %w", err)
			break
		}

		if line.Error != "" {
			s.err = &llm.UpstreamError{Provider: name, Message: line.Error}
			break
		}

		if line.Done {
			s.done = true
			s.usage = llm.Usage{InputTokens: line.PromptEvalCount, OutputTokens: line.EvalCount}
		}

		// the done line may still carry a final piece of content
		if line.Message.Content != "" {
			out := llm.TextEvent(line.Message.Content)
			return &out, nil
		}
	}

	if s.err != nil {
		return nil, s.err
	}
	return nil, nil
}

func (s *stream) Usage() llm.Usage { return s.usage }

func (s *stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.body.Close() })
	return err
}
