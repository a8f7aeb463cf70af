package llm

import (
	"fmt"
)

// ErrorResponse is the JSON body of a failed request that never reached the
// streaming phase.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError reports a request rejected before any upstream call.
type ValidationError struct {
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// UpstreamError reports a provider that rejected a call or failed mid-stream.
// Error returns the provider's own message so it can be relayed verbatim.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream returned status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s: upstream error", e.Provider)
}

// Usage is the token accounting reported by a provider for one call.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}
