package anthropic

// messagesRequest is the streaming subset of the Messages API request.
type messagesRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float64  `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// streamEvent covers every event type of the Messages streaming protocol;
// only the fields relevant to the event's type are populated.
type streamEvent struct {
	Type string `json:"type"`

	// message_start
	Message *struct {
		Usage *usage `json:"usage"`
	} `json:"message,omitempty"`

	// content_block_delta
	Delta *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta,omitempty"`

	// message_delta
	Usage *usage `json:"usage,omitempty"`

	// error
	Error *apiError `json:"error,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// errorEnvelope is the body of a non-2xx Messages API response.
type errorEnvelope struct {
	Type  string    `json:"type"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
