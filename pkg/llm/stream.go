package llm

import (
	"encoding/json"
	"errors"
)

// EventKind discriminates the StreamEvent variants.
type EventKind int

const (
	// KindText carries one text increment.
	KindText EventKind = iota
	// KindDone terminates a stream normally.
	KindDone
	// KindError terminates a stream with a message.
	KindError
)

func (k EventKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindDone:
		return "done"
	case KindError:
		return "error"
	default:
		return "unknown"
	}
}

// ErrUnknownEvent is returned when decoding a payload that is none of the
// known event shapes.
var ErrUnknownEvent = errors.New("unknown stream event")

// StreamEvent is one event of a relay stream. On the wire it is exactly one of
// {"text": "..."}, {"done": true} or {"error": "..."}.
type StreamEvent struct {
	Kind EventKind

	// Text is set for KindText.
	Text string

	// Message is set for KindError.
	Message string
}

// TextEvent returns a text increment event.
func TextEvent(text string) StreamEvent {
	return StreamEvent{Kind: KindText, Text: text}
}

// DoneEvent returns the normal terminal event.
func DoneEvent() StreamEvent {
	return StreamEvent{Kind: KindDone}
}

// ErrorEvent returns the failure terminal event.
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: KindError, Message: message}
}

// Terminal reports whether the event ends a stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == KindDone || e.Kind == KindError
}

type wireEvent struct {
	Text  *string `json:"text,omitempty"`
	Done  *bool   `json:"done,omitempty"`
	Error *string `json:"error,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e StreamEvent) MarshalJSON() ([]byte, error) {
	var w wireEvent
	switch e.Kind {
	case KindText:
		w.Text = &e.Text
	case KindDone:
		done := true
		w.Done = &done
	case KindError:
		w.Error = &e.Message
	default:
		return nil, ErrUnknownEvent
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler. A non-empty error wins over done,
// and done wins over text.
func (e *StreamEvent) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch {
	case w.Error != nil && *w.Error != "":
		*e = ErrorEvent(*w.Error)
	case w.Done != nil && *w.Done:
		*e = DoneEvent()
	case w.Text != nil:
		*e = TextEvent(*w.Text)
	default:
		return ErrUnknownEvent
	}
	return nil
}

// Stream is a lazy, finite, non-restartable sequence of events pulled from
// an upstream provider, one at a time.
type Stream interface {
	// Next blocks until the next text increment is available. It returns
	// nil, nil when the upstream completed normally and a non-nil error when
	// it failed. Once the stream has ended every call returns the same result.
	Next() (*StreamEvent, error)

	// Usage reports the token accounting seen so far.
	Usage() Usage

	// Close releases the upstream connection. It is safe to call more than
	// once.
	Close() error
}
