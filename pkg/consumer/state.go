package consumer

import (
	"strings"
	"time"
)

// State is the lifecycle position of one invocation.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Progress is a snapshot of an invocation while it streams.
type Progress struct {
	// Chunks is the number of text events received.
	Chunks int

	// Tokens is an estimate: the sum of whitespace-separated words per chunk.
	Tokens int

	// Text is everything accumulated so far.
	Text string

	Elapsed time.Duration
}

// Observer receives the state transitions and throttled progress of an
// invocation. Calls are made synchronously from the invocation's goroutine.
type Observer interface {
	StateChanged(State)
	Progress(Progress)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	OnState    func(State)
	OnProgress func(Progress)
}

func (o ObserverFuncs) StateChanged(s State) {
	if o.OnState != nil {
		o.OnState(s)
	}
}

func (o ObserverFuncs) Progress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

// NoticeLevel is the severity of a Notifier message.
type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeSuccess
	NoticeError
)

// Notifier shows a transient status message to the user.
type Notifier func(level NoticeLevel, message string)

// EstimateTokens approximates the token count of text as its number of
// whitespace-separated words.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}
