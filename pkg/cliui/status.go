package cliui

import (
	"fmt"
	"io"
	"sync"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"

	"github.com/papercomputeco/relay/pkg/consumer"
)

// StatusIndicator is a consumer.Observer that shows a spinner with the
// estimated token count while a generation streams. It is reset once the
// invocation reaches a terminal state.
type StatusIndicator struct {
	mu     sync.Mutex
	spin   *spinner.Spinner
	status string
}

// NewStatusIndicator returns an indicator drawing to w.
func NewStatusIndicator(w io.Writer) *StatusIndicator {
	return &StatusIndicator{spin: newSpinner(w, "")}
}

// Status returns the text currently shown next to the spinner.
func (s *StatusIndicator) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *StatusIndicator) StateChanged(state consumer.State) {
	switch state {
	case consumer.StateRequesting:
		s.set("Waiting for response...")
		s.spin.Start()
	case consumer.StateStreaming:
		s.set(tokenStatus(0))
	case consumer.StateCompleted, consumer.StateFailed:
		s.spin.Stop()
		s.set("")
	}
}

func (s *StatusIndicator) Progress(p consumer.Progress) {
	s.set(tokenStatus(p.Tokens))
}

func (s *StatusIndicator) set(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	s.spin.Lock()
	s.spin.Suffix = " " + status
	s.spin.Unlock()
}

func tokenStatus(tokens int) string {
	return fmt.Sprintf("Streaming: ~%d tokens", tokens)
}

// NewNotifier returns a consumer.Notifier printing colored lines to w:
// errors in red, successes in green, everything else dim.
func NewNotifier(w io.Writer) consumer.Notifier {
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	dim := color.New(color.FgHiBlack)

	return func(level consumer.NoticeLevel, message string) {
		switch level {
		case consumer.NoticeError:
			red.Fprintf(w, "  ✗ %s\n", message)
		case consumer.NoticeSuccess:
			green.Fprintf(w, "  ✓ %s\n", message)
		default:
			dim.Fprintf(w, "  %s\n", message)
		}
	}
}
