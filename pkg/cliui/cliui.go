// Package cliui provides reusable terminal UI helpers (spinners, status marks,
// markdown rendering) for relay CLI commands.
package cliui

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
	StepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
)

// spinnerCharSet is the braille dot pattern.
const spinnerCharSet = 14

const spinnerDelay = 80 * time.Millisecond

func newSpinner(w io.Writer, suffix string) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[spinnerCharSet], spinnerDelay, spinner.WithWriter(w))
	s.Suffix = " " + suffix
	_ = s.Color("green")
	return s
}

// Step shows a spinner while fn runs, then replaces it with a ✓ or ✗
// checkmark and elapsed time. The spinner only animates on a terminal.
func Step(w io.Writer, msg string, fn func() error) error {
	s := newSpinner(w, msg)
	s.Start()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	s.Stop()

	fmt.Fprintf(w, "  %s %s %s\n",
		Mark(err),
		msg,
		StepStyle.Render(fmt.Sprintf("(%s)", FormatDuration(elapsed))),
	)

	return err
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// RenderMarkdown renders markdown content for terminal display using glamour.
// On failure the content is returned unchanged along with the error.
func RenderMarkdown(content string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}

	return rendered, nil
}
