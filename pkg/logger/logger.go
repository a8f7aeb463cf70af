// Package logger builds the *slog.Logger instances used across relay: pretty
// charmbracelet output for the CLI, JSON or text records for the server.
package logger

import (
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

type config struct {
	level  slog.Level
	pretty bool
	json   bool
	source bool
	writer io.Writer
}

// New returns a logger configured by opts. Without options it writes
// info-level text records to os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo, writer: os.Stdout}
	for _, opt := range opts {
		opt(c)
	}

	w := c.writer

	switch {
	case c.pretty:
		level := charmlog.InfoLevel
		if c.level <= slog.LevelDebug {
			level = charmlog.DebugLevel
		}

		return slog.New(charmlog.NewWithOptions(w, charmlog.Options{
			Level:           level,
			ReportTimestamp: true,
			ReportCaller:    c.source,
		}))
	case c.json:
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	default:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
			Level:     c.level,
			AddSource: c.source,
		}))
	}
}

// Nop returns a logger that drops every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
