package sse

import (
	"bufio"
	"io"
	"strings"
)

const (
	initialLineBuffer = 64 * 1024
	maxLineLength     = 1024 * 1024
)

// Reader parses SSE frames from an upstream response body.
type Reader struct {
	scanner *bufio.Scanner

	current Event
	pending bool
}

// NewReader returns a Reader over src.
func NewReader(src io.Reader) *Reader {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, initialLineBuffer), maxLineLength)

	return &Reader{scanner: scanner}
}

// Next blocks until a complete frame is available and returns it.
// It returns nil, nil once the source is exhausted. A trailing frame that was
// not terminated by a blank line is still returned.
func (r *Reader) Next() (*Event, error) {
	for r.scanner.Scan() {
		line := strings.TrimSuffix(r.scanner.Text(), "\r")

		switch {
		case line == "":
			if ev := r.take(); ev != nil {
				return ev, nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			r.field(line)
		}
	}

	if err := r.scanner.Err(); err != nil {
		return nil, err
	}

	return r.take(), nil
}

// field accumulates one "name:value" line into the current frame. A single
// space after the colon is stripped.
func (r *Reader) field(line string) {
	name, value, _ := strings.Cut(line, ":")
	value = strings.TrimPrefix(value, " ")

	switch name {
	case "data":
		if r.pending && r.current.Data != "" {
			r.current.Data += "\n"
		}
		r.current.Data += value
	case "event":
		r.current.Type = value
	case "id":
		r.current.ID = value
	default:
		// retry and unknown fields are ignored
		return
	}
	r.pending = true
}

func (r *Reader) take() *Event {
	if !r.pending {
		return nil
	}
	ev := r.current
	r.current = Event{}
	r.pending = false
	return &ev
}
