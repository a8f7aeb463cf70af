package sse

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

type flusher interface {
	Flush() error
}

// Writer emits "data: <json>\n\n" frames.
type Writer struct {
	w io.Writer
}

// NewWriter returns a Writer over w. Writers that buffer (bufio.Writer,
// http.Flusher) are flushed after every frame.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteData writes v as the JSON payload of one frame.
func (w *Writer) WriteData(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding sse payload: %w", err)
	}

	frame := make([]byte, 0, len(payload)+len("data: \n\n"))
	frame = append(frame, "data: "...)
	frame = append(frame, payload...)
	frame = append(frame, '\n', '\n')

	if _, err := w.w.Write(frame); err != nil {
		return err
	}

	switch f := w.w.(type) {
	case flusher:
		return f.Flush()
	case http.Flusher:
		f.Flush()
	}
	return nil
}
