// Package sse implements the server-sent events framing used on both sides of
// the relay: a Reader for upstream provider streams, a Writer for the relay's
// own frames, and a chunk-fed Decoder for stream consumers.
//
// See https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

// Event is a single parsed SSE frame, delimited by a blank line.
type Event struct {
	// Type is the "event:" field. Empty means the default "message" type.
	Type string

	// Data joins all "data:" lines of the frame with "\n".
	Data string

	// ID is the "id:" field, if present.
	ID string
}
