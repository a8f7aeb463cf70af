package sse

import (
	"strings"
	"unicode/utf8"
)

const frameDelimiter = "\n\n"

// Decoder splits a byte stream that arrives in arbitrary chunks into the data
// payloads of complete frames. It is not safe for concurrent use.
type Decoder struct {
	// carry holds the leading bytes of a UTF-8 sequence cut by a chunk
	// boundary.
	carry []byte

	// text is decoded input not yet terminated by a frame delimiter.
	text strings.Builder
}

// Feed consumes the next chunk and returns the payloads of every frame it
// completes, in order.
func (d *Decoder) Feed(chunk []byte) []string {
	buf := append(d.carry, chunk...)
	complete, rest := splitIncompleteRune(buf)
	d.carry = append([]byte(nil), rest...)

	d.text.WriteString(strings.ToValidUTF8(string(complete), string(utf8.RuneError)))

	pending := d.text.String()
	last := strings.LastIndex(pending, frameDelimiter)
	if last < 0 {
		return nil
	}

	d.text.Reset()
	d.text.WriteString(pending[last+len(frameDelimiter):])

	var payloads []string
	for _, frame := range strings.Split(pending[:last], frameDelimiter) {
		payloads = append(payloads, dataLines(frame)...)
	}
	return payloads
}

// Flush returns the payloads of a final frame that was not terminated by a
// delimiter and resets the decoder.
func (d *Decoder) Flush() []string {
	pending := d.text.String()
	if len(d.carry) > 0 {
		pending += string(utf8.RuneError)
	}

	d.text.Reset()
	d.carry = nil

	return dataLines(pending)
}

// dataLines returns the values of the "data:" lines of one frame.
func dataLines(frame string) []string {
	var payloads []string
	for _, line := range strings.Split(frame, "\n") {
		line = strings.TrimSuffix(line, "\r")
		value, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		payloads = append(payloads, strings.TrimPrefix(value, " "))
	}
	return payloads
}

// splitIncompleteRune separates a trailing, incomplete UTF-8 sequence from b.
func splitIncompleteRune(b []byte) (complete, rest []byte) {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		start := len(b) - i
		if !utf8.RuneStart(b[start]) {
			continue
		}
		if !utf8.FullRune(b[start:]) {
			return b[:start], b[start:]
		}
		break
	}
	return b, nil
}
