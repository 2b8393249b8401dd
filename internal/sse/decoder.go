// Package sse decodes Server-Sent Event framing from chunked byte streams.
package sse

import (
	"bytes"
	"strings"
)

// Frame is one complete, blank-line terminated SSE block.
type Frame struct {
	Event string `json:"event"`
	Data  string `json:"data"`
	ID    string `json:"id,omitempty"`
}

// Decoder splits arbitrarily chunked input into frames. A frame is emitted only
// once its terminating blank line has been seen; partial input is buffered
// until the next Feed.
type Decoder struct {
	buf []byte
}

var separator = []byte("\n\n")

// Feed appends chunk to the buffer and returns every frame completed by it.
// Comment-only blocks (e.g. heartbeats) produce no frame.
func (d *Decoder) Feed(chunk []byte) []Frame {
	// CRLF line endings are folded to LF so a separator split across chunks
	// is still found.
	for _, b := range chunk {
		if b != '\r' {
			d.buf = append(d.buf, b)
		}
	}

	var frames []Frame
	for {
		idx := bytes.Index(d.buf, separator)
		if idx < 0 {
			break
		}
		block := string(d.buf[:idx])
		d.buf = d.buf[idx+len(separator):]
		if f, ok := parseBlock(block); ok {
			frames = append(frames, f)
		}
	}
	if len(d.buf) == 0 {
		d.buf = nil
	}
	return frames
}

// Buffered reports how many bytes are waiting for a frame terminator.
func (d *Decoder) Buffered() int { return len(d.buf) }

// Reset drops any partially buffered frame.
func (d *Decoder) Reset() { d.buf = nil }

func parseBlock(block string) (Frame, bool) {
	if strings.TrimSpace(block) == "" {
		return Frame{}, false
	}
	var (
		f       Frame
		data    []string
		hasData bool
	)
	for _, line := range strings.Split(block, "\n") {
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			f.Event = strings.TrimSpace(value)
		case "data":
			data = append(data, value)
			hasData = true
		case "id":
			f.ID = strings.TrimSpace(value)
		}
	}
	if !hasData && f.Event == "" {
		return Frame{}, false
	}
	f.Data = strings.TrimSpace(strings.Join(data, "\n"))
	return f, true
}
