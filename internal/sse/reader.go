package sse

import (
	"errors"
	"io"
)

const readChunkSize = 4096

// Reader pulls frames lazily from an underlying stream such as an HTTP
// response body.
type Reader struct {
	r       io.Reader
	dec     Decoder
	pending []Frame
	chunk   []byte
	err     error
}

// NewReader wraps r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, chunk: make([]byte, readChunkSize)}
}

// Next returns the next complete frame. It returns io.EOF once the stream is
// closed; a trailing block without its blank-line terminator is discarded.
// Any other error is a transport failure and is returned as-is.
func (r *Reader) Next() (Frame, error) {
	for len(r.pending) == 0 {
		if r.err != nil {
			return Frame{}, r.err
		}
		n, err := r.r.Read(r.chunk)
		if n > 0 {
			r.pending = append(r.pending, r.dec.Feed(r.chunk[:n])...)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				err = io.EOF
			}
			r.err = err
		}
	}
	f := r.pending[0]
	r.pending = r.pending[1:]
	return f, nil
}
