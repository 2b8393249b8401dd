package recorder

import "errors"

// MultiWriter fans rows out to several writers. Every writer sees every row
// even if an earlier one fails.
type MultiWriter struct {
	writers []EventWriter
}

// NewMultiWriter creates a MultiWriter.
func NewMultiWriter(ws ...EventWriter) *MultiWriter {
	return &MultiWriter{writers: ws}
}

// Write sends a row to all writers.
func (mw *MultiWriter) Write(row Row) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.Write(row); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WriteBatch sends rows to all writers.
func (mw *MultiWriter) WriteBatch(rows []Row) error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.WriteBatch(rows); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
