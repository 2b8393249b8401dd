package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// FileWriter appends rows to a JSONL file.
type FileWriter struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileWriter opens path for appending, creating it if needed.
func NewFileWriter(path string) (*FileWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open recording: %w", err)
	}
	return &FileWriter{file: f, enc: json.NewEncoder(f)}, nil
}

// Write appends a single row.
func (f *FileWriter) Write(row Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enc.Encode(row)
}

// WriteBatch appends multiple rows.
func (f *FileWriter) WriteBatch(rows []Row) error { return writeEach(rows, f.Write) }

// Close closes the underlying file.
func (f *FileWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}
