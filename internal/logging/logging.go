// Package logging builds the prefixed standard library loggers every newsdesk
// component writes through.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
)

// Flags is shared by every logger so log lines parse the same way.
const Flags = log.LstdFlags | log.Lmicroseconds | log.LUTC

// New creates a logger for component writing to w; nil w means stderr.
func New(component string, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, "["+component+"] ", Flags)
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// OpenFile opens path for appending, creating its directory as needed.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return file, nil
}
