//go:build linux

// Package export writes usage snapshots to files: JSON Lines and CSV as they
// are produced, and an HTML report at the end of a session.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ja7ad/treeusage/pkg/usage"
)

const DefaultBufferSize = 64 * 1024

// Sink receives every snapshot of a monitoring session.
type Sink interface {
	Write(s usage.Snapshot) error
	Close() error
}

// create makes the parent directories of path and creates the file.
func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}
	return f, nil
}

// Multi fans snapshots out to several sinks.
type Multi []Sink

func (m Multi) Write(s usage.Snapshot) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Write(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
