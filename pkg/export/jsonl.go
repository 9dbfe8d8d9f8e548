//go:build linux

package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ja7ad/treeusage/pkg/usage"
)

// JSONLWriter writes one JSON object per snapshot per line.
type JSONLWriter struct {
	mu     sync.Mutex
	closer io.Closer
	writer *bufio.Writer
}

// CreateJSONL creates (or truncates) path.
func CreateJSONL(path string) (*JSONLWriter, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	return newJSONL(f, f), nil
}

// NewJSONL writes to w. Close flushes but does not close w.
func NewJSONL(w io.Writer) *JSONLWriter {
	return newJSONL(w, nopCloser{w})
}

func newJSONL(w io.Writer, c io.Closer) *JSONLWriter {
	return &JSONLWriter{closer: c, writer: bufio.NewWriterSize(w, DefaultBufferSize)}
}

// Write appends s and flushes, so a tail -f of the file stays current.
func (w *JSONLWriter) Write(s usage.Snapshot) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("export: marshal snapshot: %w", err)
	}
	if _, err := w.writer.Write(data); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("export: write: %w", err)
	}
	return w.writer.Flush()
}

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.closer.Close()
}
