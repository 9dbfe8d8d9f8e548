//go:build linux

package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/ja7ad/treeusage/pkg/system/util"
	"github.com/ja7ad/treeusage/pkg/usage"
)

// CSVHeader is the first row written by CSVWriter.
var CSVHeader = []string{
	"time", "pid", "process_name", "user_time", "sys_time",
	"max_rss_kb", "minor_page_faults", "major_page_faults",
}

// CSVWriter writes one row per snapshot.
type CSVWriter struct {
	mu     sync.Mutex
	closer io.Closer
	w      *csv.Writer
	header bool
}

// CreateCSV creates (or truncates) path.
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := create(path)
	if err != nil {
		return nil, err
	}
	return &CSVWriter{closer: f, w: csv.NewWriter(f)}, nil
}

// NewCSV writes to w. Close flushes but does not close w.
func NewCSV(w io.Writer) *CSVWriter {
	return &CSVWriter{closer: nopCloser{w}, w: csv.NewWriter(w)}
}

func (c *CSVWriter) Write(s usage.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.header {
		if err := c.w.Write(CSVHeader); err != nil {
			return err
		}
		c.header = true
	}
	_ = c.w.Write([]string{
		s.At.Format(time.RFC3339Nano),
		strconv.Itoa(s.PID),
		s.Name,
		util.FmtFloat(s.UserTime),
		util.FmtFloat(s.SysTime),
		strconv.FormatUint(s.MaxRSSKB, 10),
		strconv.FormatUint(s.MinorFaults, 10),
		strconv.FormatUint(s.MajorFaults, 10),
	})
	c.w.Flush()
	return c.w.Error()
}

func (c *CSVWriter) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return err
	}
	return c.closer.Close()
}
