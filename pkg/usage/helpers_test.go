//go:build linux

package usage

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/ja7ad/treeusage/pkg/system/proc"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// stubHooks replaces name lookup and the clock for the duration of a test.
func stubHooks(t *testing.T) {
	t.Helper()
	origName, origNow := lookupName, now
	lookupName = func(_ context.Context, pid int) (string, error) {
		return "proc-" + strconv.Itoa(pid), nil
	}
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { lookupName, now = origName, origNow })
}

// member describes one fixture process.
type member struct {
	ppid                             int
	minflt, cminflt, majflt, cmajflt uint64
	ut, st, cut, cst                 uint64
	hwmKB                            int // <0 means no VmHWM line
}

func procFixture(members map[int]member) fstest.MapFS {
	fsys := fstest.MapFS{}
	for pid, m := range members {
		fsys[fmt.Sprintf("%d/stat", pid)] = &fstest.MapFile{Data: []byte(fmt.Sprintf(
			"%d (p%d) S %d 1 1 0 -1 4194560 %d %d %d %d %d %d %d %d 20 0 1 0 100\n",
			pid, pid, m.ppid, m.minflt, m.cminflt, m.majflt, m.cmajflt, m.ut, m.st, m.cut, m.cst))}
		var status strings.Builder
		fmt.Fprintf(&status, "Name:\tp%d\nState:\tS (sleeping)\n", pid)
		if m.hwmKB >= 0 {
			fmt.Fprintf(&status, "VmHWM:\t%8d kB\n", m.hwmKB)
		}
		fsys[fmt.Sprintf("%d/status", pid)] = &fstest.MapFile{Data: []byte(status.String())}
		fsys[fmt.Sprintf("%d/comm", pid)] = &fstest.MapFile{Data: []byte(fmt.Sprintf("p%d\n", pid))}
	}
	return fsys
}

func fixtureAggregator(t *testing.T, fsys fs.FS) Aggregator {
	t.Helper()
	t.Setenv("CLK_TCK", "100")
	pfs := proc.NewFSFrom(fsys)
	a, err := New(Options{Strategy: Procfs, FS: &pfs})
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	return a
}

// denyFS fails opens of the listed paths with a permission error.
type denyFS struct {
	fs.FS
	deny map[string]bool
}

func (d denyFS) Open(name string) (fs.File, error) {
	if d.deny[name] {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrPermission}
	}
	return d.FS.Open(name)
}

// fakeAggregator returns canned answers and counts calls.
type fakeAggregator struct {
	snap  Snapshot
	err   error
	calls int
}

func (f *fakeAggregator) Aggregate(_ context.Context, pid int) (Snapshot, error) {
	f.calls++
	if f.err != nil {
		return Snapshot{}, f.err
	}
	s := f.snap
	s.PID = pid
	return s, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
