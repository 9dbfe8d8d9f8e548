//go:build linux

package proc

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/tklauser/go-sysconf"
)

// ClockTicks returns USER_HZ, the unit of the CPU tick fields in
// /proc/<pid>/stat. The CLK_TCK environment variable overrides it (tests pin
// it that way); otherwise it is sysconf(_SC_CLK_TCK), and 100 if that fails.
func ClockTicks() int {
	if v, _ := strconv.Atoi(os.Getenv("CLK_TCK")); v > 0 {
		return v
	}
	if v, err := sysconf.Sysconf(sysconf.SC_CLK_TCK); err == nil && v > 0 {
		return int(v)
	}
	return 100
}

// IsGone reports whether err means the process exited while it was being read.
// Depending on timing the kernel answers ENOENT (directory already reaped) or
// ESRCH (task exited but the dentry is still cached).
func IsGone(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ESRCH)
}

// FS reads process state from a procfs mount.
type FS struct {
	fsys fs.FS
}

// Default reads the host's /proc.
var Default = NewFS("/proc")

// NewFS returns an FS rooted at the given procfs mount point.
func NewFS(root string) FS {
	return FS{fsys: os.DirFS(root)}
}

// NewFSFrom wraps an arbitrary fs.FS laid out like procfs. Tests use it with
// fstest.MapFS fixtures.
func NewFSFrom(fsys fs.FS) FS {
	return FS{fsys: fsys}
}

// PIDs lists every numeric entry of the procfs root. The listing is not a
// consistent snapshot: entries may disappear before they are read.
func (p FS) PIDs() ([]int, error) {
	entries, err := fs.ReadDir(p.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("proc: list pids: %w", err)
	}
	pids := make([]int, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		pid, err := strconv.Atoi(e.Name())
		if err != nil || pid <= 0 {
			continue
		}
		pids = append(pids, pid)
	}
	return pids, nil
}

//
// Per-PID readers
//

// Stat is the subset of /proc/<pid>/stat used for tree discovery and
// resource accounting. Tick values are in USER_HZ, see ClockTicks.
type Stat struct {
	PID   int
	Comm  string
	State string
	PPID  int

	MinFlt  uint64 // own minor faults
	CMinFlt uint64 // minor faults of waited-for children
	MajFlt  uint64
	CMajFlt uint64

	UTime  uint64
	STime  uint64
	CUTime uint64 // user ticks of waited-for children
	CSTime uint64
}

// ReadStat reads and parses /proc/<pid>/stat.
func (p FS) ReadStat(pid int) (Stat, error) {
	b, err := fs.ReadFile(p.fsys, fmt.Sprintf("%d/stat", pid))
	if err != nil {
		return Stat{}, err
	}
	return ParseStat(b)
}

// ParseStat parses the single line of /proc/<pid>/stat.
//
// Caveats:
//   - comm (2nd field) is in parens and may itself contain spaces, parens or
//     newlines. The kernel never escapes it, so the only safe anchor is the
//     LAST ')' in the buffer; everything after it is whitespace separated.
//   - cutime/cstime are signed in the kernel; negative values are clamped to 0.
func ParseStat(b []byte) (Stat, error) {
	open := bytes.IndexByte(b, '(')
	end := bytes.LastIndexByte(b, ')')
	if open < 0 || end < open {
		return Stat{}, ErrNoStat
	}

	var st Stat
	pid, err := strconv.Atoi(strings.TrimSpace(string(b[:open])))
	if err != nil {
		return Stat{}, fmt.Errorf("%w: pid: %v", ErrNoStat, err)
	}
	st.PID = pid
	st.Comm = string(b[open+1 : end])

	// Indexes relative to fields slice (field N overall => fields[N-3]):
	// state=0 ppid=1 minflt=7 cminflt=8 majflt=9 cmajflt=10
	// utime=11 stime=12 cutime=13 cstime=14
	fields := strings.Fields(string(b[end+1:]))
	if len(fields) < 15 {
		return Stat{}, ErrShortStat
	}
	st.State = fields[0]

	ppid, err := strconv.Atoi(fields[1])
	if err != nil {
		return Stat{}, fmt.Errorf("%w: ppid: %v", ErrNoStat, err)
	}
	st.PPID = ppid

	counters := []struct {
		idx int
		dst *uint64
	}{
		{7, &st.MinFlt}, {8, &st.CMinFlt}, {9, &st.MajFlt}, {10, &st.CMajFlt},
		{11, &st.UTime}, {12, &st.STime}, {13, &st.CUTime}, {14, &st.CSTime},
	}
	for _, c := range counters {
		v, err := strconv.ParseInt(fields[c.idx], 10, 64)
		if err != nil {
			return Stat{}, fmt.Errorf("%w: field %d: %v", ErrNoStat, c.idx+3, err)
		}
		if v > 0 {
			*c.dst = uint64(v)
		}
	}
	return st, nil
}

// ReadPeakRSS returns the VmHWM (peak resident set size) of a PID in kB.
func (p FS) ReadPeakRSS(pid int) (uint64, error) {
	f, err := p.fsys.Open(fmt.Sprintf("%d/status", pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return ParsePeakRSS(f)
}

// ParsePeakRSS scans a /proc/<pid>/status stream for the "VmHWM:  N kB" line.
// Kernel threads have no address space and therefore no VmHWM line; that case
// is reported as ErrNoHWM.
func ParsePeakRSS(r io.Reader) (uint64, error) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "VmHWM:") {
			continue
		}
		fields := strings.Fields(strings.TrimPrefix(line, "VmHWM:"))
		if len(fields) < 1 {
			return 0, ErrNoHWM
		}
		kb, err := strconv.ParseUint(fields[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrNoHWM, err)
		}
		return kb, nil
	}
	if err := sc.Err(); err != nil {
		return 0, err
	}
	return 0, ErrNoHWM
}

// ReadComm returns the short command name from /proc/<pid>/comm.
func (p FS) ReadComm(pid int) (string, error) {
	b, err := fs.ReadFile(p.fsys, fmt.Sprintf("%d/comm", pid))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
