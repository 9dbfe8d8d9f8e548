//go:build linux

package proc

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tklauser/go-sysconf"
)

// statLine renders a /proc/<pid>/stat line with the counters the package reads.
func statLine(pid int, comm string, ppid int, minflt, cminflt, majflt, cmajflt, ut, st, cut, cst uint64) string {
	var b strings.Builder
	b.WriteString(strconv.Itoa(pid))
	b.WriteString(" (" + comm + ") S ")
	b.WriteString(strconv.Itoa(ppid))
	b.WriteString(" 1 1 0 -1 4194560 ")
	for i, v := range []uint64{minflt, cminflt, majflt, cmajflt, ut, st, cut, cst} {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strconv.FormatUint(v, 10))
	}
	b.WriteString(" 20 0 1 0 100 1000000 300 18446744073709551615\n")
	return b.String()
}

func TestClockTicks(t *testing.T) {
	hz, err := sysconf.Sysconf(sysconf.SC_CLK_TCK)
	require.NoError(t, err)
	require.Positive(t, hz)

	t.Run("sysconf", func(t *testing.T) {
		t.Setenv("CLK_TCK", "")
		assert.Equal(t, int(hz), ClockTicks())
	})

	t.Run("env_override", func(t *testing.T) {
		t.Setenv("CLK_TCK", "250")
		assert.Equal(t, 250, ClockTicks())
	})

	t.Run("bad_env_ignored", func(t *testing.T) {
		t.Setenv("CLK_TCK", "garbage")
		assert.Equal(t, int(hz), ClockTicks())
		t.Setenv("CLK_TCK", "-5")
		assert.Equal(t, int(hz), ClockTicks())
	})
}

func TestParseStat(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		st, err := ParseStat([]byte(statLine(42, "bash", 1, 10, 20, 1, 2, 300, 40, 5, 6)))
		require.NoError(t, err)
		assert.Equal(t, 42, st.PID)
		assert.Equal(t, "bash", st.Comm)
		assert.Equal(t, "S", st.State)
		assert.Equal(t, 1, st.PPID)
		assert.Equal(t, uint64(10), st.MinFlt)
		assert.Equal(t, uint64(20), st.CMinFlt)
		assert.Equal(t, uint64(1), st.MajFlt)
		assert.Equal(t, uint64(2), st.CMajFlt)
		assert.Equal(t, uint64(300), st.UTime)
		assert.Equal(t, uint64(40), st.STime)
		assert.Equal(t, uint64(5), st.CUTime)
		assert.Equal(t, uint64(6), st.CSTime)
	})

	t.Run("name_with_spaces_and_parens", func(t *testing.T) {
		st, err := ParseStat([]byte(statLine(7, "a) b (c) 9 9", 3, 1, 1, 1, 1, 1, 1, 1, 1)))
		require.NoError(t, err)
		assert.Equal(t, "a) b (c) 9 9", st.Comm)
		assert.Equal(t, 3, st.PPID)
	})

	t.Run("name_with_newline", func(t *testing.T) {
		st, err := ParseStat([]byte(statLine(8, "evil\n1 (x) R 99", 4, 0, 0, 0, 0, 11, 0, 0, 0)))
		require.NoError(t, err)
		assert.Equal(t, 4, st.PPID)
		assert.Equal(t, uint64(11), st.UTime)
	})

	t.Run("negative_children_ticks_clamped", func(t *testing.T) {
		line := "9 (x) S 1 1 1 0 -1 0 1 2 3 4 5 6 -7 -8 20 0 1 0\n"
		st, err := ParseStat([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, uint64(0), st.CUTime)
		assert.Equal(t, uint64(0), st.CSTime)
	})

	t.Run("errors", func(t *testing.T) {
		_, err := ParseStat(nil)
		assert.ErrorIs(t, err, ErrNoStat)

		_, err = ParseStat([]byte("12 no parens S 1"))
		assert.ErrorIs(t, err, ErrNoStat)

		_, err = ParseStat([]byte("12 (short) S 1 2 3"))
		assert.ErrorIs(t, err, ErrShortStat)

		_, err = ParseStat([]byte("12 (bad) S x 1 1 0 -1 0 1 2 3 4 5 6 7 8\n"))
		assert.ErrorIs(t, err, ErrNoStat)

		_, err = ParseStat([]byte("12 (bad) S 1 1 1 0 -1 0 1 2 3 4 5 zz 7 8\n"))
		assert.ErrorIs(t, err, ErrNoStat)
	})
}

func FuzzParseStat(f *testing.F) {
	f.Add("bash", 10)
	f.Add("a) (b", 1)
	f.Add("new\nline", 2)
	f.Add("", 0)
	f.Add(") ) )", 7)

	f.Fuzz(func(t *testing.T, comm string, ppid int) {
		if ppid < 0 {
			ppid = -ppid
		}
		line := statLine(100, comm, ppid, 1, 2, 3, 4, 5, 6, 7, 8)
		st, err := ParseStat([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, ppid, st.PPID)
		assert.Equal(t, comm, st.Comm)
		assert.Equal(t, uint64(5), st.UTime)
		assert.Equal(t, uint64(8), st.CSTime)

		// Arbitrary bytes must never panic.
		_, _ = ParseStat([]byte(comm))
	})
}

func TestParsePeakRSS(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		status := "Name:\tbash\nVmPeak:\t  9000 kB\nVmHWM:\t    4321 kB\nVmRSS:\t 4000 kB\n"
		kb, err := ParsePeakRSS(strings.NewReader(status))
		require.NoError(t, err)
		assert.Equal(t, uint64(4321), kb)
	})
	t.Run("kernel_thread", func(t *testing.T) {
		_, err := ParsePeakRSS(strings.NewReader("Name:\tkworker/0:1\nState:\tI (idle)\n"))
		assert.ErrorIs(t, err, ErrNoHWM)
	})
	t.Run("garbage_value", func(t *testing.T) {
		_, err := ParsePeakRSS(strings.NewReader("VmHWM:\t lots kB\n"))
		assert.ErrorIs(t, err, ErrNoHWM)
	})
}

func TestFSReaders(t *testing.T) {
	fsys := fstest.MapFS{
		"1/stat":     {Data: []byte(statLine(1, "init", 0, 1, 0, 0, 0, 5, 5, 0, 0))},
		"1/status":   {Data: []byte("Name:\tinit\nVmHWM:\t  100 kB\n")},
		"1/comm":     {Data: []byte("init\n")},
		"self":       {Data: []byte("1"), Mode: fs.ModeSymlink},
		"meminfo":    {Data: []byte("MemTotal: 1 kB\n")},
		"77/stat":    {Data: []byte("garbage")},
		"cpuinfo":    {Data: []byte("")},
		"sys/kernel": {Mode: fs.ModeDir},
	}
	p := NewFSFrom(fsys)

	pids, err := p.PIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 77}, pids)

	st, err := p.ReadStat(1)
	require.NoError(t, err)
	assert.Equal(t, "init", st.Comm)

	kb, err := p.ReadPeakRSS(1)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), kb)

	name, err := p.ReadComm(1)
	require.NoError(t, err)
	assert.Equal(t, "init", name)

	_, err = p.ReadStat(2)
	assert.True(t, IsGone(err))

	_, err = p.ReadStat(77)
	assert.ErrorIs(t, err, ErrNoStat)
	assert.False(t, IsGone(err))
}

func TestIsGone(t *testing.T) {
	assert.True(t, IsGone(fs.ErrNotExist))
	assert.True(t, IsGone(&fs.PathError{Op: "read", Path: "/proc/1/stat", Err: syscall.ESRCH}))
	assert.True(t, IsGone(&fs.PathError{Op: "open", Path: "/proc/1/stat", Err: syscall.ENOENT}))
	assert.False(t, IsGone(fs.ErrPermission))
	assert.False(t, IsGone(errors.New("boom")))
	assert.False(t, IsGone(nil))
}

func TestDefault_Self(t *testing.T) {
	me := os.Getpid()
	st, err := Default.ReadStat(me)
	require.NoError(t, err)
	assert.Equal(t, me, st.PID)
	assert.Equal(t, os.Getppid(), st.PPID)

	kb, err := Default.ReadPeakRSS(me)
	require.NoError(t, err)
	assert.Greater(t, kb, uint64(0))
}
