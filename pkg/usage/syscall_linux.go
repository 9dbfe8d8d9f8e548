//go:build linux

package usage

import (
	"context"
	"unsafe"

	"golang.org/x/sys/unix"
)

// DefaultSyscallNumber is the number the subtree rusage syscall is wired to
// on kernels carrying the patch. Unpatched kernels answer ENOSYS.
const DefaultSyscallNumber uintptr = 472

// rawSubtreeRusage issues the syscall. Tests replace it to simulate kernels.
var rawSubtreeRusage = func(nr uintptr, pid int, ru *unix.Rusage) unix.Errno {
	_, _, errno := unix.Syscall(nr, uintptr(pid), 0, uintptr(unsafe.Pointer(ru)))
	return errno
}

// syscallAggregator asks the kernel for the totals of the whole subtree in
// one call. The call cannot be interrupted, so ctx is only checked before it.
type syscallAggregator struct {
	nr uintptr
}

func (a *syscallAggregator) Aggregate(ctx context.Context, pid int) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, ContextError(pid, "syscall", err)
	}
	var ru unix.Rusage
	if errno := rawSubtreeRusage(a.nr, pid, &ru); errno != 0 {
		return Snapshot{}, syscallError(pid, errno)
	}
	s := fromRusage(pid, &ru)
	s.Name = displayName(ctx, pid)
	s.At = now()
	return s, nil
}

// probe queries the calling process. Any errno here is an infrastructure
// problem (no such syscall, or something else wired to the number), so the
// caller should not use this strategy at all.
func (a *syscallAggregator) probe() error {
	var ru unix.Rusage
	pid := self()
	if errno := rawSubtreeRusage(a.nr, pid, &ru); errno != 0 {
		return syscallError(pid, errno)
	}
	return nil
}

func syscallError(pid int, errno unix.Errno) error {
	var kind error
	switch errno {
	case unix.ENOSYS:
		kind = ErrUnavailable
	case unix.ESRCH:
		kind = ErrProcessNotFound
	case unix.EPERM, unix.EACCES:
		kind = ErrPermissionDenied
	}
	return &Error{PID: pid, Op: "syscall", Kind: kind, Err: errno}
}

func fromRusage(pid int, ru *unix.Rusage) Snapshot {
	return Snapshot{
		PID:         pid,
		UserTime:    seconds(ru.Utime),
		SysTime:     seconds(ru.Stime),
		MaxRSSKB:    nonNeg(ru.Maxrss),
		MinorFaults: nonNeg(ru.Minflt),
		MajorFaults: nonNeg(ru.Majflt),
	}
}

func seconds(tv unix.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

func nonNeg[T int32 | int64](v T) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}
