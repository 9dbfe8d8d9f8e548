//go:build linux

package usage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/ja7ad/treeusage/pkg/system/proc"
)

var (
	// ErrProcessNotFound indicates that the root process does not exist or
	// exited before any of its state could be read.
	ErrProcessNotFound = errors.New("usage: process not found")

	// ErrPermissionDenied indicates that the caller may not inspect the root.
	ErrPermissionDenied = errors.New("usage: permission denied")

	// ErrUnavailable indicates that the subtree syscall is not implemented by
	// the running kernel. It selects the procfs strategy and is never shown
	// to users.
	ErrUnavailable = errors.New("usage: subtree syscall unavailable")

	// ErrTimeout indicates that a query did not finish within its deadline.
	ErrTimeout = errors.New("usage: query timed out")

	// ErrMalformed indicates that kernel state for the root exists but does
	// not parse.
	ErrMalformed = errors.New("usage: malformed kernel state")
)

// Error describes a failed aggregation for one root PID. It unwraps to both
// its Kind (one of the sentinels above, when classified) and its cause.
type Error struct {
	PID  int
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := "unknown error"
	switch {
	case e.Err != nil:
		msg = e.Err.Error()
	case e.Kind != nil:
		msg = e.Kind.Error()
	}
	return fmt.Sprintf("%s pid %d: %s", e.Op, e.PID, msg)
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsGone reports whether err means the root is no longer observable: it
// exited, was never there, or its query timed out.
func IsGone(err error) bool {
	return errors.Is(err, ErrProcessNotFound) || errors.Is(err, ErrTimeout)
}

// ContextError wraps a context failure for pid. Deadlines map to ErrTimeout.
func ContextError(pid int, op string, err error) error {
	var kind error
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &Error{PID: pid, Op: op, Kind: kind, Err: err}
}

// procfsError classifies a failure to read the root's procfs files.
func procfsError(pid int, err error) error {
	var kind error
	switch {
	case proc.IsGone(err):
		kind = ErrProcessNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = ErrPermissionDenied
	case errors.Is(err, proc.ErrNoStat), errors.Is(err, proc.ErrShortStat), errors.Is(err, proc.ErrNoHWM):
		kind = ErrMalformed
	}
	return &Error{PID: pid, Op: "procfs", Kind: kind, Err: err}
}
