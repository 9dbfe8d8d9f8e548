package proc

import "errors"

var (
	// ErrNoStat indicates that /proc/<pid>/stat was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that /proc/<pid>/stat had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")

	// ErrNoHWM indicates that /proc/<pid>/status carried no usable VmHWM line
	// (kernel threads have none).
	ErrNoHWM = errors.New("proc: no VmHWM")
)
