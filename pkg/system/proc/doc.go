// Package proc reads per-process kernel state from procfs on Linux and
// discovers process trees from it. It is the user-space half of the tree
// usage aggregation: pkg/usage builds its procfs strategy on top of it.
//
// Overview
//
//   - FS:
//     A procfs mount wrapped in an fs.FS. Default reads the host's /proc;
//     NewFS points at another mount (e.g. a container's /host/proc) and
//     NewFSFrom accepts any fs.FS, which keeps every reader testable with
//     testing/fstest fixtures.
//
//   - Readers:
//     ReadStat    : /proc/<pid>/stat -> Stat (ppid, own and reaped-children
//     faults and CPU ticks)
//     ReadPeakRSS : /proc/<pid>/status VmHWM line, in kB
//     ReadComm    : /proc/<pid>/comm
//     PIDs        : numeric entries of the procfs root
//
//   - Tree discovery:
//     Descendants(root) scans the whole process table once, builds a
//     parent -> children index and walks it breadth-first. There is no depth
//     limit and a visited set guards against PID-reuse cycles.
//
// # Races
//
// procfs is not a snapshot. Any PID may exit between being listed and being
// read, which surfaces as ENOENT or ESRCH (see IsGone). Readers return those
// errors untouched; Descendants treats such a PID as "not a descendant".
//
// # Stat format
//
// The second field of /proc/<pid>/stat is the command name in parentheses,
// copied verbatim from the task, so it may contain spaces, ')' or even a
// newline. ParseStat anchors on the last ')' in the buffer and splits the
// remainder on whitespace:
//
//	1234 (my (weird) name) S 1 1234 1234 0 -1 4194560 211 17 0 0 3 1 4 2 ...
//	                       ^ fields[0]
//
// # Units
//
// CPU values are in clock ticks (USER_HZ); divide by ClockTicks() for
// seconds. VmHWM is reported by the kernel in kB and returned unchanged.
//
// Package import path: github.com/ja7ad/treeusage/pkg/system/proc
package proc
