// Package util holds small helpers shared by the treeusage commands.
package util

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxRange caps how many PIDs a single "A..B" argument may expand to.
const MaxRange = 1 << 16

// ParsePIDs parses command-line PID arguments. Each argument is a PID, a
// comma separated list, or an inclusive range "A..B". Duplicates are dropped;
// the first occurrence keeps its position.
func ParsePIDs(args []string) ([]int, error) {
	var pids []int
	seen := map[int]bool{}
	add := func(pid int) {
		if !seen[pid] {
			seen[pid] = true
			pids = append(pids, pid)
		}
	}

	for _, arg := range args {
		for _, tok := range strings.Split(arg, ",") {
			tok = strings.TrimSpace(tok)
			if tok == "" {
				continue
			}
			lo, hi, isRange := strings.Cut(tok, "..")
			if !isRange {
				pid, err := parsePID(tok)
				if err != nil {
					return nil, err
				}
				add(pid)
				continue
			}
			from, err := parsePID(lo)
			if err != nil {
				return nil, err
			}
			to, err := parsePID(hi)
			if err != nil {
				return nil, err
			}
			if to < from {
				return nil, fmt.Errorf("invalid range %q: end before start", tok)
			}
			if to-from >= MaxRange {
				return nil, fmt.Errorf("invalid range %q: more than %d pids", tok, MaxRange)
			}
			for pid := from; pid <= to; pid++ {
				add(pid)
			}
		}
	}
	return pids, nil
}

func parsePID(s string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid %q", s)
	}
	return pid, nil
}

// FmtFloat formats v for CSV output without trailing zeros.
func FmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
