//go:build linux

package proc

import (
	"github.com/hashicorp/go-set/v3"
)

// Descendants returns every live process transitively forked from root, not
// including root itself.
//
// The process table keeps changing while it is scanned: a PID that vanishes
// between the listing and the stat read, or whose stat does not parse, is
// simply not a descendant. The result is stale the moment it is returned.
func (p FS) Descendants(root int) *set.Set[int] {
	family := set.New[int](0)

	pids, err := p.PIDs()
	if err != nil {
		return family
	}

	parents := p.mapping(pids)
	queue := []int{root}
	for len(queue) > 0 {
		parent := queue[0]
		queue = queue[1:]
		for _, child := range parents[parent] {
			// PID reuse can produce a parent cycle; the visited check ends it.
			if child == root || family.Contains(child) {
				continue
			}
			family.Insert(child)
			queue = append(queue, child)
		}
	}
	return family
}

// mapping builds a reverse map of parent to children.
func (p FS) mapping(pids []int) map[int][]int {
	parents := make(map[int][]int, len(pids))
	for _, pid := range pids {
		st, err := p.ReadStat(pid)
		if err != nil {
			continue
		}
		if st.PPID == pid {
			continue
		}
		parents[st.PPID] = append(parents[st.PPID], pid)
	}
	return parents
}
