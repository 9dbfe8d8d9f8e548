//go:build linux

package monitor

import "github.com/ja7ad/treeusage/pkg/usage"

// ring keeps the newest cap snapshots of one root.
type ring struct {
	buf  []usage.Snapshot
	next int
	full bool
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]usage.Snapshot, capacity)}
}

func (r *ring) push(s usage.Snapshot) {
	r.buf[r.next] = s
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// items returns a copy, oldest first.
func (r *ring) items() []usage.Snapshot {
	out := make([]usage.Snapshot, 0, r.len())
	if r.full {
		out = append(out, r.buf[r.next:]...)
	}
	return append(out, r.buf[:r.next]...)
}
