//go:build linux

package monitor

import (
	"time"

	"github.com/ja7ad/treeusage/pkg/usage"
)

// Rate is the change of a tree's counters between two snapshots.
type Rate struct {
	At          time.Time
	CPU         float64 // cores busy: delta(user+sys) / delta(wall)
	MinorPerSec float64
	MajorPerSec float64
}

// RateBetween derives a Rate from two snapshots of the same root. Counters
// that went backwards count as zero: procfs loses the time of members that
// exit without being waited for by another member.
func RateBetween(prev, cur usage.Snapshot) Rate {
	wall := cur.At.Sub(prev.At).Seconds()
	cpu := cur.CPUTime() - prev.CPUTime()
	if cpu < 0 {
		cpu = 0
	}
	return Rate{
		At:          cur.At,
		CPU:         safeDiv(cpu, wall),
		MinorPerSec: safeDiv(float64(deltaU64(cur.MinorFaults, prev.MinorFaults)), wall),
		MajorPerSec: safeDiv(float64(deltaU64(cur.MajorFaults, prev.MajorFaults)), wall),
	}
}

// Rates converts a chronological history into len(history)-1 rates smoothed
// with an exponential moving average. alpha in (0,1]; 1 disables smoothing.
func Rates(history []usage.Snapshot, alpha float64) []Rate {
	if len(history) < 2 {
		return nil
	}
	cpu, minor, major := newEMA(alpha), newEMA(alpha), newEMA(alpha)
	out := make([]Rate, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		r := RateBetween(history[i-1], history[i])
		r.CPU = cpu.next(r.CPU)
		r.MinorPerSec = minor.next(r.MinorPerSec)
		r.MajorPerSec = major.next(r.MajorPerSec)
		out = append(out, r)
	}
	return out
}

type ema struct {
	alpha, prev float64
	ok          bool
}

func newEMA(alpha float64) *ema { return &ema{alpha: alpha} }

func (e *ema) next(v float64) float64 {
	if !e.ok {
		e.prev, e.ok = v, true
		return v
	}
	e.prev = e.alpha*v + (1-e.alpha)*e.prev
	return e.prev
}

func deltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	return 0
}

func safeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}
