//go:build linux

package usage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ja7ad/treeusage/pkg/system/proc"
)

// procfsAggregator walks the tree through procfs. Each member contributes its
// own counters plus those of its reaped children, so work done by processes
// that already exited and were waited for is still accounted for.
type procfsAggregator struct {
	fs     proc.FS
	clkTck float64
	log    *slog.Logger
	// comm names trees from fs instead of the host process table; set when
	// fs is not the host's /proc.
	comm bool
}

type tally struct {
	utime, stime   uint64 // ticks
	minflt, majflt uint64
	peakKB         uint64
}

func (t *tally) add(st proc.Stat, peakKB uint64) {
	t.utime += st.UTime + st.CUTime
	t.stime += st.STime + st.CSTime
	t.minflt += st.MinFlt + st.CMinFlt
	t.majflt += st.MajFlt + st.CMajFlt
	// Peak RSS does not add up across processes: report the largest member.
	t.peakKB = max(t.peakKB, peakKB)
}

func (a *procfsAggregator) Aggregate(ctx context.Context, pid int) (Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return Snapshot{}, ContextError(pid, "procfs", err)
	}

	var t tally
	st, peak, err := a.member(pid)
	if err != nil {
		return Snapshot{}, procfsError(pid, err)
	}
	t.add(st, peak)

	for _, child := range a.fs.Descendants(pid).Slice() {
		if ctx.Err() != nil {
			break
		}
		st, peak, err := a.member(child)
		if err != nil {
			a.log.Debug("skip tree member", "root", pid, "pid", child, "err", err)
			continue
		}
		t.add(st, peak)
	}
	if err := ctx.Err(); err != nil {
		return Snapshot{}, ContextError(pid, "procfs", err)
	}

	return Snapshot{
		PID:         pid,
		Name:        a.name(ctx, pid),
		UserTime:    float64(t.utime) / a.clkTck,
		SysTime:     float64(t.stime) / a.clkTck,
		MaxRSSKB:    t.peakKB,
		MinorFaults: t.minflt,
		MajorFaults: t.majflt,
		At:          now(),
	}, nil
}

// member reads the stat and peak RSS of one PID. A missing VmHWM (kernel
// threads, zombies) counts as zero peak; a process that vanished between the
// two reads is reported as gone.
func (a *procfsAggregator) member(pid int) (proc.Stat, uint64, error) {
	st, err := a.fs.ReadStat(pid)
	if err != nil {
		return proc.Stat{}, 0, err
	}
	peak, err := a.fs.ReadPeakRSS(pid)
	switch {
	case err == nil:
	case errors.Is(err, proc.ErrNoHWM):
		peak = 0
	default:
		return proc.Stat{}, 0, err
	}
	return st, peak, nil
}

func (a *procfsAggregator) name(ctx context.Context, pid int) string {
	if !a.comm {
		return displayName(ctx, pid)
	}
	name, err := a.fs.ReadComm(pid)
	if err != nil || name == "" {
		return NotAvailable
	}
	return name
}
