//go:build linux

// Package usage aggregates CPU time, peak resident memory and page faults
// over a process and all of its descendants.
//
// Two strategies exist. The subtree syscall asks the kernel for the totals in
// one call and is only present on patched kernels. The procfs strategy walks
// the tree with pkg/system/proc and sums every member's own and reaped
// children counters. New probes the kernel once and picks one.
package usage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ja7ad/treeusage/pkg/system/proc"
)

// Snapshot is the aggregated resource usage of one process tree at one instant.
type Snapshot struct {
	PID         int       `json:"pid"`
	Name        string    `json:"process_name"`
	UserTime    float64   `json:"user_time"` // seconds
	SysTime     float64   `json:"sys_time"`  // seconds
	MaxRSSKB    uint64    `json:"max_rss_kb"`
	MinorFaults uint64    `json:"minor_page_faults"`
	MajorFaults uint64    `json:"major_page_faults"`
	At          time.Time `json:"time"`
}

// CPUTime returns user plus system seconds.
func (s Snapshot) CPUTime() float64 { return s.UserTime + s.SysTime }

// Aggregator computes a Snapshot for the tree rooted at a PID.
// Implementations are safe for concurrent use.
type Aggregator interface {
	Aggregate(ctx context.Context, pid int) (Snapshot, error)
}

// Strategy selects how an Aggregator obtains its numbers.
type Strategy string

const (
	// Auto uses the subtree syscall when the kernel has it and procfs otherwise.
	Auto Strategy = "auto"
	// Syscall always uses the subtree syscall.
	Syscall Strategy = "syscall"
	// Procfs always walks /proc.
	Procfs Strategy = "procfs"
)

// ParseStrategy converts a user-supplied name into a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return Auto, nil
	case Auto, Syscall, Procfs:
		return st, nil
	default:
		return "", fmt.Errorf("usage: unknown strategy %q (want auto, syscall or procfs)", s)
	}
}

// Options configure New. The zero value probes the default syscall number
// against the host's /proc.
type Options struct {
	Strategy      Strategy
	SyscallNumber uintptr  // 0 selects DefaultSyscallNumber
	FS            *proc.FS // nil selects proc.Default; otherwise names come from its comm files
	Logger        *slog.Logger
}

// New returns an Aggregator for the requested strategy. With Auto it issues
// one probe query against the calling process and falls back to procfs when
// the kernel does not implement the subtree syscall.
func New(opts Options) (Aggregator, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	fsys := proc.Default
	custom := opts.FS != nil
	if custom {
		fsys = *opts.FS
	}
	nr := opts.SyscallNumber
	if nr == 0 {
		nr = DefaultSyscallNumber
	}

	walk := &procfsAggregator{fs: fsys, clkTck: float64(proc.ClockTicks()), log: log, comm: custom}
	fast := &syscallAggregator{nr: nr}

	switch opts.Strategy {
	case Procfs:
		log.Info("aggregation strategy", "strategy", Procfs)
		return walk, nil
	case Syscall:
		log.Info("aggregation strategy", "strategy", Syscall, "nr", nr)
		return fast, nil
	case Auto, "":
		if err := fast.probe(); err != nil {
			log.Info("aggregation strategy", "strategy", Procfs, "nr", nr, "reason", err)
			return walk, nil
		}
		log.Info("aggregation strategy", "strategy", Syscall, "nr", nr)
		return &chain{primary: fast, fallback: walk, log: log}, nil
	default:
		return nil, fmt.Errorf("usage: unknown strategy %q", opts.Strategy)
	}
}

// StrategyOf reports which strategy an Aggregator built by New uses.
func StrategyOf(a Aggregator) Strategy {
	switch a.(type) {
	case *procfsAggregator:
		return Procfs
	case *syscallAggregator, *chain:
		return Syscall
	default:
		return ""
	}
}

// chain uses primary and, only when primary reports ErrUnavailable, fallback.
// Every other primary error is final.
type chain struct {
	primary  Aggregator
	fallback Aggregator
	log      *slog.Logger
}

func (c *chain) Aggregate(ctx context.Context, pid int) (Snapshot, error) {
	s, err := c.primary.Aggregate(ctx, pid)
	if err == nil || !errors.Is(err, ErrUnavailable) {
		return s, err
	}
	c.log.Debug("subtree syscall unavailable, using procfs", "pid", pid, "err", err)
	return c.fallback.Aggregate(ctx, pid)
}

// self is the probe target. Tests replace it.
var self = os.Getpid

// now stamps snapshots. Tests replace it.
var now = time.Now
