//go:build linux

// Package monitor polls a set of process trees on an interval and keeps a
// bounded history of their usage snapshots.
//
// A Monitor is either Idle or Monitoring. Start replaces the watch set, Stop
// clears it, and each Poll queries every watched root concurrently and then
// applies the results atomically: successes are appended to the root's
// history, failures evict the root. Results of a cycle that overlapped a
// Start or Stop are discarded. Run drives Poll from a timer.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v3"
	"golang.org/x/sync/errgroup"

	"github.com/ja7ad/treeusage/pkg/usage"
)

// Monitoring defaults and limits.
const (
	// MinInterval is the shortest accepted poll interval; Start raises
	// anything lower to it.
	MinInterval     = 100 * time.Millisecond
	DefaultInterval = time.Second

	// MaxHistorySize bounds the snapshots kept per root. Larger
	// Options.HistorySize values are clamped to it.
	MaxHistorySize      = 100
	DefaultHistorySize  = MaxHistorySize
	DefaultQueryTimeout = 2 * time.Second
	DefaultWorkers      = 8
)

// State is the lifecycle of a Monitor.
type State int

const (
	// Idle: nothing is watched and Poll returns ErrIdle.
	Idle State = iota
	// Monitoring: at least one root is watched.
	Monitoring
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Monitoring:
		return "monitoring"
	default:
		return "unknown"
	}
}

// Options configure New. Only Aggregator is required.
type Options struct {
	Aggregator   usage.Aggregator
	HistorySize  int           // per root; 0 selects DefaultHistorySize, capped at MaxHistorySize
	QueryTimeout time.Duration // per root per cycle; 0 selects DefaultQueryTimeout
	Workers      int           // concurrent queries; 0 selects DefaultWorkers
	Logger       *slog.Logger
}

// Eviction records a root that stopped being watched and why.
type Eviction struct {
	PID int
	Err error
}

// Delta is the outcome of one poll cycle.
type Delta struct {
	Session   string
	Cycle     uint64
	Snapshots []usage.Snapshot // ordered by PID
	Evicted   []Eviction       // ordered by PID
	Stopped   bool             // the last root was evicted; the monitor is Idle
	Discarded bool             // a Start or Stop overlapped the cycle; nothing was applied
}

// Monitor owns the watch set, the per-root histories and the poll cycle.
// All methods are safe for concurrent use; cycles never overlap.
type Monitor struct {
	agg         usage.Aggregator
	log         *slog.Logger
	historySize int
	timeout     time.Duration
	workers     int

	mu       sync.Mutex
	state    State
	watch    *set.Set[int]
	history  map[int]*ring
	interval time.Duration
	session  string
	epoch    uint64
	cycle    uint64

	// busy holds a token while a cycle runs; Poll calls queue on it.
	busy chan struct{}
	wake chan struct{}
}

// New returns an Idle Monitor. It panics if opts.Aggregator is nil.
func New(opts Options) *Monitor {
	if opts.Aggregator == nil {
		panic("monitor: nil aggregator")
	}
	m := &Monitor{
		agg:         opts.Aggregator,
		log:         opts.Logger,
		historySize: opts.HistorySize,
		timeout:     opts.QueryTimeout,
		workers:     opts.Workers,
		watch:       set.New[int](0),
		history:     map[int]*ring{},
		interval:    DefaultInterval,
		busy:        make(chan struct{}, 1),
		wake:        make(chan struct{}, 1),
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.historySize <= 0 {
		m.historySize = DefaultHistorySize
	}
	m.historySize = min(m.historySize, MaxHistorySize)
	if m.timeout <= 0 {
		m.timeout = DefaultQueryTimeout
	}
	if m.workers <= 0 {
		m.workers = DefaultWorkers
	}
	return m
}

// Start replaces the watch set with pids and begins a new session. Duplicate
// and non-positive PIDs are dropped; if none remain it returns ErrNoPIDs and
// leaves the monitor untouched. The interval is floored to MinInterval.
func (m *Monitor) Start(pids []int, interval time.Duration) error {
	roots := set.New[int](len(pids))
	for _, pid := range pids {
		if pid > 0 {
			roots.Insert(pid)
		}
	}
	if roots.Empty() {
		return ErrNoPIDs
	}

	m.mu.Lock()
	m.watch = roots
	m.history = make(map[int]*ring, roots.Size())
	for _, pid := range roots.Slice() {
		m.history[pid] = newRing(m.historySize)
	}
	m.interval = max(interval, MinInterval)
	m.session = uuid.NewString()
	m.epoch++
	m.cycle = 0
	m.state = Monitoring
	session, watched, every := m.session, m.sortedLocked(), m.interval
	m.mu.Unlock()

	m.log.Info("monitoring started", "session", session, "pids", watched, "interval", every)
	m.signal()
	return nil
}

// Stop clears the watch set and all history. Results of an in-flight cycle
// are dropped and a waiting Run returns.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state == Idle {
		m.mu.Unlock()
		return
	}
	session := m.session
	m.resetLocked()
	m.mu.Unlock()

	m.log.Info("monitoring stopped", "session", session)
	m.signal()
}

func (m *Monitor) resetLocked() {
	m.watch = set.New[int](0)
	m.history = map[int]*ring{}
	m.state = Idle
	m.epoch++
}

type result struct {
	pid  int
	snap usage.Snapshot
	err  error
}

// Poll runs one cycle. It returns ErrIdle when not monitoring, and ctx's
// error, with nothing applied, when ctx ends before every query finished.
// Concurrent calls are serialized: a Poll waits for the running cycle to be
// applied before it starts its own.
func (m *Monitor) Poll(ctx context.Context) (Delta, error) {
	select {
	case m.busy <- struct{}{}:
	case <-ctx.Done():
		return Delta{}, ctx.Err()
	}
	defer func() { <-m.busy }()

	m.mu.Lock()
	if m.state != Monitoring {
		m.mu.Unlock()
		return Delta{}, ErrIdle
	}
	epoch, session, pids := m.epoch, m.session, m.sortedLocked()
	m.mu.Unlock()

	results := make([]result, len(pids))
	var g errgroup.Group
	g.SetLimit(m.workers)
	for i, pid := range pids {
		g.Go(func() error {
			results[i] = m.query(ctx, pid)
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return Delta{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.epoch != epoch {
		return Delta{Session: session, Discarded: true}, nil
	}

	m.cycle++
	d := Delta{Session: session, Cycle: m.cycle}
	for _, r := range results {
		if r.err != nil {
			m.watch.Remove(r.pid)
			delete(m.history, r.pid)
			d.Evicted = append(d.Evicted, Eviction{PID: r.pid, Err: r.err})
			m.log.Info("stopped watching process", "pid", r.pid, "err", r.err, "session", session)
			continue
		}
		m.history[r.pid].push(r.snap)
		d.Snapshots = append(d.Snapshots, r.snap)
	}

	if m.watch.Empty() {
		m.resetLocked()
		d.Stopped = true
		m.log.Info("monitoring stopped", "session", session, "reason", "no processes left")
	}
	return d, nil
}

// query aggregates one root. The aggregation runs in its own goroutine so a
// read stuck in the kernel cannot hold the cycle past the timeout.
func (m *Monitor) query(ctx context.Context, pid int) result {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		s, err := m.agg.Aggregate(ctx, pid)
		done <- result{pid: pid, snap: s, err: err}
	}()

	select {
	case r := <-done:
		return r
	case <-ctx.Done():
		return result{pid: pid, err: usage.ContextError(pid, "query", ctx.Err())}
	}
}

// Run polls until monitoring stops or ctx ends, calling emit with every
// applied Delta. It waits Interval between cycles; Start and Stop cut the
// wait short. Run returns nil once the monitor is Idle.
func (m *Monitor) Run(ctx context.Context, emit func(Delta)) error {
	select {
	case <-m.wake:
	default:
	}

	for {
		d, err := m.Poll(ctx)
		if errors.Is(err, ErrIdle) {
			return nil
		}
		if err != nil {
			return err
		}
		if d.Discarded {
			continue
		}
		if emit != nil {
			emit(d)
		}
		if d.Stopped {
			return nil
		}

		timer := time.NewTimer(m.Interval())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-m.wake:
			timer.Stop()
		case <-timer.C:
		}
	}
}

func (m *Monitor) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Monitor) sortedLocked() []int {
	pids := m.watch.Slice()
	slices.Sort(pids)
	return pids
}

// State reports whether the monitor is Idle or Monitoring.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Watched returns the watched roots in ascending order.
func (m *Monitor) Watched() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedLocked()
}

// History returns a copy of the snapshots kept for pid, oldest first, or nil
// if pid is not watched.
func (m *Monitor) History(pid int) []usage.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.history[pid]
	if !ok {
		return nil
	}
	return h.items()
}

// Interval is the wait between cycles of the current session.
func (m *Monitor) Interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.interval
}

// Session identifies the current Start. It is empty before the first Start.
func (m *Monitor) Session() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}
