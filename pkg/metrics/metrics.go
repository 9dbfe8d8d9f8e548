//go:build linux

// Package metrics exposes the latest snapshot of every watched tree as
// Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ja7ad/treeusage/pkg/monitor"
	"github.com/ja7ad/treeusage/pkg/usage"
)

const namespace = "treeusage"

// Exporter turns monitor deltas into metrics on its own registry.
type Exporter struct {
	reg *prometheus.Registry

	userSeconds *prometheus.GaugeVec
	sysSeconds  *prometheus.GaugeVec
	peakRSS     *prometheus.GaugeVec
	faults      *prometheus.GaugeVec
	watched     prometheus.Gauge
	cycles      prometheus.Counter
	evictions   prometheus.Counter

	mu    sync.Mutex
	names map[int]string
}

// New returns an Exporter with every metric registered and no series.
func New() *Exporter {
	labels := []string{"pid", "name"}
	e := &Exporter{
		reg: prometheus.NewRegistry(),
		userSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cpu_user_seconds",
			Help: "User CPU time of the process tree, including reaped children.",
		}, labels),
		sysSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cpu_system_seconds",
			Help: "System CPU time of the process tree, including reaped children.",
		}, labels),
		peakRSS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peak_rss_bytes",
			Help: "Largest peak resident set size of any tree member.",
		}, labels),
		faults: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "page_faults",
			Help: "Cumulative page faults of the process tree.",
		}, append(labels, "kind")),
		watched: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "watched_roots",
			Help: "Number of process trees being monitored.",
		}),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "poll_cycles_total",
			Help: "Applied poll cycles.",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "evictions_total",
			Help: "Roots that stopped being watched because their snapshot failed.",
		}),
		names: map[int]string{},
	}
	e.reg.MustRegister(e.userSeconds, e.sysSeconds, e.peakRSS, e.faults, e.watched, e.cycles, e.evictions)
	return e
}

// Observe applies one poll cycle. Discarded cycles are ignored.
func (e *Exporter) Observe(d monitor.Delta) {
	if d.Discarded {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cycles.Inc()
	for _, s := range d.Snapshots {
		e.set(s)
	}
	for _, ev := range d.Evicted {
		e.forget(ev.PID)
		e.evictions.Inc()
	}
	if d.Stopped {
		e.resetLocked()
	}
	e.watched.Set(float64(len(e.names)))
}

// Reset drops every per-tree series, e.g. after monitoring was stopped.
func (e *Exporter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetLocked()
	e.watched.Set(0)
}

func (e *Exporter) resetLocked() {
	for pid := range e.names {
		e.forget(pid)
	}
}

func (e *Exporter) set(s usage.Snapshot) {
	if old, ok := e.names[s.PID]; ok && old != s.Name {
		e.forget(s.PID)
	}
	e.names[s.PID] = s.Name

	pid := strconv.Itoa(s.PID)
	e.userSeconds.WithLabelValues(pid, s.Name).Set(s.UserTime)
	e.sysSeconds.WithLabelValues(pid, s.Name).Set(s.SysTime)
	e.peakRSS.WithLabelValues(pid, s.Name).Set(float64(s.MaxRSSKB) * 1024)
	e.faults.WithLabelValues(pid, s.Name, "minor").Set(float64(s.MinorFaults))
	e.faults.WithLabelValues(pid, s.Name, "major").Set(float64(s.MajorFaults))
}

func (e *Exporter) forget(pid int) {
	l := prometheus.Labels{"pid": strconv.Itoa(pid)}
	e.userSeconds.DeletePartialMatch(l)
	e.sysSeconds.DeletePartialMatch(l)
	e.peakRSS.DeletePartialMatch(l)
	e.faults.DeletePartialMatch(l)
	delete(e.names, pid)
}

// Handler serves the exporter's registry in the Prometheus text format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()

	log.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
