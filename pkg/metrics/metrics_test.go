//go:build linux

package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/treeusage/pkg/monitor"
	"github.com/ja7ad/treeusage/pkg/usage"
)

func snap(pid int, name string) usage.Snapshot {
	return usage.Snapshot{PID: pid, Name: name, UserTime: 1.5, SysTime: 0.5, MaxRSSKB: 2, MinorFaults: 10, MajorFaults: 1}
}

func TestObserve(t *testing.T) {
	e := New()
	e.Observe(monitor.Delta{Cycle: 1, Snapshots: []usage.Snapshot{snap(100, "web"), snap(200, "db")}})

	assert.InDelta(t, 1.5, testutil.ToFloat64(e.userSeconds.WithLabelValues("100", "web")), 1e-9)
	assert.InDelta(t, 0.5, testutil.ToFloat64(e.sysSeconds.WithLabelValues("200", "db")), 1e-9)
	assert.InDelta(t, 2048, testutil.ToFloat64(e.peakRSS.WithLabelValues("100", "web")), 1e-9)
	assert.InDelta(t, 10, testutil.ToFloat64(e.faults.WithLabelValues("100", "web", "minor")), 1e-9)
	assert.InDelta(t, 2, testutil.ToFloat64(e.watched), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(e.cycles), 1e-9)

	e.Observe(monitor.Delta{
		Cycle:     2,
		Snapshots: []usage.Snapshot{snap(100, "web")},
		Evicted:   []monitor.Eviction{{PID: 200, Err: errors.New("gone")}},
	})
	assert.Equal(t, 1, testutil.CollectAndCount(e.userSeconds))
	assert.Equal(t, 2, testutil.CollectAndCount(e.faults))
	assert.InDelta(t, 1, testutil.ToFloat64(e.watched), 1e-9)
	assert.InDelta(t, 1, testutil.ToFloat64(e.evictions), 1e-9)
}

func TestObserve_RenameDropsOldSeries(t *testing.T) {
	e := New()
	e.Observe(monitor.Delta{Snapshots: []usage.Snapshot{snap(100, "sh")}})
	e.Observe(monitor.Delta{Snapshots: []usage.Snapshot{snap(100, "python3")}})
	assert.Equal(t, 1, testutil.CollectAndCount(e.userSeconds))
}

func TestObserve_StoppedAndDiscarded(t *testing.T) {
	e := New()
	e.Observe(monitor.Delta{Snapshots: []usage.Snapshot{snap(1, "a")}})
	e.Observe(monitor.Delta{Discarded: true, Evicted: []monitor.Eviction{{PID: 1}}})
	assert.Equal(t, 1, testutil.CollectAndCount(e.userSeconds), "discarded cycles change nothing")

	e.Observe(monitor.Delta{Stopped: true, Evicted: []monitor.Eviction{{PID: 1}}})
	assert.Equal(t, 0, testutil.CollectAndCount(e.userSeconds))
	assert.InDelta(t, 0, testutil.ToFloat64(e.watched), 1e-9)

	e.Observe(monitor.Delta{Snapshots: []usage.Snapshot{snap(2, "b")}})
	e.Reset()
	assert.Equal(t, 0, testutil.CollectAndCount(e.peakRSS))
}

func TestHandler(t *testing.T) {
	e := New()
	e.Observe(monitor.Delta{Snapshots: []usage.Snapshot{snap(100, "web")}})

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `treeusage_cpu_user_seconds{name="web",pid="100"} 1.5`), text)
	assert.Contains(t, text, `treeusage_page_faults{kind="major",name="web",pid="100"} 1`)
	assert.Contains(t, text, "treeusage_watched_roots 1")
}
