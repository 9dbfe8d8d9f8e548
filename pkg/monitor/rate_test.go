//go:build linux

package monitor

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ja7ad/treeusage/pkg/usage"
)

func snapAt(sec float64, user, sys float64, minor, major uint64) usage.Snapshot {
	return usage.Snapshot{
		UserTime:    user,
		SysTime:     sys,
		MinorFaults: minor,
		MajorFaults: major,
		At:          time.Unix(0, 0).Add(time.Duration(sec * float64(time.Second))),
	}
}

func TestRateBetween(t *testing.T) {
	r := RateBetween(snapAt(0, 1, 1, 100, 0), snapAt(2, 2.5, 1.5, 300, 4))
	assert.InDelta(t, 1.0, r.CPU, 1e-9, "2s of cpu over 2s wall")
	assert.InDelta(t, 100.0, r.MinorPerSec, 1e-9)
	assert.InDelta(t, 2.0, r.MajorPerSec, 1e-9)
	assert.True(t, r.At.Equal(time.Unix(2, 0)))
}

func TestRateBetween_CountersWentBackwards(t *testing.T) {
	r := RateBetween(snapAt(0, 5, 5, 100, 10), snapAt(1, 3, 1, 50, 2))
	assert.Zero(t, r.CPU)
	assert.Zero(t, r.MinorPerSec)
	assert.Zero(t, r.MajorPerSec)
}

func TestRateBetween_SameInstant(t *testing.T) {
	r := RateBetween(snapAt(1, 0, 0, 0, 0), snapAt(1, 1, 0, 1, 0))
	assert.Zero(t, r.CPU)
	assert.False(t, math.IsInf(r.MinorPerSec, 0))
}

func TestRates(t *testing.T) {
	assert.Nil(t, Rates(nil, 0.5))
	assert.Nil(t, Rates([]usage.Snapshot{snapAt(0, 0, 0, 0, 0)}, 0.5))

	h := []usage.Snapshot{
		snapAt(0, 0, 0, 0, 0),
		snapAt(1, 1, 0, 0, 0), // 1.0 cores
		snapAt(2, 1, 0, 0, 0), // 0.0
		snapAt(3, 3, 0, 0, 0), // 2.0
	}

	raw := Rates(h, 1)
	require.Len(t, raw, 3)
	assert.InDelta(t, 1.0, raw[0].CPU, 1e-9)
	assert.InDelta(t, 0.0, raw[1].CPU, 1e-9)
	assert.InDelta(t, 2.0, raw[2].CPU, 1e-9)

	smooth := Rates(h, 0.5)
	require.Len(t, smooth, 3)
	assert.InDelta(t, 1.0, smooth[0].CPU, 1e-9)  // first sample passes through
	assert.InDelta(t, 0.5, smooth[1].CPU, 1e-9)  // 0.5*0 + 0.5*1
	assert.InDelta(t, 1.25, smooth[2].CPU, 1e-9) // 0.5*2 + 0.5*0.5
}

func TestEMA_AlphaZero_HoldsInitialValue(t *testing.T) {
	e := newEMA(0)
	assert.Equal(t, 10.0, e.next(10))
	assert.Equal(t, 10.0, e.next(20))
}

func TestEMA_ClosedFormMatch(t *testing.T) {
	alpha, target, steps := 0.3, 100.0, 50
	e := newEMA(alpha)
	_ = e.next(0)
	var out float64
	for i := 0; i < steps; i++ {
		out = e.next(target)
	}
	want := target * (1 - math.Pow(1-alpha, float64(steps)))
	assert.InDelta(t, want, out, 1e-6)
}

func TestRing(t *testing.T) {
	r := newRing(3)
	assert.Empty(t, r.items())
	for i := 1; i <= 5; i++ {
		r.push(usage.Snapshot{PID: i})
	}
	assert.Equal(t, 3, r.len())
	got := r.items()
	require.Len(t, got, 3)
	assert.Equal(t, []int{3, 4, 5}, []int{got[0].PID, got[1].PID, got[2].PID})

	got[0].PID = 99
	assert.Equal(t, 3, r.items()[0].PID, "items returns a copy")
}
