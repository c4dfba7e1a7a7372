package lstore

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// TimerStats is a serializable summary of a latency timer
type TimerStats struct {
	Count  int64   `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P99Ms  float64 `json:"p99_ms"`
	MaxMs  float64 `json:"max_ms"`
}

// NewTimerStats takes a snapshot of t
func NewTimerStats(t metrics.Timer) TimerStats {
	snap := t.Snapshot()
	ps := snap.Percentiles([]float64{0.5, 0.99})
	ms := float64(time.Millisecond)

	return TimerStats{
		Count:  snap.Count(),
		MeanMs: snap.Mean() / ms,
		P50Ms:  ps[0] / ms,
		P99Ms:  ps[1] / ms,
		MaxMs:  float64(snap.Max()) / ms,
	}
}
