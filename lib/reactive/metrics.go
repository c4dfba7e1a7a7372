package reactive

import (
	"fmt"
	"io"

	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics are the counters of one namespace, shared by all its stores
type storeMetrics struct {
	hydrations      *metrics.Counter
	hydrationDrops  *metrics.Counter
	writes          *metrics.Counter
	suppressed      *metrics.Counter
	repairs         *metrics.Counter
	persisted       *metrics.Counter
	coalesced       *metrics.Counter
	backendFailures *metrics.Counter
}

func newStoreMetrics(ns store.Namespace) *storeMetrics {
	counter := func(name string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`rkv_%s_total{db=%q,store=%q}`, name, ns.DBName, ns.StoreName))
	}
	return &storeMetrics{
		hydrations:      counter("hydrations"),
		hydrationDrops:  counter("hydration_drops"),
		writes:          counter("writes"),
		suppressed:      counter("writes_suppressed"),
		repairs:         counter("repairs"),
		persisted:       counter("persisted"),
		coalesced:       counter("persist_coalesced"),
		backendFailures: counter("backend_failures"),
	}
}

// Stats is a point in time copy of the counters of one namespace
type Stats struct {
	Hydrations      uint64 `json:"hydrations" yaml:"hydrations"`
	HydrationDrops  uint64 `json:"hydration_drops" yaml:"hydration_drops"`
	Writes          uint64 `json:"writes" yaml:"writes"`
	Suppressed      uint64 `json:"writes_suppressed" yaml:"writes_suppressed"`
	Repairs         uint64 `json:"repairs" yaml:"repairs"`
	Persisted       uint64 `json:"persisted" yaml:"persisted"`
	Coalesced       uint64 `json:"persist_coalesced" yaml:"persist_coalesced"`
	BackendFailures uint64 `json:"backend_failures" yaml:"backend_failures"`
}

// NamespaceStats returns the counters accumulated for ns since process start.
// Counters are process wide: stores of every registry contribute.
func NamespaceStats(ns store.Namespace) Stats {
	m := newStoreMetrics(ns)
	return Stats{
		Hydrations:      m.hydrations.Get(),
		HydrationDrops:  m.hydrationDrops.Get(),
		Writes:          m.writes.Get(),
		Suppressed:      m.suppressed.Get(),
		Repairs:         m.repairs.Get(),
		Persisted:       m.persisted.Get(),
		Coalesced:       m.coalesced.Get(),
		BackendFailures: m.backendFailures.Get(),
	}
}

// WritePrometheus writes all counters in Prometheus text format
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
