package metrics

import (
	"sync"
	"sync/atomic"
)

// MetricKey is a strongly typed metric identifier.
type MetricKey string

// Metric keys (centralized).
// Keys ending in _total are monotonic counters; the rest are gauges.
const (
	// Maps
	MapsTotal          MetricKey = "maps_total"
	MapEntries         MetricKey = "map_entries"
	MapPutsTotal       MetricKey = "map_puts_total"
	MapGetsTotal       MetricKey = "map_gets_total"
	MapHitsTotal       MetricKey = "map_hits_total"
	MapMissesTotal     MetricKey = "map_misses_total"
	MapRemovesTotal    MetricKey = "map_removes_total"
	MapReplacesTotal   MetricKey = "map_replaces_total"
	MapReplaceFailures MetricKey = "map_replace_failures_total"

	// Expiration
	ExpiredTotal     MetricKey = "expired_total"
	ExpiredLazyTotal MetricKey = "expired_lazy_total"

	// Reaper
	ReaperRunsTotal          MetricKey = "reaper_runs_total"
	ReaperKeysRemovedTotal   MetricKey = "reaper_keys_removed_total"
	ReaperStaleSkipsTotal    MetricKey = "reaper_stale_skips_total"
	ReaperSaturatedRunsTotal MetricKey = "reaper_saturated_runs_total"

	// HTTP
	HTTPRequestsTotal MetricKey = "http_requests_total"
	HTTPPanicsTotal   MetricKey = "http_panics_total"
)

// Registry stores all metrics.
type Registry struct {
	mu       sync.RWMutex
	counters map[MetricKey]*int64
}

// NewRegistry creates a metrics registry.
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[MetricKey]*int64),
	}
}

// Inc increments a metric by 1.
func (r *Registry) Inc(key MetricKey) {
	r.Add(key, 1)
}

// Add increments a metric by delta.
func (r *Registry) Add(key MetricKey, delta int64) {
	r.mu.RLock()
	ptr, ok := r.counters[key]
	r.mu.RUnlock()

	if ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	// Slow path: metric not yet initialized
	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-check after acquiring write lock
	if ptr, ok = r.counters[key]; ok {
		atomic.AddInt64(ptr, delta)
		return
	}

	var val int64
	r.counters[key] = &val
	atomic.AddInt64(&val, delta)
}

// Get returns the current value of a single metric.
func (r *Registry) Get(key MetricKey) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ptr, ok := r.counters[key]; ok {
		return atomic.LoadInt64(ptr)
	}
	return 0
}
