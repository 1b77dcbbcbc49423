package ttl

import (
	"context"
	"iter"
	"time"

	"expiring-kv/internal/clock"
	"expiring-kv/internal/config"
	"expiring-kv/internal/logs"
	"expiring-kv/internal/metrics"
)

// Target is the minimal contract the reaper needs from a store.
// This keeps the reaper decoupled from the concrete store implementation.
type Target interface {
	Name() string
	DueBefore(now int64) iter.Seq[string]
	ExpireIfDue(key string, now int64) bool
}

// Reaper periodically removes expired keys that no foreground request has
// touched. It never decides expiration itself: it only asks targets for
// keys that are due and lets them re-check each one.
type Reaper struct {
	targets   func() []Target
	interval  time.Duration
	batchSize int
	clock     clock.Clock
	logger    *logs.Logger
	metrics   *metrics.Registry

	// rotates the first target of a cycle; only the loop goroutine uses it
	offset int
}

// Stats describes one reaper cycle.
type Stats struct {
	Removed   int
	Stale     int
	Saturated bool
}

// NewReaper creates a new instance of Reaper
func NewReaper(
	targets func() []Target,
	cfg config.ReaperConfig,
	clk clock.Clock,
	logger *logs.Logger,
	metricsRegistry *metrics.Registry,
) *Reaper {
	return &Reaper{
		targets:   targets,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		clock:     clk,
		logger:    logger.With("reaper"),
		metrics:   metricsRegistry,
	}
}

// Start runs the reaper loop until the context is cancelled.
// It blocks and should typically be run in a separate goroutine.
func (r *Reaper) Start(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Debug("reaper started", "interval", r.interval.String(), "batch_size", r.batchSize)

	for {
		select {
		case <-ticker.C:
			r.runOnce(ctx)
		case <-ctx.Done():
			r.logger.Debug("reaper stopped")
			return
		}
	}
}

// runOnce performs a single cycle of at most batchSize key checks.
// Cancellation is honoured between keys, never in the middle of one.
func (r *Reaper) runOnce(ctx context.Context) Stats {
	var stats Stats

	now := r.clock.NowMillis()
	targets := r.targets()
	budget := r.batchSize

	for i := range targets {
		if stats.Saturated || ctx.Err() != nil {
			break
		}
		target := targets[(r.offset+i)%len(targets)]

		if budget == 0 {
			// budget ran out on an earlier target; only look for leftovers
			stats.Saturated = hasDue(target, now)
			continue
		}

		removed := 0
		for key := range target.DueBefore(now) {
			if ctx.Err() != nil {
				break
			}
			if budget == 0 {
				stats.Saturated = true
				break
			}
			budget--

			if target.ExpireIfDue(key, now) {
				removed++
			} else {
				// a concurrent write moved the deadline, or the key is gone
				stats.Stale++
			}
		}

		if removed > 0 {
			r.logger.Debug("expired keys removed", "map", target.Name(), "removed", removed)
		}
		stats.Removed += removed
	}
	r.offset++

	r.metrics.Inc(metrics.ReaperRunsTotal)
	r.metrics.Add(metrics.ReaperKeysRemovedTotal, int64(stats.Removed))
	r.metrics.Add(metrics.ReaperStaleSkipsTotal, int64(stats.Stale))
	if stats.Saturated {
		r.metrics.Inc(metrics.ReaperSaturatedRunsTotal)
		r.logger.Warn("reaper batch exhausted, backlog carried to next cycle", "batch_size", r.batchSize)
	}
	if stats.Removed > 0 {
		r.logger.Info("reaper removed expired keys", "removed", stats.Removed, "stale", stats.Stale)
	}

	return stats
}

// hasDue reports whether target has at least one key due at now.
func hasDue(target Target, now int64) bool {
	for range target.DueBefore(now) {
		return true
	}
	return false
}
