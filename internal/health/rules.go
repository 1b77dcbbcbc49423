package health

import "expiring-kv/internal/metrics"

// RuleResult represents the outcome of a single rule.
type RuleResult struct {
	Triggered      bool
	Signal         string
	Recommendation string
	Severity       HealthStatus
}

// Rule evaluates a metrics snapshot.
type Rule func(snapshot map[string]int64) RuleResult

// ---------- RULES ----------

// A saturated reaper is carrying a backlog of expired entries.
func ReaperSaturationRule(snapshot map[string]int64) RuleResult {
	saturated := snapshot[string(metrics.ReaperSaturatedRunsTotal)]

	if saturated > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Reaper batch limit reached",
			Recommendation: "Raise reaper.batch_size or shorten reaper.interval",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Expired entries found by reads while the reaper has never run means the
// background sweep is not working.
func ReaperStalledRule(snapshot map[string]int64) RuleResult {
	lazy := snapshot[string(metrics.ExpiredLazyTotal)]
	runs := snapshot[string(metrics.ReaperRunsTotal)]

	if lazy > 0 && runs == 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Expired entries found by reads but the reaper has not run",
			Recommendation: "Check that the reaper goroutine is started",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}

// Mostly-lazy expiration means expired records linger until someone reads them.
func LazyExpirationRule(snapshot map[string]int64) RuleResult {
	lazy := snapshot[string(metrics.ExpiredLazyTotal)]
	reaped := snapshot[string(metrics.ReaperKeysRemovedTotal)]

	if lazy >= 100 && lazy > 10*reaped {
		return RuleResult{
			Triggered:      true,
			Signal:         "Most expirations are detected lazily by reads",
			Recommendation: "Shorten reaper.interval to bound memory held by expired entries",
			Severity:       StatusDegraded,
		}
	}
	return RuleResult{}
}

// Panics recovered by the HTTP layer.
func PanicRule(snapshot map[string]int64) RuleResult {
	if snapshot[string(metrics.HTTPPanicsTotal)] > 0 {
		return RuleResult{
			Triggered:      true,
			Signal:         "Request handlers panicked",
			Recommendation: "Inspect /admin/logs for the recovered panic values",
			Severity:       StatusCritical,
		}
	}
	return RuleResult{}
}
