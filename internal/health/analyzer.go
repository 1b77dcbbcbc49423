package health

import (
	"strings"

	"github.com/samber/lo"

	"expiring-kv/internal/logs"
	"expiring-kv/internal/metrics"
)

// Analyzer converts metrics + logs into a health report.
type Analyzer struct {
	metrics *metrics.Registry
	logger  *logs.Logger
	rules   []Rule
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(
	reg *metrics.Registry,
	logger *logs.Logger,
) *Analyzer {
	return &Analyzer{
		metrics: reg,
		logger:  logger,
		rules: []Rule{
			ReaperSaturationRule,
			ReaperStalledRule,
			LazyExpirationRule,
			PanicRule,
		},
	}
}

// Analyze evaluates metrics and logs and returns a health report.
func (a *Analyzer) Analyze() HealthReport {
	snapshot := a.metrics.Snapshot()

	var (
		signals         = []string{}
		recommendations = []string{}
		status          = StatusOK
	)

	/* ---------- METRICS-BASED RULES ---------- */

	for _, rule := range a.rules {
		result := rule(snapshot)
		if !result.Triggered {
			continue
		}

		signals = append(signals, result.Signal)
		recommendations = append(recommendations, result.Recommendation)
		status = escalate(status, result.Severity)
	}

	/* ---------- LOG-BASED SIGNALS ---------- */

	logEntries := a.logger.GetLast(100)

	backlogWarnings := lo.CountBy(logEntries, func(e logs.Entry) bool {
		return e.Level == logs.WARN && strings.Contains(e.Message, "backlog")
	})
	errorCount := lo.CountBy(logEntries, func(e logs.Entry) bool {
		return e.Level == logs.ERROR
	})

	if backlogWarnings >= 3 {
		signals = append(signals,
			"Repeated reaper backlog warnings in logs",
		)
		recommendations = append(recommendations,
			"Expired entries accumulate faster than the reaper drains them",
		)
		status = escalate(status, StatusDegraded)
	}

	if errorCount > 0 {
		signals = append(signals,
			"Errors detected in recent logs",
		)
		recommendations = append(recommendations,
			"Inspect /admin/logs for details",
		)
		status = escalate(status, StatusDegraded)
	}

	/* ---------- SUMMARY ---------- */

	summary := "System is healthy"
	if status != StatusOK {
		summary = "System health issues detected"
	}

	return HealthReport{
		OverallStatus:   status,
		Summary:         summary,
		Signals:         signals,
		Recommendations: recommendations,
	}
}
