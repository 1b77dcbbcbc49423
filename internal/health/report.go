package health

// HealthStatus is the overall verdict of a report.
type HealthStatus string

const (
	StatusOK       HealthStatus = "ok"
	StatusDegraded HealthStatus = "degraded"
	StatusCritical HealthStatus = "critical"
)

// HealthReport is what GET /health returns.
type HealthReport struct {
	OverallStatus   HealthStatus `json:"overall_status"`
	Summary         string       `json:"summary"`
	Signals         []string     `json:"signals"`
	Recommendations []string     `json:"recommendations"`
}

// escalate keeps the most severe of two statuses.
func escalate(current, next HealthStatus) HealthStatus {
	switch {
	case current == StatusCritical || next == StatusCritical:
		return StatusCritical
	case current == StatusDegraded || next == StatusDegraded:
		return StatusDegraded
	}
	return StatusOK
}
