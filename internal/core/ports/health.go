package ports

import "context"

// HealthChecker probes one backing dependency for GET /health.
type HealthChecker interface {
	Name() string
	Ping(ctx context.Context) error
}

// DependencyHealth is one checker's entry in the health report.
type DependencyHealth struct {
	Up        bool   `json:"up"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}
