package models

import "time"

// SystemMetrics is a lightweight summary of the service instrumentation.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	BackendCalls             uint64    `json:"backend_calls"`
	BackendErrors            uint64    `json:"backend_errors"`
	AverageBackendDurationMs float64   `json:"average_backend_duration_ms"`
	WizardsOpened            uint64    `json:"wizards_opened"`
	Commits                  uint64    `json:"commits"`
	AutoSelections           uint64    `json:"auto_selections"`
	ManualSelections         uint64    `json:"manual_selections"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
