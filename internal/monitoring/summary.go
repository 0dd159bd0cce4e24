package monitoring

import "time"

// Summary surfaces aggregated pipeline activity for the monitoring endpoint.
type Summary struct {
	GeneratedAt time.Time         `json:"generated_at"`
	Pipelines   []PipelineSummary `json:"pipelines"`
	Targets     TargetSummary     `json:"targets"`
	Publish     PublishSummary    `json:"publish"`
}

type PipelineSummary struct {
	Pipeline            string        `json:"pipeline"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	LastTargets         int           `json:"last_targets"`
	LastFailedTargets   int           `json:"last_failed_targets"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

type TargetSummary struct {
	Success uint64 `json:"success"`
	Failure uint64 `json:"failure"`
}

type PublishSummary struct {
	Success       uint64    `json:"success"`
	Failure       uint64    `json:"failure"`
	Skipped       uint64    `json:"skipped"`
	Samples       uint64    `json:"samples"`
	LastAttemptAt time.Time `json:"last_attempt_at"`
}

// Snapshot returns a point-in-time summary from the current module when configured.
func Snapshot() Summary {
	return ensureModule().Summary()
}
