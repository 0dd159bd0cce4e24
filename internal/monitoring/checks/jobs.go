package checks

import (
	"context"
	"strings"
	"time"

	"github.com/charlesng35/sqlpulse/internal/monitoring"
)

const defaultJobsMaxAge = 30 * time.Minute

// Jobs verifies that scheduled pipelines run, and do not fail outright,
// within the expected interval. When maxAge is zero a 30 minute window is used.
// Partial runs are reported as degraded.
func Jobs(maxAge time.Duration) monitoring.Check {
	if maxAge <= 0 {
		maxAge = defaultJobsMaxAge
	}

	return monitoring.NewCheck("jobs", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		summary := monitoring.Snapshot()
		now := time.Now()

		if len(summary.Pipelines) == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "no pipeline runs recorded",
				Duration: time.Since(start),
			}
		}

		status := monitoring.StatusUp
		var failures []string

		for _, job := range summary.Pipelines {
			if job.TotalRuns == 0 {
				failures = append(failures, job.Pipeline+": pending first run")
				continue
			}

			if job.ConsecutiveFailures > 0 {
				status = worstStatus(status, monitoring.StatusDown)
				failures = append(failures, job.Pipeline+": consecutive failures")
			} else if job.LastStatus == "partial" {
				status = worstStatus(status, monitoring.StatusDegraded)
				failures = append(failures, job.Pipeline+": some targets failed")
			}

			if !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > maxAge {
				status = worstStatus(status, monitoring.StatusDegraded)
				failures = append(failures, job.Pipeline+": stale run "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(failures, "; "),
			Duration: time.Since(start),
		}
	})
}

func worstStatus(current, candidate monitoring.ProbeStatus) monitoring.ProbeStatus {
	if current == monitoring.StatusDown || candidate == monitoring.StatusDown {
		return monitoring.StatusDown
	}
	if current == monitoring.StatusDegraded || candidate == monitoring.StatusDegraded {
		return monitoring.StatusDegraded
	}
	return monitoring.StatusUp
}
