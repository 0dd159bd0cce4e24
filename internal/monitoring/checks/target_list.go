package checks

import (
	"context"
	"fmt"
	"time"

	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/internal/monitoring"
)

const defaultTargetListTimeout = 3 * time.Second

// TargetLister resolves the current target list.
type TargetLister interface {
	Resolve(ctx context.Context) ([]models.Target, error)
}

// TargetList returns a readiness probe that fetches and validates the target list.
func TargetList(lister TargetLister, timeout time.Duration) monitoring.Check {
	return monitoring.NewCheck("target_list", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if lister == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDown,
				Details:  "target list not configured",
				Duration: time.Since(start),
			}
		}

		probeCtx, cancel := context.WithTimeout(ctx, chooseTimeout(timeout, defaultTargetListTimeout))
		defer cancel()

		targets, err := lister.Resolve(probeCtx)
		if err != nil {
			return monitoring.ResultFromError("target_list", err, time.Since(start))
		}

		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%d targets", len(targets)),
			Duration: time.Since(start),
		}
	})
}

func chooseTimeout(provided, fallback time.Duration) time.Duration {
	if provided <= 0 {
		return fallback
	}
	return provided
}
