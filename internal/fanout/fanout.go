// Package fanout runs one unit of work per target concurrently and collects
// every outcome. A failing target never cancels its siblings.
package fanout

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/sqlpulse/internal/models"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
)

// Work is the unit of work performed against a single target.
type Work[T any] func(ctx context.Context, target models.Target) (T, error)

type options struct {
	limit int
}

// Option configures Run.
type Option func(*options)

// WithLimit caps the number of units of work in flight. Zero or a negative
// value means unlimited, which is the default.
func WithLimit(n int) Option {
	return func(o *options) {
		o.limit = n
	}
}

// Run dispatches work for every target and waits for all of them to finish.
// The aggregate holds exactly one outcome per target, in input order.
// A panicking unit of work is recorded as a failed outcome. Units of work keep
// the values of ctx but never observe its cancellation; driver timeouts bound them.
func Run[T any](ctx context.Context, targets []models.Target, work Work[T], opts ...Option) models.Aggregate[T] {
	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	results := make(models.Aggregate[T], len(targets))
	detached := context.WithoutCancel(ctx)

	// A plain Group: no derived context, so failures do not cancel siblings.
	var g errgroup.Group
	if cfg.limit > 0 {
		g.SetLimit(cfg.limit)
	}

	for i, target := range targets {
		g.Go(func() error {
			results[i] = runOne(detached, target, work)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runOne[T any](ctx context.Context, target models.Target, work Work[T]) (outcome models.Outcome[T]) {
	defer func() {
		if r := recover(); r != nil {
			outcome = models.Failed[T](target, apperrors.ErrInternal.
				ForTarget(target.Server, target.Database).
				WithInternal(fmt.Errorf("panic: %v", r)))
		}
	}()

	value, err := work(ctx, target)
	if err != nil {
		return models.Failed[T](target, err)
	}
	return models.Succeeded(target, value)
}
