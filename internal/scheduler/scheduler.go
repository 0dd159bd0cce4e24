package scheduler

import (
	"context"
	"errors"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/pipeline"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

const (
	defaultLoadSpec   = "@every 5m"
	defaultReportSpec = "@every 5m"
)

// Runner executes one named pipeline invocation.
type Runner interface {
	Run(ctx context.Context, name string) (pipeline.Result, error)
}

// Scheduler triggers the load and report pipelines on cron schedules.
type Scheduler struct {
	runner Runner
	cron   *cron.Cron
	log    *zap.Logger

	loadSchedule   string
	reportSchedule string
}

// Option customises the Scheduler.
type Option func(*Scheduler)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.cron = c
		}
	}
}

// WithLoadSchedule overrides the cron specification of the load pipeline.
// "-" disables the job.
func WithLoadSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.loadSchedule = spec
		}
	}
}

// WithReportSchedule overrides the cron specification of the report pipeline.
// "-" disables the job.
func WithReportSchedule(spec string) Option {
	return func(s *Scheduler) {
		if spec != "" {
			s.reportSchedule = spec
		}
	}
}

// New constructs a Scheduler driving runner.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:         runner,
		loadSchedule:   defaultLoadSpec,
		reportSchedule: defaultReportSpec,
		log:            logger.WithModule("scheduler"),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.cron == nil {
		s.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return s
}

// Start registers the pipeline jobs and launches the cron scheduler.
func (s *Scheduler) Start() error {
	if s.runner == nil {
		return nil
	}

	jobs := []struct {
		name string
		spec string
	}{
		{pipeline.Load, s.loadSchedule},
		{pipeline.Report, s.reportSchedule},
	}

	for _, job := range jobs {
		if job.spec == "-" {
			s.log.Info("job disabled", zap.String("pipeline", job.name))
			continue
		}
		name := job.name
		if _, err := s.cron.AddFunc(job.spec, func() {
			s.run(name)
		}); err != nil {
			return err
		}
		s.log.Info("job scheduled", zap.String("pipeline", name), zap.String("spec", job.spec))
	}

	s.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (s *Scheduler) Stop() context.Context {
	if s.cron == nil {
		return context.Background()
	}
	return s.cron.Stop()
}

// RunOnce executes load and then report. Fatal and per-target errors of both
// invocations are combined.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, name := range []string{pipeline.Load, pipeline.Report} {
		result, err := s.runner.Run(ctx, name)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		errs = multierr.Append(errs, result.Err())
	}
	return errs
}

func (s *Scheduler) run(name string) {
	// The runner logs and records the outcome itself.
	_, err := s.runner.Run(context.Background(), name)
	switch {
	case errors.Is(err, pipeline.ErrPipelineBusy):
		s.log.Warn("scheduled run skipped, pipeline already running", zap.String("pipeline", name))
	case err != nil:
		s.log.Warn("scheduled run failed", zap.String("pipeline", name), zap.Error(err))
	}
}
