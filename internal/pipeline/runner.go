package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/fanout"
	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/internal/monitoring"
	"github.com/charlesng35/sqlpulse/internal/publisher"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

// Pipeline names.
const (
	Load   = "load"
	Report = "report"
)

var (
	// ErrUnknownPipeline is returned by Run for names other than Load and Report.
	ErrUnknownPipeline = errors.New("pipeline: unknown pipeline")
	// ErrPipelineBusy is returned when an invocation of the same pipeline is still running.
	ErrPipelineBusy = errors.New("pipeline: already running")
)

// Status is the overall outcome of one invocation.
type Status string

const (
	StatusSuccess Status = "success"
	// StatusPartial means the invocation completed but some targets failed.
	StatusPartial Status = "partial"
	StatusFailure Status = "failure"
)

// TargetFailure describes one failed target in a Result.
type TargetFailure struct {
	Server   string `json:"server"`
	Database string `json:"database"`
	Code     string `json:"code"`
	Error    string `json:"error"`
}

// Result summarises one invocation of a pipeline.
type Result struct {
	RunID     string            `json:"run_id"`
	Pipeline  string            `json:"pipeline"`
	Status    Status            `json:"status"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Targets   int               `json:"targets"`
	Failed    int               `json:"failed"`
	Failures  []TargetFailure   `json:"failures,omitempty"`
	Publish   *publisher.Result `json:"publish,omitempty"`
	Error     string            `json:"error,omitempty"`

	fatal  error
	target error
}

// Err combines the fatal error, if any, with every per-target error.
func (r Result) Err() error {
	return multierr.Append(r.fatal, r.target)
}

// Runner executes complete load and report invocations.
type Runner struct {
	targets   TargetResolver
	seeder    *Seeder
	sampler   *Sampler
	publisher *publisher.Publisher
	limit     int
	log       *zap.Logger

	mu         sync.Mutex
	running    map[string]bool
	background sync.WaitGroup
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithMaxConcurrency caps the number of targets processed at once; zero means unlimited.
func WithMaxConcurrency(n int) RunnerOption {
	return func(r *Runner) {
		r.limit = n
	}
}

// NewRunner constructs a Runner.
func NewRunner(targets TargetResolver, seeder *Seeder, sampler *Sampler, pub *publisher.Publisher, opts ...RunnerOption) *Runner {
	r := &Runner{
		targets:   targets,
		seeder:    seeder,
		sampler:   sampler,
		publisher: pub,
		log:       logger.WithModule("pipeline"),
		running:   make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the named pipeline. At most one invocation of each pipeline
// runs at a time; an overlapping call fails with ErrPipelineBusy.
func (r *Runner) Run(ctx context.Context, name string) (Result, error) {
	run, err := r.lookup(name)
	if err != nil {
		return Result{}, err
	}
	if err := r.acquire(name); err != nil {
		return Result{Pipeline: name}, err
	}
	defer r.release(name)
	return run(ctx)
}

// Start launches the named pipeline in the background and returns once it
// holds the pipeline. The run ignores the cancellation of ctx; Wait joins it.
func (r *Runner) Start(ctx context.Context, name string) error {
	run, err := r.lookup(name)
	if err != nil {
		return err
	}
	if err := r.acquire(name); err != nil {
		return err
	}

	r.background.Add(1)
	go func() {
		defer r.background.Done()
		defer r.release(name)
		// finish logs and records the outcome.
		_, _ = run(context.WithoutCancel(ctx))
	}()
	return nil
}

// Wait blocks until every background run started with Start has finished or
// ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.background.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) lookup(name string) (func(context.Context) (Result, error), error) {
	switch name {
	case Load:
		return r.load, nil
	case Report:
		return r.report, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownPipeline, name)
}

func (r *Runner) acquire(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return fmt.Errorf("%w: %s", ErrPipelineBusy, name)
	}
	r.running[name] = true
	return nil
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}

// Load seeds one row into every target. See load.
func (r *Runner) Load(ctx context.Context) (Result, error) {
	return r.Run(ctx, Load)
}

// Report samples and publishes every target. See report.
func (r *Runner) Report(ctx context.Context) (Result, error) {
	return r.Run(ctx, Report)
}

// load seeds one row into every target. The returned error is non-nil only
// when the invocation could not run at all; per-target failures are reported
// in the Result.
func (r *Runner) load(ctx context.Context) (Result, error) {
	result, log := r.begin(Load)

	targets, err := r.targets.Resolve(ctx)
	if err != nil {
		return r.finish(log, result, err), err
	}
	result.Targets = len(targets)
	log.Info("starting run", zap.Int("targets", len(targets)))

	aggregate := fanout.Run(ctx, targets, timed[struct{}](Load, func(ctx context.Context, target models.Target) (struct{}, error) {
		return struct{}{}, r.seeder.Seed(ctx, target)
	}), fanout.WithLimit(r.limit))

	result = collect(log, result, aggregate)
	return r.finish(log, result, nil), nil
}

// report samples every target and publishes the successful samples as one
// batch. A publish failure fails the invocation but does not alter the
// per-target outcomes.
func (r *Runner) report(ctx context.Context) (Result, error) {
	result, log := r.begin(Report)

	targets, err := r.targets.Resolve(ctx)
	if err != nil {
		return r.finish(log, result, err), err
	}
	result.Targets = len(targets)
	log.Info("starting run", zap.Int("targets", len(targets)))

	aggregate := fanout.Run(ctx, targets, timed[[]models.MetricSample](Report, r.sampler.Sample), fanout.WithLimit(r.limit))
	result = collect(log, result, aggregate)

	published, err := r.publisher.Publish(ctx, aggregate)
	result.Publish = &published
	if err != nil {
		return r.finish(log, result, err), err
	}
	return r.finish(log, result, nil), nil
}

func (r *Runner) begin(pipeline string) (Result, *zap.Logger) {
	result := Result{
		RunID:     uuid.NewString(),
		Pipeline:  pipeline,
		StartedAt: time.Now(),
	}
	log := r.log.With(zap.String("pipeline", pipeline), zap.String("run_id", result.RunID))
	return result, log
}

// timed records the duration and outcome of each unit of work.
func timed[T any](pipeline string, work fanout.Work[T]) fanout.Work[T] {
	return func(ctx context.Context, target models.Target) (T, error) {
		start := time.Now()
		value, err := work(ctx, target)
		monitoring.RecordTargetOutcome(pipeline, err == nil, apperrors.CodeOf(err), time.Since(start))
		return value, err
	}
}

func collect[T any](log *zap.Logger, result Result, aggregate models.Aggregate[T]) Result {
	for _, outcome := range aggregate {
		if outcome.OK() {
			continue
		}
		code := apperrors.CodeOf(outcome.Err)
		log.Warn("target failed",
			zap.String("server", outcome.Target.Server),
			zap.String("database", outcome.Target.Database),
			zap.String("code", code),
			zap.Error(outcome.Err),
		)
		result.Failures = append(result.Failures, TargetFailure{
			Server:   outcome.Target.Server,
			Database: outcome.Target.Database,
			Code:     code,
			Error:    outcome.Err.Error(),
		})
	}
	result.Failed = aggregate.Failures()
	result.target = multierr.Combine(aggregate.Errors()...)
	return result
}

func (r *Runner) finish(log *zap.Logger, result Result, fatal error) Result {
	result.Duration = time.Since(result.StartedAt)
	result.fatal = fatal

	switch {
	case fatal != nil:
		result.Status = StatusFailure
		result.Error = fatal.Error()
	case result.Targets > 0 && result.Failed == result.Targets:
		result.Status = StatusFailure
	case result.Failed > 0:
		result.Status = StatusPartial
	default:
		result.Status = StatusSuccess
	}

	message := result.Error
	if message == "" && result.Failed > 0 {
		message = fmt.Sprintf("%d of %d targets failed", result.Failed, result.Targets)
	}
	monitoring.RecordPipelineRun(result.Pipeline, string(result.Status), message, result.Targets, result.Failed, result.Duration)

	fields := []zap.Field{
		zap.String("status", string(result.Status)),
		zap.Int("targets", result.Targets),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	}
	if fatal != nil {
		log.Error("run failed", append(fields, zap.Error(fatal))...)
	} else {
		log.Info("run finished", fields...)
	}
	return result
}
