package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/sqlpulse/internal/pipeline"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (f *fakeRunner) Run(_ context.Context, name string) (pipeline.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if err := f.errs[name]; err != nil {
		return pipeline.Result{Pipeline: name, Status: pipeline.StatusFailure}, err
	}
	return pipeline.Result{Pipeline: name, Status: pipeline.StatusSuccess}, nil
}

func TestRunOnceRunsLoadThenReport(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))))

	require.NoError(t, s.RunOnce(context.Background()))
	require.Equal(t, []string{pipeline.Load, pipeline.Report}, runner.calls)
}

func TestRunOnceCombinesErrors(t *testing.T) {
	loadErr := errors.New("target list unavailable")
	reportErr := errors.New("publish rejected")
	runner := &fakeRunner{errs: map[string]error{
		pipeline.Load:   loadErr,
		pipeline.Report: reportErr,
	}}

	err := New(runner).RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorIs(t, err, loadErr)
	require.ErrorIs(t, err, reportErr)
	require.Len(t, multierr.Errors(err), 2)
	require.Len(t, runner.calls, 2)
}

func TestStartRegistersJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := New(&fakeRunner{}, WithCron(c), WithLoadSchedule("@every 1h"), WithReportSchedule("*/10 * * * *"))

	require.NoError(t, s.Start())
	defer s.Stop()
	require.Len(t, c.Entries(), 2)
}

func TestStartSkipsDisabledJobs(t *testing.T) {
	c := cron.New(cron.WithLogger(cron.DiscardLogger))
	s := New(&fakeRunner{}, WithCron(c), WithLoadSchedule("-"))

	require.NoError(t, s.Start())
	defer s.Stop()
	require.Len(t, c.Entries(), 1)
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	s := New(&fakeRunner{}, WithReportSchedule("every now and then"))
	require.Error(t, s.Start())
}

func TestScheduledRunInvokesRunner(t *testing.T) {
	runner := &fakeRunner{errs: map[string]error{pipeline.Load: errors.New("boom")}}
	s := New(runner)

	s.run(pipeline.Load)
	s.run(pipeline.Report)
	require.Equal(t, []string{pipeline.Load, pipeline.Report}, runner.calls)
}

func TestScheduledRunSkipsBusyPipeline(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	restore := logger.Replace(zap.New(core))
	defer restore()

	runner := &fakeRunner{errs: map[string]error{pipeline.Load: pipeline.ErrPipelineBusy}}
	New(runner).run(pipeline.Load)

	entries := logs.FilterMessage("scheduled run skipped, pipeline already running").All()
	require.Len(t, entries, 1)
	require.Equal(t, pipeline.Load, entries[0].ContextMap()["pipeline"])
}
