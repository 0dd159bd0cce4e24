package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/amazon"
	"github.com/charlesng35/sqlpulse/internal/api"
	"github.com/charlesng35/sqlpulse/internal/app"
	"github.com/charlesng35/sqlpulse/internal/credentials"
	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/monitoring"
	"github.com/charlesng35/sqlpulse/internal/monitoring/checks"
	"github.com/charlesng35/sqlpulse/internal/pipeline"
	"github.com/charlesng35/sqlpulse/internal/publisher"
	"github.com/charlesng35/sqlpulse/internal/scheduler"
	"github.com/charlesng35/sqlpulse/internal/targets"
)

// runtimeStack bundles the long-lived components shared by every command.
type runtimeStack struct {
	Monitoring *monitoring.Module
	Targets    *targets.Resolver
	Runner     *pipeline.Runner
	Scheduler  *scheduler.Scheduler
	Router     *gin.Engine

	closers []io.Closer
}

// bootstrapRuntime wires stores, sinks and the pipeline runner. The scheduler
// and the HTTP router are only built when withServer is set.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger, withServer bool) (*runtimeStack, error) {
	stack := &runtimeStack{}
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	var err error
	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	aws := &awsClients{cfg: amazon.Config{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint}}

	parameterStore, err := buildParameterStore(ctx, cfg, aws)
	if err != nil {
		return nil, err
	}
	stack.Targets = targets.NewResolver(parameterStore,
		targets.WithParameterName(cfg.Targets.ParameterName),
		targets.WithDefaultEngine(cfg.Database.Engine),
	)

	secretStore, err := buildSecretStore(ctx, cfg, aws)
	if err != nil {
		return nil, err
	}
	creds := credentials.NewResolver(secretStore)

	sink, err := stack.buildSink(ctx, cfg, aws)
	if err != nil {
		return nil, err
	}
	log.Info("metric sink selected", zap.String("sink", sink.Name()), zap.String("namespace", cfg.Metrics.Namespace))

	connector := database.NewConnector(cfg.Database.QueryTimeout)
	pipelineCfg := pipeline.Config{
		Table:                  cfg.Database.Table,
		MetricName:             cfg.Pipeline.MetricName,
		ConnectTimeout:         cfg.Database.ConnectTimeout,
		Encrypt:                cfg.Database.Encrypt,
		TrustServerCertificate: cfg.Database.TrustServerCertificate,
		Options:                cfg.Database.Options,
	}

	stack.Runner = pipeline.NewRunner(
		stack.Targets,
		pipeline.NewSeeder(creds, connector, pipelineCfg),
		pipeline.NewSampler(creds, connector, pipelineCfg),
		publisher.New(sink, cfg.Metrics.Namespace),
		pipeline.WithMaxConcurrency(cfg.Pipeline.MaxConcurrency),
	)

	if !withServer {
		success = true
		return stack, nil
	}

	health := stack.Monitoring.Health()
	health.RegisterReadiness(checks.TargetList(stack.Targets, 0))
	if cfg.Schedule.Enabled {
		health.RegisterReadiness(checks.Jobs(cfg.Monitoring.Health.MaxRunAge))

		stack.Scheduler = scheduler.New(stack.Runner,
			scheduler.WithLoadSchedule(cfg.Schedule.Load),
			scheduler.WithReportSchedule(cfg.Schedule.Report),
		)
		if err := stack.Scheduler.Start(); err != nil {
			return nil, fmt.Errorf("start scheduler: %w", err)
		}
	}

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.Router, err = api.NewRouter(cfg, stack.Monitoring, stack.Runner)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// Shutdown stops the scheduler, waits for running jobs and background runs,
// then releases sinks.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Scheduler != nil {
		select {
		case <-s.Scheduler.Stop().Done():
		case <-ctx.Done():
			log.Warn("scheduler did not stop before deadline")
		}
	}

	if s.Runner != nil {
		if err := s.Runner.Wait(ctx); err != nil {
			log.Warn("background runs did not finish before deadline", zap.Error(err))
		}
	}

	for _, closer := range s.closers {
		if err := closer.Close(); err != nil {
			log.Warn("close resource", zap.Error(err))
		}
	}
}

// awsClients loads the SDK configuration on first use so file-only setups
// never touch the credential chain.
type awsClients struct {
	cfg     amazon.Config
	clients *amazon.Clients
}

func (a *awsClients) get(ctx context.Context) (*amazon.Clients, error) {
	if a.clients != nil {
		return a.clients, nil
	}
	clients, err := amazon.Load(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	a.clients = clients
	return clients, nil
}

func buildParameterStore(ctx context.Context, cfg *app.Config, aws *awsClients) (targets.ParameterStore, error) {
	switch cfg.Targets.Source {
	case app.SourceFile:
		return targets.FileStore{Path: cfg.Targets.File}, nil
	case app.SourceSSM:
		clients, err := aws.get(ctx)
		if err != nil {
			return nil, err
		}
		return amazon.NewParameterStore(clients), nil
	}
	return nil, fmt.Errorf("unsupported targets source %q", cfg.Targets.Source)
}

func buildSecretStore(ctx context.Context, cfg *app.Config, aws *awsClients) (credentials.SecretStore, error) {
	switch cfg.Secrets.Source {
	case app.SourceFile:
		return credentials.FileStore{Path: cfg.Secrets.File}, nil
	case app.SourceSecretsManager:
		clients, err := aws.get(ctx)
		if err != nil {
			return nil, err
		}
		return amazon.NewSecretStore(clients), nil
	}
	return nil, fmt.Errorf("unsupported secrets source %q", cfg.Secrets.Source)
}

func (s *runtimeStack) buildSink(ctx context.Context, cfg *app.Config, aws *awsClients) (publisher.Sink, error) {
	switch cfg.Metrics.Sink {
	case app.SinkLog:
		return publisher.NewLogSink(), nil
	case app.SinkStatsd:
		sink, err := publisher.NewStatsdSink(cfg.Metrics.Statsd.Address, cfg.Metrics.Statsd.Tags...)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, sink)
		return sink, nil
	case app.SinkCloudWatch:
		clients, err := aws.get(ctx)
		if err != nil {
			return nil, err
		}
		return amazon.NewMetricSink(clients), nil
	}
	return nil, fmt.Errorf("unsupported metrics sink %q", cfg.Metrics.Sink)
}
