package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join("testdata")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, "console", cfg.Server.LogFormat)
	require.Equal(t, 2, cfg.Server.RunRateLimit)
	require.Equal(t, "0123456789abcdef0123456789abcdef", cfg.Server.Auth.JWTSecret)
	require.Equal(t, "ops", cfg.Server.Auth.Issuer)
	require.Equal(t, 15*time.Minute, cfg.Server.Auth.TokenTTL)

	require.Equal(t, "eu-west-1", cfg.AWS.Region)
	require.Equal(t, "http://localhost:4566", cfg.AWS.Endpoint)

	require.Equal(t, SourceSSM, cfg.Targets.Source)
	require.Equal(t, "/prod/SqlToCw", cfg.Targets.ParameterName)
	require.Equal(t, SourceFile, cfg.Secrets.Source)
	require.Equal(t, "./secrets.json", cfg.Secrets.File)

	require.Equal(t, "postgres", cfg.Database.Engine)
	require.Equal(t, "Seed_Table", cfg.Database.Table)
	require.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	require.Equal(t, time.Minute, cfg.Database.QueryTimeout)
	require.False(t, cfg.Database.Encrypt)
	require.True(t, cfg.Database.TrustServerCertificate)
	require.Equal(t, "sqlpulse", cfg.Database.Options["application_name"])

	require.Equal(t, 4, cfg.Pipeline.MaxConcurrency)
	require.Equal(t, "SeedCount", cfg.Pipeline.MetricName)

	require.Equal(t, SinkStatsd, cfg.Metrics.Sink)
	require.Equal(t, "Prod", cfg.Metrics.Namespace)
	require.Equal(t, "10.0.0.1:8125", cfg.Metrics.Statsd.Address)
	require.Equal(t, []string{"env:prod", "team:data"}, cfg.Metrics.Statsd.Tags)

	require.False(t, cfg.Schedule.Enabled)
	require.Equal(t, "*/10 * * * *", cfg.Schedule.Load)
	require.Equal(t, "@hourly", cfg.Schedule.Report)

	require.False(t, cfg.Monitoring.Prometheus.Enabled)
	require.Equal(t, "/metrics", cfg.Monitoring.Prometheus.Endpoint)
	require.True(t, cfg.Monitoring.Health.Enabled)
	require.Equal(t, 2*time.Hour, cfg.Monitoring.Health.MaxRunAge)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "json", cfg.Server.LogFormat)
	require.Empty(t, cfg.Server.Auth.JWTSecret)
	require.Equal(t, "sqlpulse", cfg.Server.Auth.Issuer)
	require.Equal(t, time.Hour, cfg.Server.Auth.TokenTTL)
	require.Equal(t, "us-east-1", cfg.AWS.Region)
	require.Equal(t, "/example/SqlToCwDemo", cfg.Targets.ParameterName)
	require.Equal(t, SourceSecretsManager, cfg.Secrets.Source)
	require.Equal(t, "sqlserver", cfg.Database.Engine)
	require.Equal(t, "SqlToCwTable", cfg.Database.Table)
	require.Equal(t, 15*time.Second, cfg.Database.ConnectTimeout)
	require.True(t, cfg.Database.Encrypt)
	require.Equal(t, "TestMetric", cfg.Pipeline.MetricName)
	require.Equal(t, SinkCloudWatch, cfg.Metrics.Sink)
	require.Equal(t, "TestNamespace", cfg.Metrics.Namespace)
	require.True(t, cfg.Schedule.Enabled)
	require.Equal(t, "@every 5m", cfg.Schedule.Load)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("SQLPULSE_METRICS_SINK", "log")
	t.Setenv("SQLPULSE_DATABASE_ENGINE", "mssql")
	t.Setenv("SQLPULSE_PIPELINE_MAX_CONCURRENCY", "8")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, SinkLog, cfg.Metrics.Sink)
	require.Equal(t, "mssql", cfg.Database.Engine)
	require.Equal(t, 8, cfg.Pipeline.MaxConcurrency)
}

func TestValidateRejectsUnknownSettings(t *testing.T) {
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Targets.Source = "consul"
	cfg.Secrets.Source = "file"
	cfg.Database.Engine = "oracle"
	cfg.Database.Table = "t; DROP TABLE x"
	cfg.Metrics.Sink = "graphite"
	cfg.Pipeline.MaxConcurrency = -1
	cfg.Server.Auth.JWTSecret = "short"

	err = cfg.Validate()
	require.Error(t, err)
	for _, fragment := range []string{
		`targets.source "consul"`,
		"secrets.file is required",
		`database.engine "oracle"`,
		"database.table",
		`metrics.sink "graphite"`,
		"pipeline.max_concurrency",
		"server.auth.jwt_secret",
	} {
		require.Contains(t, err.Error(), fragment)
	}
}

func TestLoadConfigRejectsInvalidEnv(t *testing.T) {
	t.Setenv("SQLPULSE_TARGETS_SOURCE", "file")

	_, err := LoadConfig(t.TempDir())
	require.ErrorContains(t, err, "targets.file is required")
}
