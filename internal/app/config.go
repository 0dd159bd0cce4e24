package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/pkg/validator"
)

// Sources and sinks accepted by the configuration.
const (
	SourceSSM            = "ssm"
	SourceSecretsManager = "secretsmanager"
	SourceFile           = "file"

	SinkCloudWatch = "cloudwatch"
	SinkStatsd     = "statsd"
	SinkLog        = "log"
)

// Config represents the runtime configuration for the sqlpulse service.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	AWS        AWSConfig        `mapstructure:"aws"`
	Targets    TargetsConfig    `mapstructure:"targets"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Schedule   ScheduleConfig   `mapstructure:"schedule"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP server and logging.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	// RunRateLimit caps manual run triggers per client per minute; zero disables it.
	RunRateLimit int        `mapstructure:"run_rate_limit"`
	Auth         AuthConfig `mapstructure:"auth"`
}

// AuthConfig configures bearer tokens for the run trigger. The trigger routes
// are only served when JWTSecret is set.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// minJWTSecretLength is the HS256 key size.
const minJWTSecretLength = 32

// AWSConfig configures the AWS SDK clients.
type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// TargetsConfig selects where the target list is read from.
type TargetsConfig struct {
	Source        string `mapstructure:"source"`
	ParameterName string `mapstructure:"parameter_name"`
	File          string `mapstructure:"file"`
}

// SecretsConfig selects where credential payloads are read from.
type SecretsConfig struct {
	Source string `mapstructure:"source"`
	File   string `mapstructure:"file"`
}

// DatabaseConfig holds the settings used for every target connection.
type DatabaseConfig struct {
	Engine                 string            `mapstructure:"engine"`
	Table                  string            `mapstructure:"table"`
	ConnectTimeout         time.Duration     `mapstructure:"connect_timeout"`
	QueryTimeout           time.Duration     `mapstructure:"query_timeout"`
	Encrypt                bool              `mapstructure:"encrypt"`
	TrustServerCertificate bool              `mapstructure:"trust_server_certificate"`
	Options                map[string]string `mapstructure:"options"`
}

// PipelineConfig tunes the load and report pipelines.
type PipelineConfig struct {
	MaxConcurrency int    `mapstructure:"max_concurrency"`
	MetricName     string `mapstructure:"metric_name"`
}

// MetricsConfig selects the metric sink.
type MetricsConfig struct {
	Sink      string       `mapstructure:"sink"`
	Namespace string       `mapstructure:"namespace"`
	Statsd    StatsdConfig `mapstructure:"statsd"`
}

// StatsdConfig configures the DogStatsD sink.
type StatsdConfig struct {
	Address string   `mapstructure:"address"`
	Tags    []string `mapstructure:"tags"`
}

// ScheduleConfig configures the cron triggers used by the serve command.
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Load    string `mapstructure:"load"`
	Report  string `mapstructure:"report"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MaxRunAge marks the scheduler degraded when no run finished within it.
	MaxRunAge time.Duration `mapstructure:"max_run_age"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("SQLPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects unknown sources, sinks and engines along with settings
// that cannot be honoured.
func (c *Config) Validate() error {
	var errs error

	switch c.Targets.Source {
	case SourceSSM:
		if strings.TrimSpace(c.Targets.ParameterName) == "" {
			errs = multierr.Append(errs, errors.New("targets.parameter_name is required for the ssm source"))
		}
	case SourceFile:
		if strings.TrimSpace(c.Targets.File) == "" {
			errs = multierr.Append(errs, errors.New("targets.file is required for the file source"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("targets.source %q is not supported", c.Targets.Source))
	}

	switch c.Secrets.Source {
	case SourceSecretsManager:
	case SourceFile:
		if strings.TrimSpace(c.Secrets.File) == "" {
			errs = multierr.Append(errs, errors.New("secrets.file is required for the file source"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("secrets.source %q is not supported", c.Secrets.Source))
	}

	if registry := database.DefaultRegistry(); !hasDialect(registry, c.Database.Engine) {
		errs = multierr.Append(errs, fmt.Errorf("database.engine %q is not one of %s", c.Database.Engine, strings.Join(registry.IDs(), ", ")))
	}
	if !validator.IsSQLIdentifier(c.Database.Table) {
		errs = multierr.Append(errs, fmt.Errorf("database.table %q is not a valid identifier", c.Database.Table))
	}

	switch c.Metrics.Sink {
	case SinkCloudWatch, SinkLog:
	case SinkStatsd:
		if strings.TrimSpace(c.Metrics.Statsd.Address) == "" {
			errs = multierr.Append(errs, errors.New("metrics.statsd.address is required for the statsd sink"))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("metrics.sink %q is not supported", c.Metrics.Sink))
	}

	if c.Pipeline.MaxConcurrency < 0 {
		errs = multierr.Append(errs, errors.New("pipeline.max_concurrency must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	if secret := c.Server.Auth.JWTSecret; secret != "" && len(secret) < minJWTSecretLength {
		errs = multierr.Append(errs, fmt.Errorf("server.auth.jwt_secret must be at least %d bytes", minJWTSecretLength))
	}
	if c.Server.Auth.TokenTTL <= 0 {
		errs = multierr.Append(errs, errors.New("server.auth.token_ttl must be positive"))
	}

	if errs != nil {
		return fmt.Errorf("config: invalid: %w", errs)
	}
	return nil
}

func hasDialect(registry *database.Registry, engine string) bool {
	_, ok := registry.Get(engine)
	return ok
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.run_rate_limit", 6)
	v.SetDefault("server.auth.jwt_secret", "")
	v.SetDefault("server.auth.issuer", "sqlpulse")
	v.SetDefault("server.auth.token_ttl", "1h")

	v.SetDefault("aws.region", "us-east-1")
	v.SetDefault("aws.endpoint", "")

	v.SetDefault("targets.source", SourceSSM)
	v.SetDefault("targets.parameter_name", "/example/SqlToCwDemo")
	v.SetDefault("targets.file", "")

	v.SetDefault("secrets.source", SourceSecretsManager)
	v.SetDefault("secrets.file", "")

	v.SetDefault("database.engine", "sqlserver")
	v.SetDefault("database.table", "SqlToCwTable")
	v.SetDefault("database.connect_timeout", "15s")
	v.SetDefault("database.query_timeout", "30s")
	v.SetDefault("database.encrypt", true)
	v.SetDefault("database.trust_server_certificate", true)
	v.SetDefault("database.options", map[string]string{})

	v.SetDefault("pipeline.max_concurrency", 0)
	v.SetDefault("pipeline.metric_name", "TestMetric")

	v.SetDefault("metrics.sink", SinkCloudWatch)
	v.SetDefault("metrics.namespace", "TestNamespace")
	v.SetDefault("metrics.statsd.address", "127.0.0.1:8125")
	v.SetDefault("metrics.statsd.tags", []string{})

	v.SetDefault("schedule.enabled", true)
	v.SetDefault("schedule.load", "@every 5m")
	v.SetDefault("schedule.report", "@every 5m")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)
	v.SetDefault("monitoring.health_check.max_run_age", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
