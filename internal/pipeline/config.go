package pipeline

import (
	"context"
	"time"

	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/models"
)

const (
	// DefaultTable is the seed table created in every target database.
	DefaultTable = "SqlToCwTable"
	// DefaultMetricName names the sample reported for every target.
	DefaultMetricName = "TestMetric"
	// MaxCountItems bounds seeded values to [0, MaxCountItems).
	MaxCountItems = 100
)

// Config holds the settings shared by the load and report units of work.
type Config struct {
	Table                  string
	MetricName             string
	ConnectTimeout         time.Duration
	Encrypt                bool
	TrustServerCertificate bool
	// Options are passed to every connection as extra driver parameters.
	Options map[string]string
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = DefaultTable
	}
	if c.MetricName == "" {
		c.MetricName = DefaultMetricName
	}
	return c
}

// connConfig builds the connection settings for target. An empty database
// selects the dialect's administrative database.
func (c Config) connConfig(target models.Target, cred models.Credential, db string) database.Config {
	return database.Config{
		Engine:                 target.Engine,
		Server:                 target.Server,
		Database:               db,
		User:                   cred.Username,
		Password:               cred.Password,
		ConnectTimeout:         c.ConnectTimeout,
		Encrypt:                c.Encrypt,
		TrustServerCertificate: c.TrustServerCertificate,
		Options:                c.Options,
	}
}

// CredentialResolver resolves a secret reference into a login.
type CredentialResolver interface {
	Resolve(ctx context.Context, ref string) (models.Credential, error)
}

// TargetResolver returns the targets of one invocation.
type TargetResolver interface {
	Resolve(ctx context.Context) ([]models.Target, error)
}
