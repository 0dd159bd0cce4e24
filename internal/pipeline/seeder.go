package pipeline

import (
	"context"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/models"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

// Seeder is the load unit of work: it makes sure the target database and
// seed table exist and inserts one row with a random countItems.
//
// Existence checks and creation are separate statements, so two invocations
// racing against a fresh target may both try to create the same object; the
// loser fails for that target and succeeds on the next run.
type Seeder struct {
	creds     CredentialResolver
	connector database.Connector
	cfg       Config
	intN      func(n int) int
	log       *zap.Logger
}

// SeederOption configures a Seeder.
type SeederOption func(*Seeder)

// WithIntN replaces the random source used for countItems.
func WithIntN(fn func(n int) int) SeederOption {
	return func(s *Seeder) {
		if fn != nil {
			s.intN = fn
		}
	}
}

// NewSeeder constructs a Seeder.
func NewSeeder(creds CredentialResolver, connector database.Connector, cfg Config, opts ...SeederOption) *Seeder {
	s := &Seeder{
		creds:     creds,
		connector: connector,
		cfg:       cfg.withDefaults(),
		intN:      rand.IntN,
		log:       logger.WithModule("pipeline"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed runs the load unit of work against target. Every step short-circuits
// the rest; the returned error carries the step and the target identity.
func (s *Seeder) Seed(ctx context.Context, target models.Target) error {
	log := logger.WithTarget(s.log, target.Server, target.Database)

	cred, err := s.creds.Resolve(ctx, target.CredentialRef)
	if err != nil {
		return forTarget(err, target)
	}

	dialect, err := s.connector.Dialect(target.Engine)
	if err != nil {
		return fail(apperrors.ErrConnection, "select dialect", target, err)
	}

	if dialect.ManagesDatabases() {
		if err := s.ensureDatabase(ctx, log, target, cred); err != nil {
			return err
		}
	}

	conn, err := s.connector.Connect(ctx, s.cfg.connConfig(target, cred, target.Database))
	if err != nil {
		return fail(apperrors.ErrConnection, "connect", target, err)
	}
	defer closeConn(log, conn)

	exists, err := conn.TableExists(ctx, s.cfg.Table)
	if err != nil {
		return fail(apperrors.ErrSchemaEnsure, "check table", target, err)
	}
	if !exists {
		if err := conn.CreateTable(ctx, s.cfg.Table); err != nil {
			return fail(apperrors.ErrSchemaEnsure, "create table", target, err)
		}
		log.Info("created table", zap.String("table", s.cfg.Table))
	}

	row := &models.SeedRow{CountItems: s.intN(MaxCountItems)}
	if err := conn.InsertRow(ctx, s.cfg.Table, row); err != nil {
		return fail(apperrors.ErrQuery, "insert row", target, err)
	}

	log.Info("seeded row", zap.Int64("id", row.ID), zap.Int("countItems", row.CountItems))
	return nil
}

func (s *Seeder) ensureDatabase(ctx context.Context, log *zap.Logger, target models.Target, cred models.Credential) error {
	admin, err := s.connector.Connect(ctx, s.cfg.connConfig(target, cred, ""))
	if err != nil {
		return fail(apperrors.ErrConnection, "connect admin", target, err)
	}
	defer closeConn(log, admin)

	exists, err := admin.DatabaseExists(ctx, target.Database)
	if err != nil {
		return fail(apperrors.ErrSchemaEnsure, "check database", target, err)
	}
	if exists {
		return nil
	}

	if err := admin.CreateDatabase(ctx, target.Database); err != nil {
		return fail(apperrors.ErrSchemaEnsure, "create database", target, err)
	}
	log.Info("created database")
	return nil
}

func fail(kind *apperrors.Error, step string, target models.Target, err error) error {
	return kind.WithStep(step).ForTarget(target.Server, target.Database).WithInternal(err)
}

// forTarget tags an already classified error with the target identity.
func forTarget(err error, target models.Target) error {
	return apperrors.FromError(err).ForTarget(target.Server, target.Database)
}

func closeConn(log *zap.Logger, conn database.Conn) {
	if err := conn.Close(); err != nil {
		log.Debug("close connection", zap.Error(err))
	}
}
