package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/database"
	"github.com/charlesng35/sqlpulse/internal/models"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

// Sampler is the report unit of work: it reads the newest seed row of a
// target and turns it into metric samples.
type Sampler struct {
	creds     CredentialResolver
	connector database.Connector
	cfg       Config
	log       *zap.Logger
}

// NewSampler constructs a Sampler.
func NewSampler(creds CredentialResolver, connector database.Connector, cfg Config) *Sampler {
	return &Sampler{
		creds:     creds,
		connector: connector,
		cfg:       cfg.withDefaults(),
		log:       logger.WithModule("pipeline"),
	}
}

// Sample returns one sample holding the latest countItems of target, with
// server and database dimensions. An empty table is an EmptyResult error.
func (s *Sampler) Sample(ctx context.Context, target models.Target) ([]models.MetricSample, error) {
	log := logger.WithTarget(s.log, target.Server, target.Database)

	cred, err := s.creds.Resolve(ctx, target.CredentialRef)
	if err != nil {
		return nil, forTarget(err, target)
	}

	conn, err := s.connector.Connect(ctx, s.cfg.connConfig(target, cred, target.Database))
	if err != nil {
		return nil, fail(apperrors.ErrConnection, "connect", target, err)
	}
	defer closeConn(log, conn)

	row, ok, err := conn.LatestRow(ctx, s.cfg.Table)
	if err != nil {
		return nil, fail(apperrors.ErrQuery, "select latest row", target, err)
	}
	if !ok {
		return nil, apperrors.ErrEmptyResult.WithStep("select latest row").ForTarget(target.Server, target.Database)
	}

	log.Debug("sampled row", zap.Int64("id", row.ID), zap.Int("countItems", row.CountItems))
	return []models.MetricSample{{
		Name: s.cfg.MetricName,
		Dimensions: map[string]string{
			"server":   target.Server,
			"database": target.Database,
		},
		Unit:  models.UnitCount,
		Value: float64(row.CountItems),
	}}, nil
}
