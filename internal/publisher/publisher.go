package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/internal/monitoring"
	apperrors "github.com/charlesng35/sqlpulse/pkg/errors"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

// DefaultNamespace is the metric namespace used when none is configured.
const DefaultNamespace = "TestNamespace"

// Sink delivers a batch of metric samples to a monitoring backend.
type Sink interface {
	// Name identifies the sink in logs and self metrics.
	Name() string
	// Put sends the whole batch in one call.
	Put(ctx context.Context, namespace string, batch []models.MetricSample) error
	// RequiresNonEmpty reports whether the backend rejects empty batches.
	RequiresNonEmpty() bool
}

// Result describes a publish attempt.
type Result struct {
	Sink    string `json:"sink"`
	Samples int    `json:"samples"`
	Skipped bool   `json:"skipped"`
}

// Publisher flattens the successful outcomes of a report run into one batch.
type Publisher struct {
	sink      Sink
	namespace string
	log       *zap.Logger
}

// New constructs a Publisher writing to sink under namespace.
func New(sink Sink, namespace string) *Publisher {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Publisher{
		sink:      sink,
		namespace: namespace,
		log:       logger.WithModule("publisher"),
	}
}

// Publish sends the samples of every successful outcome, in order, to the
// sink. Failed outcomes are ignored and never modified. A sink rejection is
// returned as a publish error.
func (p *Publisher) Publish(ctx context.Context, aggregate models.Aggregate[[]models.MetricSample]) (Result, error) {
	batch := Flatten(aggregate)
	result := Result{Sink: p.sink.Name(), Samples: len(batch)}

	if len(batch) == 0 && p.sink.RequiresNonEmpty() {
		result.Skipped = true
		p.log.Warn("no samples to publish, skipping",
			zap.String("sink", result.Sink),
			zap.Int("targets", len(aggregate)),
			zap.Int("failed", aggregate.Failures()),
		)
		monitoring.RecordPublish(result.Sink, "skipped", 0)
		return result, nil
	}

	if err := p.sink.Put(ctx, p.namespace, batch); err != nil {
		monitoring.RecordPublish(result.Sink, "failure", len(batch))
		return result, apperrors.ErrPublish.WithStep("put " + result.Sink).WithInternal(err)
	}

	monitoring.RecordPublish(result.Sink, "success", len(batch))
	p.log.Info("published metrics",
		zap.String("sink", result.Sink),
		zap.String("namespace", p.namespace),
		zap.Int("samples", len(batch)),
	)
	return result, nil
}

// Flatten concatenates the samples of successful outcomes in input order.
func Flatten(aggregate models.Aggregate[[]models.MetricSample]) []models.MetricSample {
	batch := make([]models.MetricSample, 0, len(aggregate))
	for _, outcome := range aggregate {
		if !outcome.OK() {
			continue
		}
		batch = append(batch, outcome.Value...)
	}
	return batch
}
