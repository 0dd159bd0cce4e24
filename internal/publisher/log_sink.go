package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/pkg/logger"
)

// LogSink writes samples to the application log. Useful for local runs.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink constructs a LogSink on the "metrics" module logger.
func NewLogSink() *LogSink {
	return &LogSink{log: logger.WithModule("metrics")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) RequiresNonEmpty() bool { return false }

// Put implements Sink.
func (s *LogSink) Put(_ context.Context, namespace string, batch []models.MetricSample) error {
	for _, sample := range batch {
		s.log.Info("metric",
			zap.String("namespace", namespace),
			zap.String("name", sample.Name),
			zap.Float64("value", sample.Value),
			zap.String("unit", string(sample.Unit)),
			zap.Any("dimensions", sample.Dimensions),
		)
	}
	return nil
}
