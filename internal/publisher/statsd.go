package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/DataDog/datadog-go/v5/statsd"
	"go.uber.org/multierr"

	"github.com/charlesng35/sqlpulse/internal/models"
)

// DefaultStatsdAddress is the agent address used when none is configured.
const DefaultStatsdAddress = "127.0.0.1:8125"

// GaugeClient is the subset of the statsd client used by StatsdSink.
type GaugeClient interface {
	Gauge(name string, value float64, tags []string, rate float64) error
	Flush() error
	Close() error
}

var _ GaugeClient = (*statsd.Client)(nil)

// StatsdSink reports samples as DogStatsD gauges. The namespace prefixes the
// metric name and dimensions become "key:value" tags.
type StatsdSink struct {
	client GaugeClient
}

// NewStatsdSink dials a DogStatsD agent at address.
func NewStatsdSink(address string, globalTags ...string) (*StatsdSink, error) {
	if address == "" {
		address = DefaultStatsdAddress
	}
	client, err := statsd.New(address, statsd.WithTags(globalTags))
	if err != nil {
		return nil, fmt.Errorf("create statsd client: %w", err)
	}
	return &StatsdSink{client: client}, nil
}

// NewStatsdSinkWithClient wraps an existing client.
func NewStatsdSinkWithClient(client GaugeClient) *StatsdSink {
	return &StatsdSink{client: client}
}

func (s *StatsdSink) Name() string { return "statsd" }

// RequiresNonEmpty is false: an empty batch is a no-op flush.
func (s *StatsdSink) RequiresNonEmpty() bool { return false }

// Put implements Sink.
func (s *StatsdSink) Put(_ context.Context, namespace string, batch []models.MetricSample) error {
	var errs error
	for _, sample := range batch {
		name := sample.Name
		if namespace != "" {
			name = namespace + "." + name
		}
		errs = multierr.Append(errs, s.client.Gauge(name, sample.Value, statsdTags(sample), 1))
	}
	return multierr.Append(errs, s.client.Flush())
}

// Close flushes and closes the underlying client.
func (s *StatsdSink) Close() error {
	return s.client.Close()
}

func statsdTags(sample models.MetricSample) []string {
	keys := sample.DimensionKeys()
	tags := make([]string, 0, len(keys)+1)
	for _, key := range keys {
		tags = append(tags, key+":"+sample.Dimensions[key])
	}
	if sample.Unit != "" {
		tags = append(tags, "unit:"+strings.ToLower(string(sample.Unit)))
	}
	return tags
}
