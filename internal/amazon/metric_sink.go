package amazon

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"github.com/charlesng35/sqlpulse/internal/models"
	"github.com/charlesng35/sqlpulse/internal/publisher"
)

// CloudWatchAPI is the subset of the CloudWatch client used by MetricSink.
type CloudWatchAPI interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// MetricSink publishes samples with a single PutMetricData call.
type MetricSink struct {
	client CloudWatchAPI
}

var _ publisher.Sink = (*MetricSink)(nil)

// NewMetricSink builds a MetricSink from loaded clients.
func NewMetricSink(c *Clients) *MetricSink {
	client := cloudwatch.NewFromConfig(c.aws, func(o *cloudwatch.Options) {
		o.BaseEndpoint = c.baseEndpoint()
	})
	return &MetricSink{client: client}
}

// NewMetricSinkWithClient wraps an existing client.
func NewMetricSinkWithClient(client CloudWatchAPI) *MetricSink {
	return &MetricSink{client: client}
}

func (s *MetricSink) Name() string { return "cloudwatch" }

// RequiresNonEmpty is true: PutMetricData rejects requests without data.
func (s *MetricSink) RequiresNonEmpty() bool { return true }

// Put implements publisher.Sink.
func (s *MetricSink) Put(ctx context.Context, namespace string, batch []models.MetricSample) error {
	data := make([]types.MetricDatum, 0, len(batch))
	for _, sample := range batch {
		data = append(data, toDatum(sample))
	}

	_, err := s.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(namespace),
		MetricData: data,
	})
	if err != nil {
		return fmt.Errorf("cloudwatch put metric data: %w", err)
	}
	return nil
}

func toDatum(sample models.MetricSample) types.MetricDatum {
	keys := sample.DimensionKeys()
	dimensions := make([]types.Dimension, 0, len(keys))
	for _, key := range keys {
		dimensions = append(dimensions, types.Dimension{
			Name:  aws.String(key),
			Value: aws.String(sample.Dimensions[key]),
		})
	}

	unit := types.StandardUnit(sample.Unit)
	if sample.Unit == "" {
		unit = types.StandardUnitNone
	}

	return types.MetricDatum{
		MetricName: aws.String(sample.Name),
		Dimensions: dimensions,
		Unit:       unit,
		Value:      aws.Float64(sample.Value),
	}
}
