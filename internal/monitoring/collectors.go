package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	pipelineRuns        *prometheus.CounterVec
	pipelineDuration    *prometheus.HistogramVec
	pipelineLastSuccess *prometheus.GaugeVec
	targetOutcomes      *prometheus.CounterVec
	targetDuration      *prometheus.HistogramVec
	publishes           *prometheus.CounterVec
	samplesPublished    *prometheus.CounterVec
	apiLatency          *prometheus.HistogramVec
}

func newCollectors(namespace string) *collectors {
	buckets := prometheus.DefBuckets
	runBuckets := []float64{
		0.1, 0.5, 1, 5, 15, 30, // seconds
		60, 120, 300, // minutes
	}

	return &collectors{
		pipelineRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pipeline_runs_total",
				Help:      "Pipeline invocations grouped by final status",
			},
			[]string{"pipeline", "status"},
		),
		pipelineDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "pipeline_duration_seconds",
				Help:      "Wall time of a pipeline invocation",
				Buckets:   runBuckets,
			},
			[]string{"pipeline"},
		),
		pipelineLastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pipeline_last_success_timestamp",
				Help:      "Timestamp of the last fully successful invocation (seconds since epoch)",
			},
			[]string{"pipeline"},
		),
		targetOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "target_outcomes_total",
				Help:      "Per-target unit of work outcomes by result and error code",
			},
			[]string{"pipeline", "result", "code"},
		),
		targetDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "target_duration_seconds",
				Help:      "Duration of a single target unit of work",
				Buckets:   buckets,
			},
			[]string{"pipeline"},
		),
		publishes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metric_publishes_total",
				Help:      "Metric batch publish attempts by sink and result",
			},
			[]string{"sink", "result"},
		),
		samplesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "metric_samples_published_total",
				Help:      "Metric samples accepted by the sink",
			},
			[]string{"sink"},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.pipelineRuns,
		c.pipelineDuration,
		c.pipelineLastSuccess,
		c.targetOutcomes,
		c.targetDuration,
		c.publishes,
		c.samplesPublished,
		c.apiLatency,
	}
}

// observeDuration records a duration in seconds on the supplied histogram observer.
func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
