package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	targetSuccess atomic.Uint64
	targetFailure atomic.Uint64

	publishSuccess  atomic.Uint64
	publishFailure  atomic.Uint64
	publishSkipped  atomic.Uint64
	samplesAccepted atomic.Uint64
	lastPublishAt   atomic.Int64 // unix nano

	pipelines sync.Map // string -> *pipelineStats
}

func newStatStore() *statStore {
	return &statStore{}
}

func (s *statStore) clonePipelines() []PipelineSummary {
	summaries := []PipelineSummary{}
	s.pipelines.Range(func(key, value any) bool {
		pipeline := key.(string)
		stats := value.(*pipelineStats)
		summaries = append(summaries, stats.snapshot(pipeline))
		return true
	})
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Pipeline < summaries[j].Pipeline
	})
	return summaries
}

func (s *statStore) summary() Summary {
	var lastPublish time.Time
	if ns := s.lastPublishAt.Load(); ns > 0 {
		lastPublish = time.Unix(0, ns)
	}

	return Summary{
		GeneratedAt: time.Now(),
		Pipelines:   s.clonePipelines(),
		Targets: TargetSummary{
			Success: s.targetSuccess.Load(),
			Failure: s.targetFailure.Load(),
		},
		Publish: PublishSummary{
			Success:       s.publishSuccess.Load(),
			Failure:       s.publishFailure.Load(),
			Skipped:       s.publishSkipped.Load(),
			Samples:       s.samplesAccepted.Load(),
			LastAttemptAt: lastPublish,
		},
	}
}

func (s *statStore) recordTarget(ok bool) {
	if ok {
		s.targetSuccess.Add(1)
		return
	}
	s.targetFailure.Add(1)
}

func (s *statStore) recordPublish(result string, samples int) {
	switch result {
	case "success":
		s.publishSuccess.Add(1)
		if samples > 0 {
			s.samplesAccepted.Add(uint64(samples))
		}
	case "skipped":
		s.publishSkipped.Add(1)
	default:
		s.publishFailure.Add(1)
	}
	s.lastPublishAt.Store(time.Now().UnixNano())
}

func (s *statStore) pipelineEntry(pipeline string) *pipelineStats {
	value, ok := s.pipelines.Load(pipeline)
	if ok {
		return value.(*pipelineStats)
	}
	stats := &pipelineStats{}
	actual, _ := s.pipelines.LoadOrStore(pipeline, stats)
	return actual.(*pipelineStats)
}

type pipelineStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	lastTargets          atomic.Int64
	lastFailedTargets    atomic.Int64
	consecutiveFailures  atomic.Uint64
	consecutiveSuccesses atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
}

func (p *pipelineStats) snapshot(pipeline string) PipelineSummary {
	status, _ := p.lastStatus.Load().(string)
	errMsg, _ := p.lastError.Load().(string)

	return PipelineSummary{
		Pipeline:            pipeline,
		LastStatus:          status,
		LastRunAt:           time.Unix(0, p.lastRun.Load()),
		LastDuration:        time.Duration(p.lastDuration.Load()),
		LastError:           errMsg,
		LastTargets:         int(p.lastTargets.Load()),
		LastFailedTargets:   int(p.lastFailedTargets.Load()),
		ConsecutiveFailures: p.consecutiveFailures.Load(),
		ConsecutiveSuccess:  p.consecutiveSuccesses.Load(),
		LastSuccessAt:       time.Unix(0, p.lastSuccessfulRun.Load()),
		TotalRuns:           p.totalRuns.Load(),
	}
}

func (p *pipelineStats) record(status, message string, targets, failed int, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	p.lastStatus.Store(status)
	p.lastError.Store(message)
	p.lastRun.Store(now.UnixNano())
	p.lastDuration.Store(int64(duration))
	p.lastTargets.Store(int64(targets))
	p.lastFailedTargets.Store(int64(failed))
	p.totalRuns.Add(1)

	// A partial run still reached every target; only a failed invocation counts against the job.
	switch status {
	case "success", "partial":
		p.consecutiveFailures.Store(0)
		p.consecutiveSuccesses.Add(1)
		if status == "success" {
			p.lastSuccessfulRun.Store(now.UnixNano())
		}
	default:
		p.consecutiveFailures.Add(1)
		p.consecutiveSuccesses.Store(0)
	}
}
