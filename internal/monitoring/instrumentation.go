package monitoring

import (
	"strings"
	"time"
)

// RecordPipelineRun records the completion of a pipeline invocation.
// status is one of "success", "partial" or "failure".
func RecordPipelineRun(pipeline, status, message string, targets, failed int, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	id := normalizeLabel(pipeline)
	status = normalizeLabel(status)

	module.metrics.pipelineRuns.WithLabelValues(id, status).Inc()
	observeDuration(module.metrics.pipelineDuration.WithLabelValues(id), duration)
	if status == "success" {
		module.metrics.pipelineLastSuccess.WithLabelValues(id).Set(float64(time.Now().Unix()))
	}
	module.stats.pipelineEntry(id).record(status, strings.TrimSpace(message), targets, failed, duration)
}

// RecordTargetOutcome counts a single target's unit of work. code is the
// error code for failures and ignored on success.
func RecordTargetOutcome(pipeline string, ok bool, code string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	id := normalizeLabel(pipeline)
	result := "success"
	if ok {
		code = "none"
	} else {
		result = "failure"
		code = normalizeLabel(code)
	}

	module.metrics.targetOutcomes.WithLabelValues(id, result, code).Inc()
	observeDuration(module.metrics.targetDuration.WithLabelValues(id), duration)
	module.stats.recordTarget(ok)
}

// RecordPublish records a metric batch publish attempt. result is "success",
// "failure" or "skipped".
func RecordPublish(sink, result string, samples int) {
	module := ensureModule()
	if module == nil {
		return
	}
	sink = normalizeLabel(sink)
	result = normalizeLabel(result)

	module.metrics.publishes.WithLabelValues(sink, result).Inc()
	if result == "success" && samples > 0 {
		module.metrics.samplesPublished.WithLabelValues(sink).Add(float64(samples))
	}
	module.stats.recordPublish(result, samples)
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}
