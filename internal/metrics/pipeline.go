// SPDX-License-Identifier: MIT

// Package metrics provides Prometheus metrics for the subtitle
// pipeline and the optional debug listener exposing them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

var (
	// Stage metrics
	stageProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_stage_processed_total",
		Help: "Videos processed per stage by outcome",
	}, []string{"stage", "outcome"}) // outcome=success|failure|skipped

	stageFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_stage_failures_total",
		Help: "Stage failures by error type",
	}, []string{"stage", "error_type"})

	stageDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subpipe_stage_duration_seconds",
		Help:    "Time spent processing one video in a stage",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subpipe_queue_depth",
		Help: "Buffered items waiting per stage queue",
	}, []string{"stage"})

	// Translation metrics
	chunksTranslatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subpipe_chunks_translated_total",
		Help: "Total subtitle chunks translated successfully",
	})

	chunkRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subpipe_chunk_retries_total",
		Help: "Total chunk translation retries",
	})

	translationCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_translation_cache_total",
		Help: "Translation cache lookups by outcome",
	}, []string{"outcome"}) // outcome=hit|miss

	llmRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "subpipe_llm_request_duration_seconds",
		Help:    "Latency of LLM requests by provider and task",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
	}, []string{"provider", "task"}) // task=translate|summarize

	llmRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_llm_requests_total",
		Help: "LLM requests by provider, task and outcome",
	}, []string{"provider", "task", "outcome"}) // outcome=success|failure

	// Proxy metrics
	proxyHealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "subpipe_proxy_healthy",
		Help: "Whether a proxy is currently healthy (1) or cooling down (0)",
	}, []string{"proxy"})

	proxyFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_proxy_failures_total",
		Help: "Total failures attributed to a proxy",
	}, []string{"proxy"})

	// Subprocess metrics
	subprocessKillsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_subprocess_kills_total",
		Help: "Signals sent to subprocess groups on cancellation",
	}, []string{"signal", "outcome"}) // outcome=sent|gone|error

	// Persistence metrics
	manifestSavesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subpipe_manifest_saves_total",
		Help: "Total manifest writes to disk",
	})

	manifestSaveErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subpipe_manifest_save_errors_total",
		Help: "Total manifest write failures",
	})

	archiveSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subpipe_archive_skips_total",
		Help: "Videos skipped because the archive already holds them",
	})

	// Batch metrics
	videosTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "subpipe_videos_total",
		Help: "Videos finished by terminal outcome",
	}, []string{"outcome"}) // outcome=done|failed|skipped
)

func IncStageProcessed(stage, outcome string) {
	stageProcessedTotal.WithLabelValues(stage, outcome).Inc()
}

func IncStageFailure(stage, errorType string) {
	stageFailuresTotal.WithLabelValues(stage, errorType).Inc()
}

func ObserveStageDuration(stage string, seconds float64) {
	stageDurationSeconds.WithLabelValues(stage).Observe(seconds)
}

func SetQueueDepth(stage string, depth int) {
	queueDepth.WithLabelValues(stage).Set(float64(depth))
}

// QueueDepthValue returns the current depth gauge for a stage (for testing).
func QueueDepthValue(stage string) float64 {
	var m dto.Metric
	if err := queueDepth.WithLabelValues(stage).Write(&m); err != nil {
		return 0
	}
	return m.GetGauge().GetValue()
}

func IncChunksTranslated() { chunksTranslatedTotal.Inc() }
func IncChunkRetry()       { chunkRetriesTotal.Inc() }

func IncTranslationCache(hit bool) {
	if hit {
		translationCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	translationCacheTotal.WithLabelValues("miss").Inc()
}

func ObserveLLMRequest(provider, task string, seconds float64, err error) {
	llmRequestDurationSeconds.WithLabelValues(provider, task).Observe(seconds)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	llmRequestsTotal.WithLabelValues(provider, task, outcome).Inc()
}

func SetProxyHealthy(proxy string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	proxyHealthy.WithLabelValues(proxy).Set(v)
}

func IncProxyFailure(proxy string) { proxyFailuresTotal.WithLabelValues(proxy).Inc() }

func IncSubprocessKill(signal, outcome string) {
	subprocessKillsTotal.WithLabelValues(signal, outcome).Inc()
}

func IncManifestSave(err error) {
	manifestSavesTotal.Inc()
	if err != nil {
		manifestSaveErrorsTotal.Inc()
	}
}

func IncArchiveSkip() { archiveSkipsTotal.Inc() }

func IncVideoOutcome(outcome string) { videosTotal.WithLabelValues(outcome).Inc() }
