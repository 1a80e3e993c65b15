package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	aiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsim_ai_requests_total",
			Help: "Total number of requests to the generative backend.",
		},
		[]string{"model", "task", "status"},
	)
	aiRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medsim_ai_request_duration_seconds",
			Help:    "Histogram of generative backend request durations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"model", "task"},
	)
	aiFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medsim_ai_failures_total",
			Help: "Backend failures by classification.",
		},
		[]string{"task", "classification"},
	)
	aiPromptTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medsim_ai_prompt_tokens",
			Help:    "Histogram of prompt token counts.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model"},
	)
	aiCompletionTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "medsim_ai_completion_tokens",
			Help:    "Histogram of completion token counts.",
			Buckets: prometheus.LinearBuckets(100, 100, 20),
		},
		[]string{"model"},
	)
)

func recordAIRequest(modelID, task, status string, duration time.Duration) {
	aiRequestsTotal.WithLabelValues(modelID, task, status).Inc()
	aiRequestDuration.WithLabelValues(modelID, task).Observe(duration.Seconds())
}

func recordAIFailure(task, classification string) {
	aiFailuresTotal.WithLabelValues(task, classification).Inc()
}

func recordAITokens(modelID string, promptTokens, completionTokens int) {
	if promptTokens <= 0 && completionTokens <= 0 {
		return
	}
	aiPromptTokens.WithLabelValues(modelID).Observe(float64(promptTokens))
	aiCompletionTokens.WithLabelValues(modelID).Observe(float64(completionTokens))
}
