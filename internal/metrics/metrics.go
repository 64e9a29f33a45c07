package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the QA review service.
type Metrics struct {
	// Cycle metrics
	CyclesTotal         *prometheus.CounterVec
	CycleDuration       prometheus.Histogram
	IssuesAnalyzed      prometheus.Counter
	ImprovementsApplied prometheus.Counter
	GateSkips           *prometheus.CounterVec

	// Text-generation metrics
	GenerationRequests *prometheus.CounterVec
	GenerationTokens   *prometheus.CounterVec
	GenerationLatency  prometheus.Histogram
	TruncatedResponses prometheus.Counter

	// Prompt-store metrics
	PromptCommits      prometheus.Counter
	PromptCommitErrors prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// New creates and registers all Prometheus metrics. Safe to call more
// than once; the same registered set is returned.
func New() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			CyclesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "qa_review_cycles_total",
					Help: "Review cycles by terminal status",
				},
				[]string{"status"},
			),
			CycleDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "qa_review_cycle_duration_seconds",
					Help:    "Duration of review cycles in seconds",
					Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68m
				},
			),
			IssuesAnalyzed: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "qa_review_issues_analyzed_total",
					Help: "Quality issues fed into review cycles",
				},
			),
			ImprovementsApplied: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "qa_review_improvements_applied_total",
					Help: "Prompt revisions committed",
				},
			),
			GateSkips: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "qa_review_gate_skips_total",
					Help: "Agents skipped by the improvement gate, by reason",
				},
				[]string{"reason"},
			),
			GenerationRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "qa_review_generation_requests_total",
					Help: "Text-generation requests by kind and outcome",
				},
				[]string{"kind", "outcome"},
			),
			GenerationTokens: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "qa_review_generation_tokens_total",
					Help: "Tokens consumed by text-generation requests",
				},
				[]string{"direction"},
			),
			GenerationLatency: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "qa_review_generation_latency_seconds",
					Help:    "Latency of text-generation requests",
					Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
				},
			),
			TruncatedResponses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "qa_review_truncated_responses_total",
					Help: "Generation responses discarded for hitting the output-size bound",
				},
			),
			PromptCommits: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "qa_review_prompt_commits_total",
					Help: "Prompt documents committed to the versioned store",
				},
			),
			PromptCommitErrors: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "qa_review_prompt_commit_errors_total",
					Help: "Failed prompt-store writes",
				},
			),
		}
	})
	return sharedMetrics
}
