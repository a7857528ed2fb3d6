package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	chatQuestionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ridelens_chat_questions_total",
			Help: "Total number of answered questions by outcome.",
		},
		[]string{"outcome"},
	)
	chatCompletionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ridelens_chat_completion_latency_ms",
			Help:    "Latency of the SQL generation call in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2000, 5000, 10000, 15000},
		},
	)
	chatExecutionLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ridelens_chat_execution_latency_ms",
			Help:    "Latency of generated statement execution in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
	)
	chatResultRows = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ridelens_chat_result_rows",
			Help:    "Number of rows returned per answered question.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 1000},
		},
	)
	chatRateLimitedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ridelens_chat_rate_limited_total",
			Help: "Total number of questions refused by the rate limiter.",
		},
	)
	analyticsQueryLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ridelens_analytics_query_latency_ms",
			Help:    "Dashboard aggregate query latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		},
		[]string{"report"},
	)
)

func init() {
	prometheus.MustRegister(
		chatQuestionsTotal,
		chatCompletionLatencyMs,
		chatExecutionLatencyMs,
		chatResultRows,
		chatRateLimitedTotal,
		analyticsQueryLatencyMs,
	)
}

// ObserveChatOutcome counts one finished question. outcome is "ok" or the
// failure kind.
func ObserveChatOutcome(outcome string, rows int) {
	chatQuestionsTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		chatResultRows.Observe(float64(rows))
	}
}

func ObserveCompletionLatency(elapsed time.Duration) {
	chatCompletionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExecutionLatency(elapsed time.Duration) {
	chatExecutionLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func IncrementChatRateLimited() {
	chatRateLimitedTotal.Inc()
}

func ObserveAnalyticsQuery(report string, elapsed time.Duration) {
	analyticsQueryLatencyMs.WithLabelValues(report).Observe(float64(elapsed.Milliseconds()))
}
