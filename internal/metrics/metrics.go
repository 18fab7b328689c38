package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_rpc_requests_total",
		Help: "RPC requests handled, by method and status.",
	}, []string{"method", "status"})

	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "recommender_rpc_duration_seconds",
		Help:    "Time spent executing an RPC request.",
		Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"method"})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "recommender_rpc_queue_depth",
		Help: "Requests waiting in the dispatcher queue.",
	})

	LLMAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_llm_attempts_total",
		Help: "LLM generation attempts, by operation and outcome.",
	}, []string{"operation", "outcome"})

	TranslationCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "recommender_translation_calls_total",
		Help: "Translation lookups, by outcome (ok, error, cached).",
	}, []string{"outcome"})
)

// Status labels an RPC outcome.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
