package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "layersite", Name: "requests_total", Help: "API requests by resource and verb."},
		[]string{"resource", "verb"},
	)
	MutationsDenied = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "layersite", Name: "mutations_denied_total", Help: "Mutations rejected by the authorization gate."},
		[]string{"resource"},
	)
	IngestRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "layersite", Name: "ingest_runs_total", Help: "Ingestion runs by outcome (ok, error, skipped)."},
		[]string{"outcome"},
	)
	IngestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Namespace: "layersite", Name: "ingest_duration_seconds", Help: "Wall time of a single layer ingestion run."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "layersite", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "layersite", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(RequestsTotal)
	reg.MustRegister(MutationsDenied)
	reg.MustRegister(IngestRuns)
	reg.MustRegister(IngestDuration)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
