package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	FlowOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_flow_outcomes_total",
			Help: "Flows reaching a terminal state",
		},
		[]string{"role", "state", "reason"},
	)

	FlowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_flow_duration_seconds",
			Help:    "Time from flow start to terminal state",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"role"},
	)

	ContractRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_contract_rejections_total",
			Help: "Transactions rejected by contract verification",
		},
		[]string{"reason"},
	)

	NotaryConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_notary_conflicts_total",
			Help: "Notarisation attempts refused because an input was already consumed",
		},
	)

	OutboxPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_outbox_publish_failures_total",
			Help: "Outbox events that failed to publish",
		},
	)
)
