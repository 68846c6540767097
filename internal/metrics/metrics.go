package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldops_http_requests_total",
		Help: "Total HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fieldops_http_request_duration_seconds",
		Help:    "HTTP request latency by method and path",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldops_schedule_claims_total",
		Help: "Responsibility claims by kind (operation/loading) and result",
	}, []string{"kind", "result"})

	CompletionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldops_schedule_completions_total",
		Help: "Completion attempts by result (ok/rejected/failed/partial)",
	}, []string{"result"})

	PartialCompletionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldops_schedule_partial_completions_open",
		Help: "Entries currently present in both active and history collections",
	})

	ReconcilerRepairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldops_reconciler_repairs_total",
		Help: "Active-collection deletes completed by the reconciler",
	})

	StreamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldops_stream_clients",
		Help: "Connected schedule WebSocket stream clients",
	})
)
