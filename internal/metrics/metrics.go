package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestTotal counts HTTP requests by method, route and status.
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmsweb_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	// RequestDuration is the latency of HTTP requests.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cmsweb_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	// SubmissionsTotal counts contact submissions by outcome (ok or an error kind).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cmsweb_contact_submissions_total",
			Help: "Total number of contact submissions",
		},
		[]string{"result"},
	)
	// LedgerConflicts counts conditional writes that lost to a concurrent writer.
	LedgerConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmsweb_ledger_conflicts_total",
			Help: "Ledger writes rejected because the ledger changed since it was read",
		},
	)
	// LedgerResets counts corrupt ledgers that were discarded.
	LedgerResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cmsweb_ledger_resets_total",
			Help: "Corrupt ledger documents replaced by an empty ledger",
		},
	)
	// LedgerRecords is the ledger length after the last successful write.
	LedgerRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cmsweb_ledger_records",
			Help: "Number of records in the contact ledger after the last write",
		},
	)
)
