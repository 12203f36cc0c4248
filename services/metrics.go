package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	syncRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pet_sync_runs_total",
			Help: "Reconciliation passes per source and result (ok, failed, skipped).",
		},
		[]string{"source", "result"},
	)
	syncUpsertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pet_sync_upserts_total",
			Help: "Total number of pet records written.",
		},
		[]string{"source"},
	)
	syncDeletesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pet_sync_deletes_total",
			Help: "Total number of pet records deleted.",
		},
		[]string{"source"},
	)
	syncRecordErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pet_sync_record_errors_total",
			Help: "Upstream records skipped because they could not be normalized.",
		},
		[]string{"source"},
	)
	syncPassDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pet_sync_pass_duration_seconds",
			Help:    "Duration of a reconciliation pass.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(syncRunsTotal, syncUpsertsTotal, syncDeletesTotal, syncRecordErrorsTotal, syncPassDuration)
}
