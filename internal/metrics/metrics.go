// Package metrics
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "siteindex_fetch_duration_seconds",
			Help:    "Duration of page fetches in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)
	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteindex_fetches_total",
			Help: "Total number of page fetches, labeled by status class.",
		},
		[]string{"status"},
	)
	PagesIndexed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "siteindex_pages_indexed_total",
			Help: "Total number of pages persisted, labeled by site.",
		},
		[]string{"site"},
	)
	DBQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "siteindex_db_query_duration_seconds",
			Help:    "Duration of database operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query_name"},
	)
	SitesByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "siteindex_sites",
			Help: "Number of sites of the current run, labeled by status.",
		},
		[]string{"status"},
	)
	IndexingInProgress = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "siteindex_indexing_in_progress",
			Help: "1 while a full indexing run is active.",
		},
	)
)

func init() {
	prometheus.MustRegister(FetchDuration)
	prometheus.MustRegister(FetchesTotal)
	prometheus.MustRegister(PagesIndexed)
	prometheus.MustRegister(DBQueryDuration)
	prometheus.MustRegister(SitesByStatus)
	prometheus.MustRegister(IndexingInProgress)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
