package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var initOnce sync.Once

var (
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	SearchesTotal        *prometheus.CounterVec
	CandidatesDiscovered prometheus.Counter
	ClassificationsTotal *prometheus.CounterVec
	AdmissionsTotal      *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	PageFetchDuration    *prometheus.HistogramVec
	SeenStoreSize        prometheus.Gauge
)

func Init() {
	initOnce.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests to the admin server.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests to the admin server.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	SearchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "searches_total",
			Help: "Total number of search pages processed.",
		},
		[]string{"status"}, // status: success, failure
	)

	CandidatesDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "candidates_discovered_total",
			Help: "Total number of candidate listing URLs extracted from search pages.",
		},
	)

	ClassificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classifications_total",
			Help: "Total number of recency classifications by evidence kind.",
		},
		[]string{"evidence"}, // exact, approximate, indeterminate
	)

	AdmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admissions_total",
			Help: "Total number of admission decisions.",
		},
		[]string{"decision", "mode"},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification delivery attempts.",
		},
		[]string{"status", "format"}, // status: delivered, failed; format: photo, text
	)

	PageFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "page_fetch_duration_seconds",
			Help:    "Duration of headless-browser page fetches.",
			Buckets: []float64{1, 5, 10, 15, 30, 60, 120},
		},
		[]string{"kind"}, // kind: search, detail
	)

	SeenStoreSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seen_store_size",
			Help: "Current number of URLs in the seen store.",
		},
	)
}
