package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"method", "route"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_analysis_runs_total",
			Help: "Total number of analysis runs by outcome",
		},
		[]string{"outcome"},
	)

	AnalysisRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "relay_analysis_run_duration_seconds",
			Help:    "Duration of analysis runs from probe to terminal state",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	AnalysisRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_analysis_runs_active",
			Help: "Number of analysis runs currently polling",
		},
	)

	StatusPollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_status_polls_total",
			Help: "Total number of upstream status polls by classified outcome",
		},
		[]string{"outcome"},
	)
)
