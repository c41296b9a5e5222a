package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prohori_submissions_total",
		Help: "Incident submissions by kind and outcome",
	}, []string{"kind", "outcome"})
	TransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prohori_status_transitions_total",
		Help: "Workflow status requests by kind and target status",
	}, []string{"kind", "status"})
	NearbyDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "prohori_nearby_duration_ms",
		Help:    "Nearby query duration in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 20, 50, 100, 500, 1000},
	})
	NearbyResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "prohori_nearby_results",
		Help:    "Number of incidents returned per nearby query",
		Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
	})
	StoreRetriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prohori_store_retries_total",
		Help: "Persistence retries after storage was unavailable",
	}, []string{"op"})
	DispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prohori_sos_dispatch_total",
		Help: "SOS dispatch webhook deliveries by outcome",
	}, []string{"outcome"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "prohori_http_requests_total",
		Help: "HTTP requests by route pattern and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(SubmissionsTotal)
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(NearbyDurationMs)
	prometheus.MustRegister(NearbyResults)
	prometheus.MustRegister(StoreRetriesTotal)
	prometheus.MustRegister(DispatchTotal)
	prometheus.MustRegister(HTTPRequestsTotal)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
