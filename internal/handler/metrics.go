package handler

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
)

var httpRequestsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "worker_http_requests_in_flight",
	Help: "The number of http requests currently being served",
})

var httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "worker_http_request_duration_seconds",
	Help:    "The http request duration in seconds",
	Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5, 10, 30, 60, 300},
}, []string{"path", "code"})

func init() {
	prometheus.MustRegister(httpRequestsInFlight)
	prometheus.MustRegister(httpRequestDuration)
}

// Metrics is a handler that collects request metrics
func Metrics(h http.Handler, routeMatcher RouteMatcher) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := routeMatcher.Match(r)

		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		respMetrics := httpsnoop.CaptureMetricsFn(w, func(ww http.ResponseWriter) {
			h.ServeHTTP(ww, r)
		})

		httpRequestDuration.WithLabelValues(route, strconv.Itoa(respMetrics.Code)).Observe(respMetrics.Duration.Seconds())
	})
}
