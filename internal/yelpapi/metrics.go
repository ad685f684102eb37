package yelpapi

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for upstream API calls.
var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yelp_api_requests_total",
		Help: "Total upstream requests by endpoint and HTTP status",
	}, []string{"endpoint", "status"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "yelp_api_request_duration_seconds",
		Help:    "Upstream request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"endpoint"})

	apiErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "yelp_api_errors_total",
		Help: "Total upstream failures by class",
	}, []string{"class"})
)

// ErrorClass labels yelp_api_errors_total.
type ErrorClass string

const (
	// ErrorClassNetwork covers transport errors and timeouts.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode covers bodies that are not JSON.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassStatus counts non-2xx answers that still carried JSON.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassSize covers bodies larger than the configured limit.
	ErrorClassSize ErrorClass = "size"
)
