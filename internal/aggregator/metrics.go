package aggregator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeCanceled = "canceled"
	outcomeEmpty    = "empty"
)

var pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "yelp_full_list_pages_total",
	Help: "Pages fetched by get_full_yelp_list by outcome",
}, []string{"outcome"})
