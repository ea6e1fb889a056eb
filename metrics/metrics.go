// Package metrics provides Prometheus metrics for gatewayd. Purely an
// observability concern (SPEC_FULL.md §2): nothing in the request path
// reads these values to make a decision.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus instruments gatewayd exposes.
type Collector struct {
	RouteDuration      *prometheus.HistogramVec
	SubrequestsTotal   *prometheus.CounterVec
	SubrequestDuration *prometheus.HistogramVec
}

// New creates a Collector with all metrics registered against the default
// registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Collector registered against reg, so tests can
// use a scratch registry instead of polluting the default one.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)
	return &Collector{
		RouteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gatewayd",
				Name:      "route_duration_seconds",
				Help:      "Route handling duration in seconds, from match to serialized response.",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path_pattern", "status"},
		),
		SubrequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gatewayd",
				Name:      "subrequests_total",
				Help:      "Total subrequests dispatched, by client and outcome.",
			},
			[]string{"client_id", "type", "outcome"},
		),
		SubrequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gatewayd",
				Name:      "subrequest_duration_seconds",
				Help:      "Subrequest duration in seconds, by client and type.",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"client_id", "type"},
		),
	}
}

// ObserveRoute implements app.RouteMetrics.
func (c *Collector) ObserveRoute(method, pathPattern string, status int, seconds float64) {
	c.RouteDuration.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Observe(seconds)
}

// ObserveSubrequest implements schedule.Metrics.
func (c *Collector) ObserveSubrequest(clientID, kind, outcome string, seconds float64) {
	c.SubrequestsTotal.WithLabelValues(clientID, kind, outcome).Inc()
	c.SubrequestDuration.WithLabelValues(clientID, kind).Observe(seconds)
}

// Handler returns the `/metrics` scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
