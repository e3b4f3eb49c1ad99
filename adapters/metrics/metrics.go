// Package metrics provides Prometheus metrics for dispatches and store
// mutations.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/artpar/restmodel/core/route"
	"github.com/artpar/restmodel/core/schema"
	"github.com/artpar/restmodel/core/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "restmodel"

// Collector holds all Prometheus metrics. It observes the router and the
// stores it is attached to.
type Collector struct {
	gatherer prometheus.Gatherer

	// Dispatch metrics
	DispatchTotal    *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec

	// Transport metrics
	RequestsInFlight prometheus.Gauge
	AuthFailures     *prometheus.CounterVec

	// Store metrics
	Mutations *prometheus.CounterVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
}

// New creates a collector on its own registry.
func New() *Collector {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry creates a collector registered on reg.
func NewWithRegistry(reg *prometheus.Registry) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		gatherer: reg,

		DispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of dispatched requests",
			},
			[]string{"resource", "method", "status"},
		),
		DispatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Dispatch duration in seconds",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"resource", "method"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_failures_total",
				Help:      "Total number of rejected API keys",
			},
			[]string{"reason"},
		),
		Mutations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_mutations_total",
				Help:      "Total number of committed store mutations",
			},
			[]string{"resource", "action"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reloads_total",
				Help:      "Total number of config file changes applied",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "config_reload_errors_total",
				Help:      "Total number of config file changes that failed to load",
			},
		),
	}
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Dispatched records one router dispatch.
func (c *Collector) Dispatched(resource, method string, status int, elapsed time.Duration) {
	if method == "" {
		method = "unmatched"
	}
	c.DispatchTotal.WithLabelValues(resource, method, strconv.Itoa(status)).Inc()
	c.DispatchDuration.WithLabelValues(resource, method).Observe(elapsed.Seconds())
}

// Created counts a create.
func (c *Collector) Created(_ context.Context, resource string, _ schema.Document) {
	c.Mutations.WithLabelValues(resource, "created").Inc()
}

// Updated counts an update, replace or save.
func (c *Collector) Updated(_ context.Context, resource string, _ schema.Document) {
	c.Mutations.WithLabelValues(resource, "updated").Inc()
}

// Deleted counts a delete.
func (c *Collector) Deleted(_ context.Context, resource string, _ string) {
	c.Mutations.WithLabelValues(resource, "deleted").Inc()
}

// Ensure interface compliance.
var (
	_ route.Observer = (*Collector)(nil)
	_ store.Observer = (*Collector)(nil)
)

// Reloaded counts an applied config reload.
func (c *Collector) Reloaded() {
	c.ConfigReloads.Inc()
}

// ReloadFailed counts a config reload that could not be loaded.
func (c *Collector) ReloadFailed(error) {
	c.ConfigReloadErrors.Inc()
}
