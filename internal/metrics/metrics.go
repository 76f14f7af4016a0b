// Package metrics exposes Prometheus collectors fed by engine lifecycle hooks.
package metrics

import (
	"context"
	"net/http"

	"github.com/aretw0/stepgraph/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collectors holds the step execution metrics.
type Collectors struct {
	registry     *prometheus.Registry
	nodes        *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	preparations *prometheus.CounterVec
	running      prometheus.Gauge
}

// New creates collectors registered on a fresh registry.
func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		nodes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepgraph_nodes_total",
				Help: "Nodes that reached a terminal state",
			},
			[]string{"kind", "state"},
		),
		nodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stepgraph_node_duration_seconds",
				Help:    "Duration of node executions",
				Buckets: prometheus.ExponentialBuckets(0.005, 4, 8),
			},
			[]string{"kind"},
		),
		preparations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stepgraph_preparations_total",
				Help: "Executed environment preparation requests",
			},
			[]string{"success"},
		),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "stepgraph_nodes_running",
			Help: "Nodes currently executing",
		}),
	}
	c.registry.MustRegister(c.nodes, c.nodeDuration, c.preparations, c.running)
	return c
}

// Registry returns the registry the collectors live in.
func (c *Collectors) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Hooks returns lifecycle hooks recording into the collectors.
func (c *Collectors) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnNodeEnter: func(_ context.Context, e *domain.NodeEvent) {
			c.running.Inc()
		},
		OnNodeLeave: func(_ context.Context, e *domain.NodeEvent) {
			c.running.Dec()
			c.nodes.WithLabelValues(string(e.RequestKind), string(e.State)).Inc()
			c.nodeDuration.WithLabelValues(string(e.RequestKind)).Observe(e.Duration.Seconds())
		},
		OnNodeSkip: func(_ context.Context, e *domain.NodeEvent) {
			c.nodes.WithLabelValues(string(e.RequestKind), string(domain.NodeSkipped)).Inc()
		},
		OnPreparation: func(_ context.Context, e *domain.PreparationEvent) {
			label := "false"
			if e.Success {
				label = "true"
			}
			c.preparations.WithLabelValues(label).Inc()
		},
	}
}
