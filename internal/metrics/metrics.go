// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopsquad/internal/models"
	"shopsquad/internal/products"
	"shopsquad/internal/squads"
)

const namespace = "shopsquad"

type Metrics struct {
	registry *prometheus.Registry

	SquadsCreated     prometheus.Counter
	SquadJoins        prometheus.Counter
	ProductsAdded     prometheus.Counter
	Assignments       *prometheus.CounterVec
	LiveSubscriptions prometheus.Gauge
	TaskRuns          *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SquadsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squads_created_total",
			Help:      "Squads created.",
		}),
		SquadJoins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "squad_joins_total",
			Help:      "Join requests that succeeded, including repeats.",
		}),
		ProductsAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "products_added_total",
			Help:      "Products appended to shopping lists.",
		}),
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "product_assignments_total",
			Help:      "Product assignment changes by kind.",
		}, []string{"kind"}),
		LiveSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_subscriptions",
			Help:      "Open live squad feeds.",
		}),
		TaskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Scheduled task executions by task and status.",
		}, []string{"task", "status"}),
	}

	m.registry.MustRegister(
		m.SquadsCreated,
		m.SquadJoins,
		m.ProductsAdded,
		m.Assignments,
		m.LiveSubscriptions,
		m.TaskRuns,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SquadHooks counts directory writes. next, when set, is called afterwards.
func (m *Metrics) SquadHooks(next squads.Hooks) squads.Hooks {
	return squads.Hooks{
		Created: func(ctx context.Context, squad models.Squad) {
			m.SquadsCreated.Inc()
			if next.Created != nil {
				next.Created(ctx, squad)
			}
		},
		Joined: func(ctx context.Context, squad models.Squad, p models.Participant) {
			m.SquadJoins.Inc()
			if next.Joined != nil {
				next.Joined(ctx, squad, p)
			}
		},
	}
}

// ProductHooks counts shopping list writes.
func (m *Metrics) ProductHooks() products.Hooks {
	return products.Hooks{
		Added: func(context.Context, string, models.Product) {
			m.ProductsAdded.Inc()
		},
		Assigned: func(_ context.Context, _, _ string, assignee *string) {
			kind := "assign"
			if assignee == nil {
				kind = "clear"
			}
			m.Assignments.WithLabelValues(kind).Inc()
		},
	}
}
