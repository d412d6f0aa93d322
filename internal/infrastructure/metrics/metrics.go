package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/garyjia/travel-review/internal/domain/entity"
	"github.com/garyjia/travel-review/internal/domain/event"
)

const namespace = "travelreview"

// Metrics holds the review engine's Prometheus collectors
type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	notifications *prometheus.CounterVec
	costWarnings  prometheus.Counter
}

// New registers the collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Committed status transitions of requests and trips.",
		}, []string{"subject", "from", "to"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification delivery attempts by kind and outcome.",
		}, []string{"kind", "status"}),
		costWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trip_cost_warnings_total",
			Help:      "Trip cost threshold warnings raised.",
		}),
	}

	m.registry.MustRegister(
		m.transitions,
		m.notifications,
		m.costWarnings,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveNotification counts one delivery attempt
func (m *Metrics) ObserveNotification(kind entity.NotificationKind, status string) {
	m.notifications.WithLabelValues(kind.String(), status).Inc()
}

// HandleStatusChange is the dispatcher handler for status-changed events
func (m *Metrics) HandleStatusChange(_ context.Context, evt *event.Event) error {
	subject := "request"
	if evt.Type == event.TypeTripStatusChanged {
		subject = "trip"
	}
	m.transitions.WithLabelValues(subject, evt.GetPayloadString("previous_status"), evt.GetPayloadString("new_status")).Inc()
	return nil
}

// HandleCostWarning is the dispatcher handler for cost warning events
func (m *Metrics) HandleCostWarning(_ context.Context, _ *event.Event) error {
	m.costWarnings.Inc()
	return nil
}
