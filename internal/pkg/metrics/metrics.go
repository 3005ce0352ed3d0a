package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

// Metrics holds the Prometheus collectors of the service. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	QuotaDecisionsTotal      *prometheus.CounterVec
	QuotaStoreConflictsTotal *prometheus.CounterVec
	WebhookEventsTotal       *prometheus.CounterVec
	RelayForwardsTotal       *prometheus.CounterVec
}

// New creates and registers all collectors on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		QuotaDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notefox_quota_decisions_total",
				Help: "Quota guard decisions by feature, plan and outcome",
			},
			[]string{"feature", "plan", "outcome"},
		),
		QuotaStoreConflictsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notefox_quota_store_conflicts_total",
				Help: "Conditional usage updates that lost a race and were retried",
			},
			[]string{"backend"},
		),
		WebhookEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notefox_webhook_events_total",
				Help: "Payment provider webhook deliveries by event and outcome",
			},
			[]string{"event", "outcome"},
		),
		RelayForwardsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notefox_relay_forwards_total",
				Help: "Webhook relay forwards by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		m.QuotaDecisionsTotal,
		m.QuotaStoreConflictsTotal,
		m.WebhookEventsTotal,
		m.RelayForwardsTotal,
	)
	return m
}

func (m *Metrics) QuotaDecision(feature, plan, outcome string) {
	if m == nil {
		return
	}
	m.QuotaDecisionsTotal.WithLabelValues(feature, plan, outcome).Inc()
}

func (m *Metrics) StoreConflict(backend string) {
	if m == nil {
		return
	}
	m.QuotaStoreConflictsTotal.WithLabelValues(backend).Inc()
}

func (m *Metrics) WebhookEvent(event, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEventsTotal.WithLabelValues(event, outcome).Inc()
}

func (m *Metrics) RelayForward(outcome string) {
	if m == nil {
		return
	}
	m.RelayForwardsTotal.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format as a fiber handler.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
