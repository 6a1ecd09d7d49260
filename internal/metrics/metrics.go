// Package metrics exposes Prometheus instrumentation for the risk engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the risk engine.
type Metrics struct {
	classificationsTotal *prometheus.CounterVec
	validationFailures   prometheus.Counter
	rulesEvaluated       prometheus.Counter
	ruleEvalFailures     prometheus.Counter
	verdictsPublished    prometheus.Counter
	rulesLoaded          prometheus.Gauge
	verdictsInStore      prometheus.Gauge
	natsConnected        prometheus.Gauge
}

// NewMetrics creates and registers the risk engine collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		classificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "riskd_classifications_total",
			Help: "Total classifications served, by resulting risk level.",
		}, []string{"risk_level"}),
		validationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskd_validation_failures_total",
			Help: "Total classification requests rejected for invalid input.",
		}),
		rulesEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskd_rules_evaluated_total",
			Help: "Total rule predicate evaluations.",
		}),
		ruleEvalFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskd_rule_eval_failures_total",
			Help: "Total rule predicates that failed and were treated as not matched.",
		}),
		verdictsPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "riskd_verdicts_published_total",
			Help: "Total verdicts published to the message bus.",
		}),
		rulesLoaded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskd_rules_loaded",
			Help: "Number of enabled rules in the active catalog snapshot.",
		}),
		verdictsInStore: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskd_verdicts_in_store",
			Help: "Number of verdicts currently held in the audit store.",
		}),
		natsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "riskd_nats_connected",
			Help: "Whether the NATS connection is up (1) or down (0).",
		}),
	}
}

// IncClassification increments the classification counter for a risk level.
func (m *Metrics) IncClassification(riskLevel string) {
	m.classificationsTotal.WithLabelValues(riskLevel).Inc()
}

// IncValidationFailures increments the rejected-request counter.
func (m *Metrics) IncValidationFailures() {
	m.validationFailures.Inc()
}

// IncRulesEvaluated increments the predicate evaluation counter.
func (m *Metrics) IncRulesEvaluated() {
	m.rulesEvaluated.Inc()
}

// IncRuleEvalFailures increments the failed-predicate counter.
func (m *Metrics) IncRuleEvalFailures() {
	m.ruleEvalFailures.Inc()
}

// IncVerdictsPublished increments the published-verdict counter.
func (m *Metrics) IncVerdictsPublished() {
	m.verdictsPublished.Inc()
}

// SetRulesLoaded sets the active rule count gauge.
func (m *Metrics) SetRulesLoaded(count float64) {
	m.rulesLoaded.Set(count)
}

// SetVerdictsInStore sets the audit store size gauge.
func (m *Metrics) SetVerdictsInStore(count float64) {
	m.verdictsInStore.Set(count)
}

// SetNatsConnected sets the NATS connection gauge.
func (m *Metrics) SetNatsConnected(connected bool) {
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}
