// Package telemetry exposes prometheus counters for the advisory pipeline.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the pipeline counters. A nil *Metrics is a no-op, so
// telemetry can be disabled by configuration without branching at call sites.
type Metrics struct {
	requests         *prometheus.CounterVec
	providerAttempts prometheus.Counter
	tokens           *prometheus.CounterVec
	costUSD          prometheus.Counter
}

// Request outcomes recorded by ObserveRequest.
const (
	OutcomeSuccess     = "success"
	OutcomeValidation  = "validation_error"
	OutcomeRateLimited = "rate_limited"
	OutcomeBudget      = "budget_exceeded"
	OutcomeProvider    = "provider_error"
	OutcomeNormalize   = "normalization_error"
	OutcomeInternal    = "internal_error"
)

// New registers the pipeline metrics on the given registerer.
// A nil registerer uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwise_requests_total",
			Help: "Advisory requests by outcome.",
		}, []string{"outcome"}),
		providerAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "bulwise_provider_attempts_total",
			Help: "Calls issued to the model provider, including retries.",
		}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bulwise_tokens_total",
			Help: "Provider-metered tokens by direction.",
		}, []string{"direction"}),
		costUSD: factory.NewCounter(prometheus.CounterOpts{
			Name: "bulwise_estimated_cost_usd_total",
			Help: "Cumulative estimated spend recorded to the ledger.",
		}),
	}
}

// ObserveRequest counts one finished request by outcome.
func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}

// ObserveProviderAttempt counts one call issued to the provider.
func (m *Metrics) ObserveProviderAttempt() {
	if m == nil {
		return
	}
	m.providerAttempts.Inc()
}

// ObserveUsage records metered tokens and the estimated cost of one call.
func (m *Metrics) ObserveUsage(inputTokens, outputTokens int64, costUSD float64) {
	if m == nil {
		return
	}
	m.tokens.WithLabelValues("input").Add(float64(inputTokens))
	m.tokens.WithLabelValues("output").Add(float64(outputTokens))
	m.costUSD.Add(costUSD)
}
