package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// EntitlementMetrics counts authentication, quota and webhook outcomes.
type EntitlementMetrics struct {
	tokenVerifications *prometheus.CounterVec
	quotaDecisions     *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
	activations        *prometheus.CounterVec
}

var (
	entitlementMetricsOnce sync.Once
	entitlementMetrics     *EntitlementMetrics
)

func Entitlement() *EntitlementMetrics {
	return EntitlementWithConfig(Config{})
}

func EntitlementWithConfig(cfg Config) *EntitlementMetrics {
	entitlementMetricsOnce.Do(func() {
		entitlementMetrics = newEntitlementMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return entitlementMetrics
}

func ResetEntitlementMetricsForTest() {
	entitlementMetricsOnce = sync.Once{}
	entitlementMetrics = nil
}

func newEntitlementMetrics(registerer prometheus.Registerer, cfg Config) *EntitlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "promptlens"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	tokenVerifications := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promptlens_token_verifications_total",
			Help:        "Total bearer token verifications by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // ok | invalid_format | invalid_signature | expired | missing_claim
	)

	quotaDecisions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promptlens_quota_decisions_total",
			Help:        "Total quota enforcement decisions by plan and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"plan", "result"}, // allowed | exceeded
	)

	webhookEvents := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promptlens_webhook_events_total",
			Help:        "Total inbound payment webhook events by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // processed | duplicate | rejected | unhandled
	)

	activations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "promptlens_subscription_transitions_total",
			Help:        "Total subscription state transitions.",
			ConstLabels: constLabels,
		},
		[]string{"transition"}, // activate | cancel | payment_failed
	)

	registerer.MustRegister(
		tokenVerifications,
		quotaDecisions,
		webhookEvents,
		activations,
	)

	return &EntitlementMetrics{
		tokenVerifications: tokenVerifications,
		quotaDecisions:     quotaDecisions,
		webhookEvents:      webhookEvents,
		activations:        activations,
	}
}

func (m *EntitlementMetrics) IncTokenVerification(result string) {
	if m == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(result).Inc()
}

func (m *EntitlementMetrics) IncQuotaDecision(plan, result string) {
	if m == nil {
		return
	}
	m.quotaDecisions.WithLabelValues(plan, result).Inc()
}

func (m *EntitlementMetrics) IncWebhookEvent(result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(result).Inc()
}

func (m *EntitlementMetrics) IncSubscriptionTransition(transition string) {
	if m == nil {
		return
	}
	m.activations.WithLabelValues(transition).Inc()
}
