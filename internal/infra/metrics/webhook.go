package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(webhookEventsTotal) }

// result: processed|duplicate|unknown_order|bad_signature|amount_mismatch|stale|ignored
var webhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "payment_webhook_events_total",
		Help: "Webhook events by provider, event type and processing result.",
	},
	[]string{"provider", "type", "result"},
)

func IncWebhookEvent(provider, eventType, result string) {
	webhookEventsTotal.WithLabelValues(norm(provider), norm(eventType), norm(result)).Inc()
}
