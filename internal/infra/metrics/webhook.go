package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookRequests,
		WebhookDuration,
		ConfirmationMailTotal,
	)
}

var (
	// Count of webhook deliveries grouped by result and bounded reason.
	// result: ack|reject|retry
	// reason: applied|duplicate|business_failed|bad_form|bad_signature|unknown_session|gateway_error|store_error
	WebhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Count of settlement webhook deliveries by result and reason.",
		},
		[]string{"result", "reason"},
	)

	// Latency of the webhook handler grouped by result.
	WebhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of the settlement webhook handler in seconds.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"result"},
	)

	// Confirmation email attempts by delivery status: sent|error|skipped.
	ConfirmationMailTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_confirmation_mail_total",
			Help: "Confirmation email attempts by delivery status.",
		},
		[]string{"status"},
	)
)
