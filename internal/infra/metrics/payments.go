package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		paymentsTotal,
		paymentsRevenueTotal,
		revenueLast24h,
	)
}

var (
	paymentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Payment intents by status (initialized/completed/failed).",
		},
		[]string{"status"},
	)

	paymentsRevenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_grosze_total",
			Help: "Total settled value in currency minor units, labeled by currency.",
		},
		[]string{"currency"},
	)

	revenueLast24h = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "payments_revenue_grosze_last_24h",
			Help: "Settled value over the trailing 24 hours, refreshed by the reconciler.",
		},
	)
)

func IncPayment(status string) {
	paymentsTotal.WithLabelValues(norm(status)).Inc()
}

func AddPaymentRevenue(currency string, amount int64) {
	paymentsRevenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func SetRevenueLast24h(amount int64) {
	revenueLast24h.Set(float64(amount))
}
