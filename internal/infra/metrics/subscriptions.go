package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		ActiveSubscriptions,
		subscriptionsExpiredTotal,
		subscriptionsCancelledTotal,
	)
}

var (
	ActiveSubscriptions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "active_subscriptions",
			Help: "Number of active subscriptions per plan.",
		},
		[]string{"plan"},
	)

	subscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Subscriptions moved to expired by the sweeper or lazy read path.",
		},
	)

	subscriptionsCancelledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_cancelled_total",
			Help: "Subscriptions cancelled on user request.",
		},
	)
)

func SetActiveSubscriptions(plan string, n int) {
	ActiveSubscriptions.WithLabelValues(norm(plan)).Set(float64(n))
}

func IncSubscriptionsExpired(n int) {
	subscriptionsExpiredTotal.Add(float64(n))
}

func IncSubscriptionsCancelled() {
	subscriptionsCancelledTotal.Inc()
}
