package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		couponsRedeemedTotal,
		couponsRejectedTotal,
	)
}

var (
	couponsRedeemedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coupons_redeemed_total",
			Help: "Successful coupon redemptions recorded at payment verification.",
		},
	)

	// reason: not_found|inactive|expired|exhausted|already_redeemed
	couponsRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coupons_rejected_total",
			Help: "Coupon validations rejected, by reason.",
		},
		[]string{"reason"},
	)
)

func IncCouponRedeemed() {
	couponsRedeemedTotal.Inc()
}

func IncCouponRejected(reason string) {
	couponsRejectedTotal.WithLabelValues(norm(reason)).Inc()
}
