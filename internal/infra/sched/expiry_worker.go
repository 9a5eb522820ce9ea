package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"xraymed-saas/internal/usecase"
)

// ExpiryWorker periodically sweeps overdue subscriptions through the billing
// state machine. The read path applies the same transition lazily; the sweeper
// keeps accounts that never hit the read path from staying entitled forever.
type ExpiryWorker struct {
	interval  time.Duration
	billingUC usecase.BillingUseCase
	log       *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, billingUC usecase.BillingUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	l := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval:  interval,
		billingUC: billingUC,
		log:       &l,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.billingUC.ExpireDueSubscriptions(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("expiry sweep error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("subscriptions expired")
			}
		}
	}
}
