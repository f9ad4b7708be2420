package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"finance-tracker/internal/config"
	"finance-tracker/internal/usecase"
)

// PaymentReconciler periodically sweeps stale pending payments and settles
// them against the gateway's view of the order.
type PaymentReconciler struct {
	payments usecase.PaymentUseCase
	cfg      config.ReconcilerConfig
	log      *zerolog.Logger
}

func NewPaymentReconciler(payments usecase.PaymentUseCase, cfg config.ReconcilerConfig, logger *zerolog.Logger) *PaymentReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &PaymentReconciler{payments: payments, cfg: cfg, log: logger}
}

// Run blocks until ctx is cancelled.
func (r *PaymentReconciler) Run(ctx context.Context) {
	r.log.Info().
		Dur("interval", r.cfg.Interval).
		Dur("stale_after", r.cfg.StaleAfter).
		Msg("payment reconciler started")

	t := time.NewTicker(r.cfg.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("payment reconciler stopped")
			return
		case <-t.C:
			r.sweep(ctx)
		}
	}
}

func (r *PaymentReconciler) sweep(ctx context.Context) {
	settled, err := r.payments.ReconcilePending(ctx, r.cfg.StaleAfter, r.cfg.BatchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("reconcile sweep failed")
		return
	}
	if settled > 0 {
		r.log.Info().Int("settled", settled).Msg("reconcile sweep settled payments")
	}
}
