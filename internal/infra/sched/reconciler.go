package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/domain/ports/repository"
	"devportal-billing/internal/infra/metrics"
	"devportal-billing/internal/usecase"
)

// Reconciler covers the two gaps webhook delivery leaves open: settlements
// whose notification was lost entirely, and registrations that never
// concluded. initialized intents older than staleAfter are looked up at the
// gateway and driven through the same idempotent settlement path; pending
// intents older than pendingExpiry are closed as failed.
type Reconciler struct {
	settlementUC  usecase.SettlementUseCase
	payments      repository.PaymentIntentRepository
	gateway       adapter.PaymentGateway
	interval      time.Duration
	staleAfter    time.Duration
	pendingExpiry time.Duration
	log           *zerolog.Logger
}

func NewReconciler(
	settlementUC usecase.SettlementUseCase,
	payments repository.PaymentIntentRepository,
	gateway adapter.PaymentGateway,
	interval, staleAfter, pendingExpiry time.Duration,
	logger *zerolog.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if pendingExpiry <= 0 {
		pendingExpiry = 24 * time.Hour
	}
	compLog := logger.With().Str("component", "Reconciler").Logger()
	return &Reconciler{
		settlementUC:  settlementUC,
		payments:      payments,
		gateway:       gateway,
		interval:      interval,
		staleAfter:    staleAfter,
		pendingExpiry: pendingExpiry,
		log:           &compLog,
	}
}

func (w *Reconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.reconcileStale(ctx)
			w.expirePending(ctx)
			w.refreshRevenue(ctx)
		}
	}
}

func (w *Reconciler) reconcileStale(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListByStatusOlderThan(ctx, nil, model.PaymentStatusInitialized, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stale initialized intents failed")
		return
	}
	for _, p := range stale {
		orderID, err := w.gateway.LookupOrder(ctx, p.SessionID)
		if errors.Is(err, domain.ErrNotFound) {
			// not settled at the gateway yet; leave it for the next pass
			continue
		}
		if err != nil {
			w.log.Warn().Err(err).Str("session_id", p.SessionID).Msg("gateway lookup failed")
			continue
		}
		n := model.Notification{
			SessionID: p.SessionID,
			OrderID:   orderID,
			Amount:    p.Amount,
			Currency:  p.Currency,
		}
		applied, err := w.settlementUC.Settle(ctx, n)
		if err != nil {
			w.log.Warn().Err(err).Str("session_id", p.SessionID).Msg("reconcile settle failed")
			continue
		}
		if applied {
			metrics.IncPayment("completed")
			metrics.AddPaymentRevenue(p.Currency, p.Amount)
			w.log.Info().Str("session_id", p.SessionID).Str("order_id", orderID).Msg("reconciled lost settlement")
		}
	}
}

func (w *Reconciler) expirePending(ctx context.Context) {
	cutoff := time.Now().Add(-w.pendingExpiry)
	pending, err := w.payments.ListByStatusOlderThan(ctx, nil, model.PaymentStatusPending, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list expired pending intents failed")
		return
	}
	for _, p := range pending {
		err := w.payments.TransitionStatus(ctx, nil, p.SessionID, model.PaymentStatusPending, model.PaymentStatusFailed, "", nil)
		if errors.Is(err, domain.ErrTransitionConflict) {
			continue // someone else moved it; fine either way
		}
		if err != nil {
			w.log.Error().Err(err).Str("session_id", p.SessionID).Msg("expire pending intent failed")
			continue
		}
		metrics.IncPayment("failed")
		w.log.Info().Str("session_id", p.SessionID).Msg("expired pending intent")
	}
}

func (w *Reconciler) refreshRevenue(ctx context.Context) {
	sum, err := w.payments.SumCompletedSince(ctx, nil, time.Now().Add(-24*time.Hour))
	if err != nil {
		w.log.Warn().Err(err).Msg("revenue refresh failed")
		return
	}
	metrics.SetRevenueLast24h(sum)
}
