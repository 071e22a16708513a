package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ SettlementUseCase = (*settlementUC)(nil)

type SettlementUseCase interface {
	// Settle is the authoritative, idempotent consumer of a settlement
	// notification. applied reports whether THIS call moved the intent to
	// completed; a duplicate no-op returns (false, nil). Returned errors map
	// onto the webhook response:
	//   nil                        -> acknowledge (applied or duplicate no-op)
	//   domain.ErrVerificationFailed -> acknowledge; terminal business failure
	//   domain.ErrInvalidArgument  -> reject, structural problem
	//   domain.ErrNotFound         -> reject, unknown session
	//   *adapter.GatewayError      -> do NOT acknowledge; gateway will redeliver
	Settle(ctx context.Context, n model.Notification) (applied bool, err error)
}

// NotificationDeduper is an optional fast path in front of the store.
// Correctness does not depend on it: the conditional status transition in the
// repository is the real idempotency guard.
type NotificationDeduper interface {
	Seen(ctx context.Context, sessionID string) bool
	MarkProcessed(ctx context.Context, sessionID string)
}

type settlementUC struct {
	payments  repository.PaymentIntentRepository
	subs      repository.SubscriptionRepository
	gateway   adapter.PaymentGateway
	tm        repository.TransactionManager
	dedupe    NotificationDeduper // may be nil
	confirmer ConfirmationDispatcher
	log       *zerolog.Logger
	now       func() time.Time
}

func NewSettlementUseCase(
	payments repository.PaymentIntentRepository,
	subs repository.SubscriptionRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	dedupe NotificationDeduper,
	confirmer ConfirmationDispatcher,
	logger *zerolog.Logger,
) *settlementUC {
	compLog := logger.With().Str("component", "SettlementUC").Logger()
	return &settlementUC{
		payments:  payments,
		subs:      subs,
		gateway:   gateway,
		tm:        tm,
		dedupe:    dedupe,
		confirmer: confirmer,
		log:       &compLog,
		now:       time.Now,
	}
}

func (u *settlementUC) Settle(ctx context.Context, n model.Notification) (bool, error) {
	if n.SessionID == "" || n.OrderID == "" || n.Amount <= 0 || n.Currency == "" {
		return false, domain.ErrInvalidArgument
	}

	if u.dedupe != nil && u.dedupe.Seen(ctx, n.SessionID) {
		u.log.Debug().Str("session_id", n.SessionID).Msg("notification already processed, short-circuiting")
		return false, nil
	}

	intent, err := u.payments.FindBySessionID(ctx, nil, n.SessionID)
	if err != nil {
		return false, err
	}

	// Primary defense against at-least-once delivery: a terminal intent is
	// acknowledged without re-executing verification or any mutation.
	if intent.Status.IsTerminal() {
		u.log.Info().Str("session_id", n.SessionID).Str("status", string(intent.Status)).Msg("duplicate notification for terminal intent")
		return false, nil
	}

	verified, err := u.gateway.Verify(ctx, intent.SessionID, n.Amount, n.OrderID)
	if err != nil {
		// Inconclusive, not failed: leave the intent alone and force
		// redelivery by not acknowledging.
		u.log.Warn().Err(err).Str("session_id", n.SessionID).Msg("gateway verification inconclusive")
		return false, err
	}

	// A notification whose amount differs from the persisted intent must
	// never complete it, even when the gateway reports verified.
	if !verified || n.Amount != intent.Amount || n.Currency != intent.Currency {
		return false, u.reject(ctx, intent, n, verified)
	}

	return u.complete(ctx, intent, n)
}

func (u *settlementUC) reject(ctx context.Context, intent *model.PaymentIntent, n model.Notification, verified bool) error {
	err := u.payments.TransitionStatus(ctx, nil, intent.SessionID, model.PaymentStatusInitialized, model.PaymentStatusFailed, n.OrderID, nil)
	if errors.Is(err, domain.ErrTransitionConflict) {
		return u.resolveConflict(ctx, intent.SessionID)
	}
	if err != nil {
		return err
	}
	u.log.Warn().
		Str("session_id", intent.SessionID).
		Bool("verified", verified).
		Int64("intent_amount", intent.Amount).
		Int64("reported_amount", n.Amount).
		Msg("settlement rejected")
	if u.dedupe != nil {
		u.dedupe.MarkProcessed(ctx, intent.SessionID)
	}
	return domain.ErrVerificationFailed
}

func (u *settlementUC) complete(ctx context.Context, intent *model.PaymentIntent, n model.Notification) (bool, error) {
	now := u.now()
	periodEnd := model.ExtendedPeriodEnd(now, intent.Period)
	sub := &model.Subscription{
		AccountID: intent.AccountID,
		Plan:      intent.Plan,
		Status:    model.SubscriptionStatusActive,
		PeriodEnd: periodEnd,
		UpdatedAt: now,
	}

	// One logically atomic unit: a reader must never observe a completed
	// intent whose subscription was not updated, or vice versa.
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.TransitionStatus(ctx, tx, intent.SessionID, model.PaymentStatusInitialized, model.PaymentStatusCompleted, n.OrderID, &now); err != nil {
			return err
		}
		return u.subs.Upsert(ctx, tx, sub)
	})
	if errors.Is(err, domain.ErrTransitionConflict) {
		return false, u.resolveConflict(ctx, intent.SessionID)
	}
	if err != nil {
		return false, err
	}

	intent.Status = model.PaymentStatusCompleted
	intent.OrderID = n.OrderID
	intent.CompletedAt = &now

	u.log.Info().
		Str("session_id", intent.SessionID).
		Str("order_id", n.OrderID).
		Str("plan", string(intent.Plan)).
		Time("period_end", periodEnd).
		Msg("payment completed, subscription activated")

	if u.dedupe != nil {
		u.dedupe.MarkProcessed(ctx, intent.SessionID)
	}

	// Fire-and-forget confirmation; its failure never alters the response.
	if u.confirmer != nil {
		u.confirmer.Dispatch(intent, sub)
	}
	return true, nil
}

// resolveConflict handles a lost conditional-transition race: if the other
// writer left the intent terminal, the duplicate is a successful no-op.
func (u *settlementUC) resolveConflict(ctx context.Context, sessionID string) error {
	intent, err := u.payments.FindBySessionID(ctx, nil, sessionID)
	if err != nil {
		return err
	}
	if intent.Status.IsTerminal() {
		u.log.Info().Str("session_id", sessionID).Msg("transition race lost to an already-terminal intent")
		return nil
	}
	return domain.ErrOperationFailed
}
