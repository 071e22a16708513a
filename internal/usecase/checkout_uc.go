package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CheckoutUseCase = (*checkoutUC)(nil)

type CheckoutUseCase interface {
	// Initiate validates the plan selection, registers a transaction with the
	// gateway and returns the persisted intent plus the redirect URL.
	Initiate(ctx context.Context, principal model.Principal, plan model.PlanType, period model.BillingPeriod) (*model.PaymentIntent, string, error)
	// FindIntent returns the principal's intent for dashboard status polling.
	FindIntent(ctx context.Context, principal model.Principal, sessionID string) (*model.PaymentIntent, error)
}

type checkoutUC struct {
	payments repository.PaymentIntentRepository
	gateway  adapter.PaymentGateway
	log      *zerolog.Logger
}

func NewCheckoutUseCase(payments repository.PaymentIntentRepository, gateway adapter.PaymentGateway, logger *zerolog.Logger) *checkoutUC {
	compLog := logger.With().Str("component", "CheckoutUC").Logger()
	return &checkoutUC{payments: payments, gateway: gateway, log: &compLog}
}

func (u *checkoutUC) Initiate(ctx context.Context, principal model.Principal, plan model.PlanType, period model.BillingPeriod) (*model.PaymentIntent, string, error) {
	if principal.AccountID == "" {
		return nil, "", domain.ErrUnauthenticated
	}
	amount, err := model.PriceFor(plan, period)
	if err != nil {
		return nil, "", err
	}

	now := time.Now()
	intent := &model.PaymentIntent{
		ID:        uuid.NewString(),
		AccountID: principal.AccountID,
		Email:     principal.Email,
		Amount:    amount,
		Currency:  model.CurrencyPLN,
		Plan:      plan,
		Period:    period,
		SessionID: ulid.Make().String(),
		Status:    model.PaymentStatusPending,
		CreatedAt: now,
	}
	if err := u.payments.Save(ctx, nil, intent); err != nil {
		return nil, "", err
	}

	res, err := u.gateway.Register(ctx, intent)
	if err != nil {
		// The intent must never stay pending after a known registration
		// outcome; record the failure before surfacing the error.
		if terr := u.payments.TransitionStatus(ctx, nil, intent.SessionID, model.PaymentStatusPending, model.PaymentStatusFailed, "", nil); terr != nil {
			u.log.Error().Err(terr).Str("session_id", intent.SessionID).Msg("failed to mark intent failed after registration error")
		}
		intent.Status = model.PaymentStatusFailed
		return nil, "", err
	}

	if err := u.payments.SetToken(ctx, nil, intent.ID, res.Token); err != nil {
		u.closeOrphanedRegistration(ctx, intent, res.Token)
		return nil, "", err
	}
	if err := u.payments.TransitionStatus(ctx, nil, intent.SessionID, model.PaymentStatusPending, model.PaymentStatusInitialized, "", nil); err != nil {
		u.closeOrphanedRegistration(ctx, intent, res.Token)
		return nil, "", err
	}
	intent.Token = res.Token
	intent.Status = model.PaymentStatusInitialized

	u.log.Info().
		Str("session_id", intent.SessionID).
		Str("plan", string(plan)).
		Str("period", string(period)).
		Int64("amount", amount).
		Msg("payment intent initialized")
	return intent, res.RedirectURL, nil
}

// closeOrphanedRegistration closes an intent whose gateway registration
// succeeded but whose follow-up persistence failed. The intent must not stay
// pending after a known registration outcome; the gateway transaction is an
// orphan, so its token is logged for manual follow-up.
func (u *checkoutUC) closeOrphanedRegistration(ctx context.Context, intent *model.PaymentIntent, token string) {
	if terr := u.payments.TransitionStatus(ctx, nil, intent.SessionID, model.PaymentStatusPending, model.PaymentStatusFailed, "", nil); terr != nil {
		u.log.Error().Err(terr).
			Str("session_id", intent.SessionID).
			Str("token", token).
			Msg("failed to close intent after persistence error, gateway transaction orphaned")
		return
	}
	intent.Status = model.PaymentStatusFailed
	u.log.Error().
		Str("session_id", intent.SessionID).
		Str("token", token).
		Msg("closed intent after persistence error, gateway transaction orphaned")
}

func (u *checkoutUC) FindIntent(ctx context.Context, principal model.Principal, sessionID string) (*model.PaymentIntent, error) {
	intent, err := u.payments.FindBySessionID(ctx, nil, sessionID)
	if err != nil {
		return nil, err
	}
	// Ownership is part of lookup: leaking other accounts' intents is a 404.
	if intent.AccountID != principal.AccountID {
		return nil, domain.ErrNotFound
	}
	return intent, nil
}
