package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/repository"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionUseCase interface {
	// CurrentSubscription returns the principal's billing state for the
	// dashboard. A subscription whose period end has passed reads as expired
	// even before any background sweep rewrites the row.
	CurrentSubscription(ctx context.Context, principal model.Principal) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
	now  func() time.Time
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	compLog := logger.With().Str("component", "SubscriptionUC").Logger()
	return &subscriptionUC{subs: subs, log: &compLog, now: time.Now}
}

func (u *subscriptionUC) CurrentSubscription(ctx context.Context, principal model.Principal) (*model.Subscription, error) {
	if principal.AccountID == "" {
		return nil, domain.ErrUnauthenticated
	}
	sub, err := u.subs.FindByAccount(ctx, nil, principal.AccountID)
	if err != nil {
		return nil, err
	}
	if sub.Status == model.SubscriptionStatusActive && sub.PeriodEnd.Before(u.now()) {
		sub.Status = model.SubscriptionStatusExpired
	}
	return sub, nil
}
