package repository

import (
	"context"

	"devportal-billing/internal/domain/model"
)

// SubscriptionRepository is the port for account billing state.
type SubscriptionRepository interface {
	FindByAccount(ctx context.Context, tx Tx, accountID string) (*model.Subscription, error)

	// Upsert writes the full subscription row for the account.
	Upsert(ctx context.Context, tx Tx, sub *model.Subscription) error
}
