package repository

import (
	"context"
	"time"

	"devportal-billing/internal/domain/model"
)

// PaymentIntentRepository is the port for the payment intent store. It is the
// sole source of truth for idempotency: TransitionStatus is a storage-layer
// conditional write so concurrent duplicate webhook deliveries race safely.
type PaymentIntentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentIntent) error
	FindBySessionID(ctx context.Context, tx Tx, sessionID string) (*model.PaymentIntent, error)

	// SetToken records the gateway token obtained at registration.
	SetToken(ctx context.Context, tx Tx, id string, token string) error

	// TransitionStatus updates the intent's status to `to` only if the current
	// status equals `from` (compare-and-swap). orderID and completedAt are
	// recorded when non-zero. Returns domain.ErrTransitionConflict when the
	// conditional write matched no row.
	TransitionStatus(ctx context.Context, tx Tx, sessionID string, from, to model.PaymentStatus, orderID string, completedAt *time.Time) error

	// ListByStatusOlderThan feeds the reconciler and expiry sweep.
	ListByStatusOlderThan(ctx context.Context, tx Tx, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentIntent, error)

	// SumCompletedSince totals settled revenue in grosze.
	SumCompletedSince(ctx context.Context, tx Tx, since time.Time) (int64, error)
}
