package adapter

import (
	"context"

	"devportal-billing/internal/domain/model"
)

// ConfirmationSender delivers the post-activation confirmation message.
// Best effort: one attempt, outcome is logged by the caller, and a failure
// never reaches the webhook response path.
type ConfirmationSender interface {
	SendPaymentConfirmation(ctx context.Context, email string, sub *model.Subscription, intent *model.PaymentIntent) error
}
