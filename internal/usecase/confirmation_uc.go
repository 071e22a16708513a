package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
)

// TaskRunner decouples the confirmation side effect from the webhook path;
// satisfied by the worker pool.
type TaskRunner interface {
	Submit(task func(ctx context.Context) error) error
}

// ConfirmationDispatcher fires the post-activation confirmation message.
type ConfirmationDispatcher interface {
	Dispatch(intent *model.PaymentIntent, sub *model.Subscription)
}

var _ ConfirmationDispatcher = (*confirmationUC)(nil)

type confirmationUC struct {
	sender adapter.ConfirmationSender
	runner TaskRunner
	log    *zerolog.Logger
}

func NewConfirmationDispatcher(sender adapter.ConfirmationSender, runner TaskRunner, logger *zerolog.Logger) *confirmationUC {
	compLog := logger.With().Str("component", "ConfirmationUC").Logger()
	return &confirmationUC{sender: sender, runner: runner, log: &compLog}
}

// Dispatch hands delivery to the worker pool. One attempt; success or failure
// is logged and never raised back into the caller's response path.
func (u *confirmationUC) Dispatch(intent *model.PaymentIntent, sub *model.Subscription) {
	if intent.Email == "" {
		u.log.Warn().Str("session_id", intent.SessionID).Msg("no email on intent, skipping confirmation")
		return
	}
	task := func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := u.sender.SendPaymentConfirmation(ctx, intent.Email, sub, intent); err != nil {
			u.log.Error().Err(err).Str("session_id", intent.SessionID).Msg("confirmation delivery failed")
			return err
		}
		u.log.Info().Str("session_id", intent.SessionID).Msg("confirmation delivered")
		return nil
	}
	if err := u.runner.Submit(task); err != nil {
		u.log.Error().Err(err).Str("session_id", intent.SessionID).Msg("confirmation dispatch dropped")
	}
}
