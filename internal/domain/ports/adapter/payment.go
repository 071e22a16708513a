package adapter

import (
	"context"
	"fmt"

	"devportal-billing/internal/domain/model"
)

// GatewayError reports that a gateway call could not be concluded: transport
// failure, non-success HTTP status, or a malformed response. It is distinct
// from an explicit not-verified outcome and callers must not conflate the
// two; an inconclusive verification leaves the intent untouched so the
// gateway's redelivery can retry it.
type GatewayError struct {
	Op      string // "register" | "verify"
	Message string // upstream error message when available
	Err     error  // wrapped transport/decode error
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("gateway %s: %s", e.Op, e.Message)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// RegisterResult is the outcome of a successful transaction registration.
type RegisterResult struct {
	Token       string
	RedirectURL string
}

// PaymentGateway is the hex port for the external payment provider.
// Calls are blocking, timeout-bounded and never retried inside the client;
// retrying a register call could create a duplicate charge.
type PaymentGateway interface {
	Name() string

	// Register creates a transaction at the gateway for the given intent and
	// returns the opaque token plus the hosted-checkout redirect URL.
	Register(ctx context.Context, intent *model.PaymentIntent) (RegisterResult, error)

	// Verify confirms a settled transaction. (false, nil) means the gateway
	// explicitly reported the transaction not verified; a *GatewayError means
	// the answer is unknown and the caller should arrange a retry.
	Verify(ctx context.Context, sessionID string, amount int64, orderID string) (bool, error)

	// LookupOrder fetches the gateway-assigned order id for one of our
	// session ids. Used by the reconciler when the settlement notification
	// was lost entirely; domain.ErrNotFound when the gateway has no settled
	// transaction for the session.
	LookupOrder(ctx context.Context, sessionID string) (string, error)
}
