package p24

import (
	"context"
	"fmt"

	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopGateway)(nil)

// NoopGateway substitutes the real provider in dev mode: every registration
// succeeds with a deterministic token and every verification reports success.
type NoopGateway struct{}

func NewNoopGateway() *NoopGateway { return &NoopGateway{} }

func (*NoopGateway) Name() string { return "noop" }

func (*NoopGateway) Register(_ context.Context, intent *model.PaymentIntent) (adapter.RegisterResult, error) {
	token := "noop-" + intent.SessionID
	return adapter.RegisterResult{
		Token:       token,
		RedirectURL: fmt.Sprintf("http://localhost/trnRequest/%s", token),
	}, nil
}

func (*NoopGateway) Verify(_ context.Context, _ string, _ int64, _ string) (bool, error) {
	return true, nil
}

func (*NoopGateway) LookupOrder(_ context.Context, sessionID string) (string, error) {
	return "noop-order-" + sessionID, nil
}
