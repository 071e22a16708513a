package usecase_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/usecase"
)

type settlementDeps struct {
	payments  *memPaymentRepo
	subs      *memSubRepo
	gateway   *mockGateway
	deduper   *mockDeduper
	confirmer *mockDispatcher
	uc        usecase.SettlementUseCase
}

func newSettlementDeps() *settlementDeps {
	d := &settlementDeps{
		payments:  newMemPaymentRepo(),
		subs:      newMemSubRepo(),
		gateway:   &mockGateway{},
		deduper:   newMockDeduper(),
		confirmer: &mockDispatcher{},
	}
	d.uc = usecase.NewSettlementUseCase(d.payments, d.subs, d.gateway, mockTxManager{}, d.deduper, d.confirmer, newTestLogger())
	return d
}

func (d *settlementDeps) seedInitialized(t *testing.T) *model.PaymentIntent {
	t.Helper()
	intent := &model.PaymentIntent{
		ID:        "pay-1",
		AccountID: "acc-1",
		Email:     "dev@example.com",
		Amount:    9900,
		Currency:  model.CurrencyPLN,
		Plan:      model.PlanStarter,
		Period:    model.PeriodMonthly,
		SessionID: "sess-1",
		Token:     "tkn-1",
		Status:    model.PaymentStatusInitialized,
		CreatedAt: time.Now(),
	}
	if err := d.payments.Save(context.Background(), nil, intent); err != nil {
		t.Fatal(err)
	}
	return intent
}

func notificationFor(intent *model.PaymentIntent) model.Notification {
	return model.Notification{
		SessionID: intent.SessionID,
		OrderID:   "ord-77",
		Amount:    intent.Amount,
		Currency:  intent.Currency,
	}
}

func TestSettlementUseCase_Settle(t *testing.T) {
	ctx := context.Background()

	t.Run("completes the intent and activates the subscription", func(t *testing.T) {
		// --- Arrange ---
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)
		before := time.Now()

		// --- Act ---
		applied, err := deps.uc.Settle(ctx, notificationFor(intent))

		// --- Assert ---
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !applied {
			t.Fatal("expected the settlement to be applied")
		}
		stored, _ := deps.payments.FindBySessionID(ctx, nil, intent.SessionID)
		if stored.Status != model.PaymentStatusCompleted {
			t.Errorf("expected status completed, got %s", stored.Status)
		}
		if stored.OrderID != "ord-77" {
			t.Errorf("expected order id to be recorded, got %q", stored.OrderID)
		}
		if stored.CompletedAt == nil {
			t.Error("expected a completion timestamp")
		}

		sub, err := deps.subs.FindByAccount(ctx, nil, intent.AccountID)
		if err != nil {
			t.Fatalf("expected an activated subscription: %v", err)
		}
		if sub.Status != model.SubscriptionStatusActive {
			t.Errorf("expected status active, got %s", sub.Status)
		}
		if sub.Plan != model.PlanStarter {
			t.Errorf("expected plan starter, got %s", sub.Plan)
		}
		wantEnd := before.AddDate(0, 1, 0)
		if sub.PeriodEnd.Before(wantEnd.Add(-time.Minute)) || sub.PeriodEnd.After(wantEnd.Add(time.Minute)) {
			t.Errorf("expected period end one calendar month out, got %v", sub.PeriodEnd)
		}
		if deps.confirmer.count() != 1 {
			t.Errorf("expected exactly one confirmation dispatch, got %d", deps.confirmer.count())
		}
	})

	t.Run("replayed notification is acknowledged without mutation", func(t *testing.T) {
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)
		n := notificationFor(intent)

		if _, err := deps.uc.Settle(ctx, n); err != nil {
			t.Fatal(err)
		}
		firstSub, _ := deps.subs.FindByAccount(ctx, nil, intent.AccountID)

		applied, err := deps.uc.Settle(ctx, n)
		if err != nil {
			t.Fatalf("replay must be acknowledged, got %v", err)
		}
		if applied {
			t.Error("replay must not re-apply the settlement")
		}
		secondSub, _ := deps.subs.FindByAccount(ctx, nil, intent.AccountID)
		if !firstSub.PeriodEnd.Equal(secondSub.PeriodEnd) {
			t.Error("replay must not extend the subscription period again")
		}
		if deps.subs.upserts != 1 {
			t.Errorf("expected exactly one subscription write, got %d", deps.subs.upserts)
		}
		if deps.confirmer.count() != 1 {
			t.Errorf("expected exactly one confirmation dispatch, got %d", deps.confirmer.count())
		}
	})

	t.Run("explicit verification failure is terminal and leaves the subscription untouched", func(t *testing.T) {
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)
		deps.gateway.VerifyFunc = func(context.Context, string, int64, string) (bool, error) {
			return false, nil
		}

		_, err := deps.uc.Settle(ctx, notificationFor(intent))
		if !errors.Is(err, domain.ErrVerificationFailed) {
			t.Fatalf("expected ErrVerificationFailed, got %v", err)
		}
		stored, _ := deps.payments.FindBySessionID(ctx, nil, intent.SessionID)
		if stored.Status != model.PaymentStatusFailed {
			t.Errorf("expected status failed, got %s", stored.Status)
		}
		if _, err := deps.subs.FindByAccount(ctx, nil, intent.AccountID); !errors.Is(err, domain.ErrNotFound) {
			t.Error("subscription must stay untouched on a failed verification")
		}
		if deps.confirmer.count() != 0 {
			t.Error("no confirmation may be dispatched for a failed settlement")
		}
	})

	t.Run("amount mismatch never completes, even when verified", func(t *testing.T) {
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)

		n := notificationFor(intent)
		n.Amount = 19900 // professional price replayed against a starter intent
		if _, err := deps.uc.Settle(ctx, n); !errors.Is(err, domain.ErrVerificationFailed) {
			t.Fatalf("expected ErrVerificationFailed, got %v", err)
		}
		stored, _ := deps.payments.FindBySessionID(ctx, nil, intent.SessionID)
		if stored.Status != model.PaymentStatusCompleted && stored.Status != model.PaymentStatusFailed {
			t.Fatalf("unexpected status %s", stored.Status)
		}
		if stored.Status == model.PaymentStatusCompleted {
			t.Error("a mismatched amount must never complete the intent")
		}
	})

	t.Run("inconclusive verification leaves the intent initialized for redelivery", func(t *testing.T) {
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)
		deps.gateway.VerifyFunc = func(context.Context, string, int64, string) (bool, error) {
			return false, &adapter.GatewayError{Op: "verify", Err: context.DeadlineExceeded}
		}

		_, err := deps.uc.Settle(ctx, notificationFor(intent))
		var gwErr *adapter.GatewayError
		if !errors.As(err, &gwErr) {
			t.Fatalf("expected the GatewayError to surface, got %v", err)
		}
		stored, _ := deps.payments.FindBySessionID(ctx, nil, intent.SessionID)
		if stored.Status != model.PaymentStatusInitialized {
			t.Errorf("an inconclusive verification must not move the intent, got %s", stored.Status)
		}
	})

	t.Run("unknown session is rejected", func(t *testing.T) {
		deps := newSettlementDeps()
		n := model.Notification{SessionID: "ghost", OrderID: "ord-1", Amount: 9900, Currency: "PLN"}
		if _, err := deps.uc.Settle(ctx, n); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("structurally incomplete notifications are rejected", func(t *testing.T) {
		deps := newSettlementDeps()
		bad := []model.Notification{
			{OrderID: "ord-1", Amount: 9900, Currency: "PLN"},
			{SessionID: "s", Amount: 9900, Currency: "PLN"},
			{SessionID: "s", OrderID: "ord-1", Currency: "PLN"},
			{SessionID: "s", OrderID: "ord-1", Amount: -5, Currency: "PLN"},
			{SessionID: "s", OrderID: "ord-1", Amount: 9900},
		}
		for i, n := range bad {
			if _, err := deps.uc.Settle(ctx, n); !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("case %d: expected ErrInvalidArgument, got %v", i, err)
			}
		}
	})

	t.Run("dedupe fast path short-circuits before the store", func(t *testing.T) {
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)
		deps.deduper.MarkProcessed(ctx, intent.SessionID)

		applied, err := deps.uc.Settle(ctx, notificationFor(intent))
		if err != nil || applied {
			t.Fatalf("expected a silent no-op, got applied=%v err=%v", applied, err)
		}
		if deps.gateway.verifyCalls != 0 {
			t.Error("dedupe hit must not reach the gateway")
		}
	})

	t.Run("concurrent duplicates apply exactly once", func(t *testing.T) {
		deps := newSettlementDeps()
		// no dedupe fast path: force every delivery through the CAS
		deps.uc = usecase.NewSettlementUseCase(deps.payments, deps.subs, deps.gateway, mockTxManager{}, nil, deps.confirmer, newTestLogger())
		intent := deps.seedInitialized(t)
		n := notificationFor(intent)

		const workers = 8
		var wg sync.WaitGroup
		results := make(chan bool, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				applied, err := deps.uc.Settle(ctx, n)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				results <- applied
			}()
		}
		wg.Wait()
		close(results)

		appliedCount := 0
		for applied := range results {
			if applied {
				appliedCount++
			}
		}
		if appliedCount != 1 {
			t.Errorf("expected exactly one winning delivery, got %d", appliedCount)
		}
		if deps.subs.upserts != 1 {
			t.Errorf("expected exactly one subscription write, got %d", deps.subs.upserts)
		}
	})

	t.Run("terminal states are immutable", func(t *testing.T) {
		deps := newSettlementDeps()
		intent := deps.seedInitialized(t)
		n := notificationFor(intent)
		if _, err := deps.uc.Settle(ctx, n); err != nil {
			t.Fatal(err)
		}

		// A later not-verified answer must not flip a completed intent.
		deps.gateway.VerifyFunc = func(context.Context, string, int64, string) (bool, error) {
			return false, nil
		}
		deps.deduper = newMockDeduper() // defeat the fast path
		deps.uc = usecase.NewSettlementUseCase(deps.payments, deps.subs, deps.gateway, mockTxManager{}, deps.deduper, deps.confirmer, newTestLogger())
		if _, err := deps.uc.Settle(ctx, n); err != nil {
			t.Fatalf("terminal intent must be acknowledged, got %v", err)
		}
		stored, _ := deps.payments.FindBySessionID(ctx, nil, intent.SessionID)
		if stored.Status != model.PaymentStatusCompleted {
			t.Errorf("terminal status must not change, got %s", stored.Status)
		}
	})
}
