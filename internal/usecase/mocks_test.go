package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/adapter"
	"devportal-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memPaymentRepo is an in-memory PaymentIntentRepository with the same
// compare-and-swap semantics as the Postgres implementation.
type memPaymentRepo struct {
	mu          sync.Mutex
	store       map[string]*model.PaymentIntent // by session id
	saveErr     error
	setTokenErr error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{store: make(map[string]*model.PaymentIntent)}
}

func (m *memPaymentRepo) Save(_ context.Context, _ repository.Tx, p *model.PaymentIntent) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[p.SessionID]; ok {
		return domain.ErrAlreadyExists
	}
	cp := *p
	m.store[p.SessionID] = &cp
	return nil
}

func (m *memPaymentRepo) FindBySessionID(_ context.Context, _ repository.Tx, sessionID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[sessionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPaymentRepo) SetToken(_ context.Context, _ repository.Tx, id string, token string) error {
	if m.setTokenErr != nil {
		return m.setTokenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.ID == id {
			p.Token = token
			return nil
		}
	}
	return domain.ErrNotFound
}

func (m *memPaymentRepo) TransitionStatus(_ context.Context, _ repository.Tx, sessionID string, from, to model.PaymentStatus, orderID string, completedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[sessionID]
	if !ok || p.Status != from {
		return domain.ErrTransitionConflict
	}
	p.Status = to
	if orderID != "" {
		p.OrderID = orderID
	}
	if completedAt != nil {
		t := *completedAt
		p.CompletedAt = &t
	}
	return nil
}

func (m *memPaymentRepo) ListByStatusOlderThan(_ context.Context, _ repository.Tx, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range m.store {
		if p.Status == status && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memPaymentRepo) SumCompletedSince(_ context.Context, _ repository.Tx, since time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum int64
	for _, p := range m.store {
		if p.Status == model.PaymentStatusCompleted && p.CompletedAt != nil && !p.CompletedAt.Before(since) {
			sum += p.Amount
		}
	}
	return sum, nil
}

// memSubRepo is an in-memory SubscriptionRepository.
type memSubRepo struct {
	mu    sync.Mutex
	store map[string]*model.Subscription
	// upserts counts writes so idempotency tests can assert exactly one.
	upserts int
}

func newMemSubRepo() *memSubRepo {
	return &memSubRepo{store: make(map[string]*model.Subscription)}
}

func (m *memSubRepo) FindByAccount(_ context.Context, _ repository.Tx, accountID string) (*model.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.store[accountID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSubRepo) Upsert(_ context.Context, _ repository.Tx, sub *model.Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.store[sub.AccountID] = &cp
	m.upserts++
	return nil
}

// mockGateway lets each test script the provider's behavior.
type mockGateway struct {
	RegisterFunc    func(ctx context.Context, intent *model.PaymentIntent) (adapter.RegisterResult, error)
	VerifyFunc      func(ctx context.Context, sessionID string, amount int64, orderID string) (bool, error)
	LookupOrderFunc func(ctx context.Context, sessionID string) (string, error)
	verifyCalls     int
}

func (g *mockGateway) Name() string { return "mock" }

func (g *mockGateway) Register(ctx context.Context, intent *model.PaymentIntent) (adapter.RegisterResult, error) {
	if g.RegisterFunc != nil {
		return g.RegisterFunc(ctx, intent)
	}
	return adapter.RegisterResult{Token: "tkn-" + intent.SessionID, RedirectURL: "https://gw.example/trnRequest/tkn-" + intent.SessionID}, nil
}

func (g *mockGateway) Verify(ctx context.Context, sessionID string, amount int64, orderID string) (bool, error) {
	g.verifyCalls++
	if g.VerifyFunc != nil {
		return g.VerifyFunc(ctx, sessionID, amount, orderID)
	}
	return true, nil
}

func (g *mockGateway) LookupOrder(ctx context.Context, sessionID string) (string, error) {
	if g.LookupOrderFunc != nil {
		return g.LookupOrderFunc(ctx, sessionID)
	}
	return "", domain.ErrNotFound
}

// mockTxManager runs the callback without a real transaction; the in-memory
// repos take a nil Tx.
type mockTxManager struct{}

func (mockTxManager) WithTx(ctx context.Context, _ pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}

// mockDispatcher records dispatched confirmations.
type mockDispatcher struct {
	mu    sync.Mutex
	calls []string // session ids
}

func (d *mockDispatcher) Dispatch(intent *model.PaymentIntent, _ *model.Subscription) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, intent.SessionID)
}

func (d *mockDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// mockDeduper is a scripted fast-path cache.
type mockDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newMockDeduper() *mockDeduper { return &mockDeduper{seen: make(map[string]bool)} }

func (d *mockDeduper) Seen(_ context.Context, sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen[sessionID]
}

func (d *mockDeduper) MarkProcessed(_ context.Context, sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[sessionID] = true
}
