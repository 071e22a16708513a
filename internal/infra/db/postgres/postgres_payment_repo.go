package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/repository"
)

var _ repository.PaymentIntentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const intentColumns = `id, account_id, email, amount, currency, plan, period, session_id, token, order_id, status, created_at, completed_at`

func scanIntent(row pgx.Row) (*model.PaymentIntent, error) {
	p := &model.PaymentIntent{}
	if err := row.Scan(&p.ID, &p.AccountID, &p.Email, &p.Amount, &p.Currency, &p.Plan, &p.Period, &p.SessionID, &p.Token, &p.OrderID, &p.Status, &p.CreatedAt, &p.CompletedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	const q = `
INSERT INTO payment_intents (
  id, account_id, email, amount, currency, plan, period, session_id, token, order_id, status, created_at, completed_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13);`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, p.ID, p.AccountID, p.Email, p.Amount, p.Currency, p.Plan, p.Period, p.SessionID, p.Token, p.OrderID, p.Status, p.CreatedAt, p.CompletedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindBySessionID(ctx context.Context, tx repository.Tx, sessionID string) (*model.PaymentIntent, error) {
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE session_id=$1`
	if _, ok := tx.(pgx.Tx); ok {
		q += ` FOR UPDATE`
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	return scanIntent(ex.QueryRow(ctx, q+";", sessionID))
}

func (r *paymentRepo) SetToken(ctx context.Context, tx repository.Tx, id string, token string) error {
	const q = `UPDATE payment_intents SET token=$2 WHERE id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, id, token); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

// TransitionStatus is the storage-layer compare-and-swap: the row moves only
// if it still holds the expected status, so concurrent duplicate webhook
// deliveries race safely and exactly one writer wins.
func (r *paymentRepo) TransitionStatus(ctx context.Context, tx repository.Tx, sessionID string, from, to model.PaymentStatus, orderID string, completedAt *time.Time) error {
	const q = `
UPDATE payment_intents
SET status=$3,
    order_id=CASE WHEN $4 <> '' THEN $4 ELSE order_id END,
    completed_at=COALESCE($5, completed_at)
WHERE session_id=$1 AND status=$2;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, q, sessionID, from, to, orderID, completedAt)
	if err != nil {
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransitionConflict
	}
	return nil
}

func (r *paymentRepo) ListByStatusOlderThan(ctx context.Context, tx repository.Tx, status model.PaymentStatus, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + intentColumns + ` FROM payment_intents WHERE status=$1 AND created_at < $2 ORDER BY created_at ASC LIMIT $3;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, status, olderThan, limit)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PaymentIntent
	for rows.Next() {
		p, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) SumCompletedSince(ctx context.Context, tx repository.Tx, since time.Time) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount),0) FROM payment_intents WHERE status='completed' AND completed_at >= $1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := ex.QueryRow(ctx, q, since).Scan(&sum); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return sum, nil
}
