package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"devportal-billing/internal/domain"
	"devportal-billing/internal/domain/model"
	"devportal-billing/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) FindByAccount(ctx context.Context, tx repository.Tx, accountID string) (*model.Subscription, error) {
	const q = `SELECT account_id, plan, status, period_end, updated_at FROM subscriptions WHERE account_id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	s := &model.Subscription{}
	if err := ex.QueryRow(ctx, q, accountID).Scan(&s.AccountID, &s.Plan, &s.Status, &s.PeriodEnd, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *subscriptionRepo) Upsert(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	const q = `
INSERT INTO subscriptions (account_id, plan, status, period_end, updated_at)
VALUES ($1,$2,$3,$4,$5)
ON CONFLICT (account_id) DO UPDATE SET
  plan=$2, status=$3, period_end=$4, updated_at=$5;`

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, sub.AccountID, sub.Plan, sub.Status, sub.PeriodEnd, sub.UpdatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
