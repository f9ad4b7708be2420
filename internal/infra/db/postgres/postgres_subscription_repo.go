package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
)

const subscriptionColumns = `id, user_id, plan, status, expires_at, created_at, updated_at`

type PgSubscriptionRepo struct {
	pool *pgxpool.Pool
}

var _ repository.SubscriptionRepository = (*PgSubscriptionRepo)(nil)

func NewPgSubscriptionRepo(pool *pgxpool.Pool) *PgSubscriptionRepo {
	return &PgSubscriptionRepo{pool: pool}
}

func (r *PgSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	query := `
INSERT INTO subscriptions (` + subscriptionColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
	plan = EXCLUDED.plan,
	status = EXCLUDED.status,
	expires_at = EXCLUDED.expires_at,
	updated_at = now()`
	_, err := execSQL(ctx, tx, r.pool, query,
		s.ID, s.UserID, s.Plan, s.Status, s.ExpiresAt, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PgSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, tx, r.pool, query, id)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *PgSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, tx, r.pool, query, userID)
	if err != nil {
		return nil, err
	}
	return scanSubscription(row)
}

func (r *PgSubscriptionRepo) MarkCancelled(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	query := `
UPDATE subscriptions
SET status = $1, updated_at = now()
WHERE id = $2 AND status <> $1`
	tag, err := execSQL(ctx, tx, r.pool, query, model.SubscriptionStatusCancelled, id)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() >= 1, nil
}

func scanSubscription(row pgx.Row) (*model.Subscription, error) {
	var s model.Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.Plan, &s.Status, &s.ExpiresAt, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &s, nil
}
