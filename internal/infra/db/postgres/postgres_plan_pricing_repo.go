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

const planPricingColumns = `id, plan, currency, amount, duration_days, active, name, description, created_at, updated_at`

type PgPlanPricingRepo struct {
	pool *pgxpool.Pool
}

var _ repository.PlanPricingRepository = (*PgPlanPricingRepo)(nil)

func NewPgPlanPricingRepo(pool *pgxpool.Pool) *PgPlanPricingRepo {
	return &PgPlanPricingRepo{pool: pool}
}

func (r *PgPlanPricingRepo) Save(ctx context.Context, tx repository.Tx, pp *model.PlanPricing) error {
	query := `
INSERT INTO plan_pricing (` + planPricingColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (plan, currency) DO UPDATE SET
	amount = EXCLUDED.amount,
	duration_days = EXCLUDED.duration_days,
	active = EXCLUDED.active,
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	updated_at = now()`
	_, err := execSQL(ctx, tx, r.pool, query,
		pp.ID, pp.Plan, pp.Currency, pp.Amount, pp.DurationDays, pp.Active,
		pp.Name, pp.Description, pp.CreatedAt, pp.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PgPlanPricingRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PlanPricing, error) {
	row, err := pickRow(ctx, tx, r.pool, `SELECT `+planPricingColumns+` FROM plan_pricing WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return scanPlanPricing(row)
}

// FindActive returns the single active pricing row for a plan/currency
// pair. Ordering by updated_at keeps the result deterministic should
// migrations ever leave more than one active row behind.
func (r *PgPlanPricingRepo) FindActive(ctx context.Context, tx repository.Tx, plan model.Plan, currency string) (*model.PlanPricing, error) {
	query := `SELECT ` + planPricingColumns + `
FROM plan_pricing
WHERE plan = $1 AND currency = $2 AND active
ORDER BY updated_at DESC
LIMIT 1`
	row, err := pickRow(ctx, tx, r.pool, query, plan, currency)
	if err != nil {
		return nil, err
	}
	return scanPlanPricing(row)
}

func (r *PgPlanPricingRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.PlanPricing, error) {
	return r.list(ctx, tx, `SELECT `+planPricingColumns+` FROM plan_pricing WHERE active ORDER BY plan, currency`)
}

func (r *PgPlanPricingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PlanPricing, error) {
	return r.list(ctx, tx, `SELECT `+planPricingColumns+` FROM plan_pricing ORDER BY plan, currency`)
}

func (r *PgPlanPricingRepo) list(ctx context.Context, tx repository.Tx, query string) ([]*model.PlanPricing, error) {
	rows, err := queryRows(ctx, tx, r.pool, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.PlanPricing
	for rows.Next() {
		pp, err := scanPlanPricing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

func scanPlanPricing(row pgx.Row) (*model.PlanPricing, error) {
	var pp model.PlanPricing
	err := row.Scan(&pp.ID, &pp.Plan, &pp.Currency, &pp.Amount, &pp.DurationDays,
		&pp.Active, &pp.Name, &pp.Description, &pp.CreatedAt, &pp.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &pp, nil
}
