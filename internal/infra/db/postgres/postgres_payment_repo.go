package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
)

const paymentColumns = `id, user_id, subscription_id, plan, provider, amount, currency,
	duration_days, receipt, provider_order_id, provider_payment_id, status,
	failure_reason, paid_at, created_at, updated_at`

type PgPaymentRepo struct {
	pool *pgxpool.Pool
}

var _ repository.PaymentRepository = (*PgPaymentRepo)(nil)

func NewPgPaymentRepo(pool *pgxpool.Pool) *PgPaymentRepo {
	return &PgPaymentRepo{pool: pool}
}

func (r *PgPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	query := `
INSERT INTO payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
	subscription_id = EXCLUDED.subscription_id,
	provider_payment_id = EXCLUDED.provider_payment_id,
	status = EXCLUDED.status,
	failure_reason = EXCLUDED.failure_reason,
	paid_at = EXCLUDED.paid_at,
	updated_at = now()`
	_, err := execSQL(ctx, tx, r.pool, query,
		p.ID, p.UserID, p.SubscriptionID, p.Plan, p.Provider, p.Amount, p.Currency,
		p.DurationDays, p.Receipt, p.ProviderOrderID, p.ProviderPaymentID, p.Status,
		p.FailureReason, p.PaidAt, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *PgPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, tx, r.pool, query, id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *PgPaymentRepo) FindByProviderOrderID(ctx context.Context, tx repository.Tx, providerOrderID string) (*model.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_order_id = $1`
	if tx != nil {
		query += ` FOR UPDATE`
	}
	row, err := pickRow(ctx, tx, r.pool, query, providerOrderID)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

// MarkCompleted transitions a pending payment to COMPLETED, recording the
// provider payment reference. The status guard in the WHERE clause makes the
// transition first-writer-wins: a second caller sees ok=false. A unique
// violation on provider_payment_id means another payment row already claimed
// that reference.
func (r *PgPaymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, id, providerPaymentID string, paidAt time.Time) (bool, error) {
	query := `
UPDATE payments
SET status = $1, provider_payment_id = $2, paid_at = $3, updated_at = now()
WHERE id = $4 AND status = $5`
	tag, err := execSQL(ctx, tx, r.pool, query,
		model.PaymentStatusCompleted, providerPaymentID, paidAt, id, model.PaymentStatusPending)
	if err != nil {
		if isUniqueViolation(err) {
			return false, domain.ErrPaymentAlreadyClaimed
		}
		return false, err
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *PgPaymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, id, reason string) (bool, error) {
	query := `
UPDATE payments
SET status = $1, failure_reason = $2, updated_at = now()
WHERE id = $3 AND status = $4`
	tag, err := execSQL(ctx, tx, r.pool, query,
		model.PaymentStatusFailed, reason, id, model.PaymentStatusPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *PgPaymentRepo) MarkRefunded(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	query := `
UPDATE payments
SET status = $1, updated_at = now()
WHERE id = $2 AND status = $3`
	tag, err := execSQL(ctx, tx, r.pool, query,
		model.PaymentStatusRefunded, id, model.PaymentStatusCompleted)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() >= 1, nil
}

var paymentSortColumns = map[string]string{
	"created_at": "created_at",
	"amount":     "amount",
	"paid_at":    "paid_at",
}

func (r *PgPaymentRepo) List(ctx context.Context, tx repository.Tx, filter repository.PaymentFilter) ([]*model.Payment, int, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.Plan != "" {
		add("plan = $%d", filter.Plan)
	}
	if filter.From != nil {
		add("created_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("created_at < $%d", *filter.To)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	row, err := pickRow(ctx, tx, r.pool, `SELECT count(*) FROM payments`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	if err := row.Scan(&total); err != nil {
		return nil, 0, err
	}

	sortCol, ok := paymentSortColumns[filter.SortBy]
	if !ok {
		sortCol = "created_at"
	}
	order := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "ASC"
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	query := fmt.Sprintf(`SELECT %s FROM payments%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		paymentColumns, where, sortCol, order, limit, (page-1)*limit)

	rows, err := queryRows(ctx, tx, r.pool, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *PgPaymentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + paymentColumns + `
FROM payments
WHERE status = $1 AND created_at < $2
ORDER BY created_at ASC
LIMIT $3`
	rows, err := queryRows(ctx, tx, r.pool, query, model.PaymentStatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PgPaymentRepo) SumCompletedByPeriod(ctx context.Context, tx repository.Tx, period string) (map[string]int64, error) {
	switch period {
	case "week", "month", "year":
	default:
		return nil, domain.ErrInvalidArgument
	}
	query := `
SELECT currency, COALESCE(sum(amount), 0)
FROM payments
WHERE status = $1 AND paid_at >= date_trunc($2, now())
GROUP BY currency`
	rows, err := queryRows(ctx, tx, r.pool, query, model.PaymentStatusCompleted, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var currency string
		var sum int64
		if err := rows.Scan(&currency, &sum); err != nil {
			return nil, err
		}
		totals[currency] = sum
	}
	return totals, rows.Err()
}

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var p model.Payment
	err := row.Scan(
		&p.ID, &p.UserID, &p.SubscriptionID, &p.Plan, &p.Provider, &p.Amount, &p.Currency,
		&p.DurationDays, &p.Receipt, &p.ProviderOrderID, &p.ProviderPaymentID, &p.Status,
		&p.FailureReason, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
	}
	return &p, nil
}
