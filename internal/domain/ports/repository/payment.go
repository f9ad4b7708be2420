package repository

import (
	"context"
	"time"

	"finance-tracker/internal/domain/model"
)

// PaymentFilter narrows admin payment listings. Zero values mean "no filter".
type PaymentFilter struct {
	UserID    string
	Status    model.PaymentStatus
	Plan      model.Plan
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
	SortBy    string // created_at | amount | paid_at
	SortOrder string // asc | desc
}

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Payment, error)
	FindByProviderOrderID(ctx context.Context, tx Tx, providerOrderID string) (*model.Payment, error)

	// MarkCompleted claims the provider payment id and completes the row in one
	// guarded update: it only fires while status is 'pending', and the unique
	// constraint on provider_payment_id surfaces as ErrPaymentAlreadyClaimed.
	// Returns false (no error) when the guard did not match.
	MarkCompleted(ctx context.Context, tx Tx, id, providerPaymentID string, paidAt time.Time) (bool, error)
	// MarkFailed records a terminal failure; no-op unless status is 'pending'.
	MarkFailed(ctx context.Context, tx Tx, id, reason string) (bool, error)
	// MarkRefunded moves a completed payment to 'refunded'; no-op otherwise.
	MarkRefunded(ctx context.Context, tx Tx, id string) (bool, error)

	List(ctx context.Context, tx Tx, f PaymentFilter) ([]*model.Payment, int, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, cutoff time.Time, limit int) ([]*model.Payment, error)
	// SumCompletedByPeriod returns completed amounts per currency since the
	// start of the given period ("week", "month", "year").
	SumCompletedByPeriod(ctx context.Context, tx Tx, period string) (map[string]int64, error)
}
