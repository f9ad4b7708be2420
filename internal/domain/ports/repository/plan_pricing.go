package repository

import (
	"context"

	"finance-tracker/internal/domain/model"
)

type PlanPricingRepository interface {
	// Save upserts on (plan, currency); the unique pair constraint keeps at
	// most one row per pair.
	Save(ctx context.Context, tx Tx, p *model.PlanPricing) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PlanPricing, error)
	// FindActive returns the active row for the pair, newest update first so
	// resolution stays deterministic even if duplicates ever slip in.
	FindActive(ctx context.Context, tx Tx, plan model.Plan, currency string) (*model.PlanPricing, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.PlanPricing, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.PlanPricing, error)
}
