// File: internal/usecase/pricing_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/domain/model"
	"finance-tracker/internal/domain/ports/repository"
)

// Compile-time check
var _ PricingUseCase = (*pricingUC)(nil)

// PricingPatch carries admin updates; nil fields are left unchanged.
type PricingPatch struct {
	Amount       *int64
	DurationDays *int
	Active       *bool
	Name         *string
	Description  *string
}

type PricingUseCase interface {
	// Resolve returns the unique active pricing row for (plan, currency).
	// A missing price never falls back to another currency or a stale row.
	Resolve(ctx context.Context, plan model.Plan, currency string) (*model.PlanPricing, error)
	ListActive(ctx context.Context) ([]*model.PlanPricing, error)

	// Admin surface
	ListAll(ctx context.Context) ([]*model.PlanPricing, error)
	Create(ctx context.Context, plan model.Plan, currency string, amount int64, durationDays int, name, description string) (*model.PlanPricing, error)
	Update(ctx context.Context, id string, patch PricingPatch) (*model.PlanPricing, error)
}

type pricingUC struct {
	pricing repository.PlanPricingRepository
	log     *zerolog.Logger
}

func NewPricingUseCase(pricing repository.PlanPricingRepository, logger *zerolog.Logger) *pricingUC {
	return &pricingUC{pricing: pricing, log: logger}
}

func (u *pricingUC) Resolve(ctx context.Context, plan model.Plan, currency string) (*model.PlanPricing, error) {
	if !plan.Valid() || !model.ValidCurrency(currency) {
		return nil, domain.ErrInvalidArgument
	}
	p, err := u.pricing.FindActive(ctx, repository.NoTX, plan, currency)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrPricingNotFound
		}
		return nil, err
	}
	return p, nil
}

func (u *pricingUC) ListActive(ctx context.Context) ([]*model.PlanPricing, error) {
	return u.pricing.ListActive(ctx, repository.NoTX)
}

func (u *pricingUC) ListAll(ctx context.Context) ([]*model.PlanPricing, error) {
	return u.pricing.ListAll(ctx, repository.NoTX)
}

func (u *pricingUC) Create(ctx context.Context, plan model.Plan, currency string, amount int64, durationDays int, name, description string) (*model.PlanPricing, error) {
	if !plan.Valid() || !model.ValidCurrency(currency) || amount <= 0 || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	p := &model.PlanPricing{
		ID:           uuid.NewString(),
		Plan:         plan,
		Currency:     currency,
		Amount:       amount,
		DurationDays: durationDays,
		Active:       true,
		Name:         name,
		Description:  description,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := u.pricing.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	u.log.Info().Str("plan", string(plan)).Str("currency", currency).Int64("amount", amount).Msg("plan pricing created")
	return p, nil
}

func (u *pricingUC) Update(ctx context.Context, id string, patch PricingPatch) (*model.PlanPricing, error) {
	p, err := u.pricing.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if patch.Amount != nil {
		if *patch.Amount <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		p.Amount = *patch.Amount
	}
	if patch.DurationDays != nil {
		if *patch.DurationDays <= 0 {
			return nil, domain.ErrInvalidArgument
		}
		p.DurationDays = *patch.DurationDays
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	p.UpdatedAt = time.Now()
	if err := u.pricing.Save(ctx, repository.NoTX, p); err != nil {
		return nil, err
	}
	return p, nil
}
