// File: internal/usecase/subscription_uc.go
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
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase owns the subscription lifecycle:
//
//	NONE -> PENDING -> ACTIVE -> EXPIRED | CANCELLED
//
// EnsurePending and Activate take a Tx handle because the payment orchestrator
// runs them inside the same transaction as the payment write; passing
// repository.NoTX runs them standalone.
type SubscriptionUseCase interface {
	EnsurePending(ctx context.Context, tx repository.Tx, userID string, plan model.Plan) (*model.Subscription, error)
	Activate(ctx context.Context, tx repository.Tx, subscriptionID string, plan model.Plan, durationDays int, now time.Time) (*model.Subscription, error)
	Cancel(ctx context.Context, userID string) (*model.Subscription, error)
	Current(ctx context.Context, userID string) (*model.Subscription, error)
}

type subscriptionUC struct {
	subs repository.SubscriptionRepository
	log  *zerolog.Logger
}

func NewSubscriptionUseCase(subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{subs: subs, log: logger}
}

// EnsurePending returns the user's subscription, creating a PENDING one with a
// placeholder expiry if none exists yet. An existing subscription is returned
// as-is regardless of status; a plan change is applied on activation
// (replace-on-activation), never here.
func (u *subscriptionUC) EnsurePending(ctx context.Context, tx repository.Tx, userID string, plan model.Plan) (*model.Subscription, error) {
	if userID == "" || !plan.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	s, err := u.subs.FindByUser(ctx, tx, userID)
	if err == nil {
		return s, nil
	}
	if err != domain.ErrNotFound {
		return nil, err
	}
	now := time.Now()
	s = &model.Subscription{
		ID:        uuid.NewString(),
		UserID:    userID,
		Plan:      plan,
		Status:    model.SubscriptionStatusPending,
		ExpiresAt: now, // placeholder until an activating payment completes
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := u.subs.Save(ctx, tx, s); err != nil {
		if err == domain.ErrAlreadyExists {
			// Lost a create race; the winner's row is the subscription.
			return u.subs.FindByUser(ctx, tx, userID)
		}
		return nil, err
	}
	return s, nil
}

// Activate transitions the subscription to ACTIVE for the completed payment's
// plan. Renewal is additive: paying before expiry extends from the current
// expiry, not from now, so users never lose paid-for time. That holds for a
// CANCELLED subscription too, since cancelling keeps access until expiry.
func (u *subscriptionUC) Activate(ctx context.Context, tx repository.Tx, subscriptionID string, plan model.Plan, durationDays int, now time.Time) (*model.Subscription, error) {
	if subscriptionID == "" || !plan.Valid() || durationDays <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	s, err := u.subs.FindByID(ctx, tx, subscriptionID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	base := now
	switch s.Status {
	case model.SubscriptionStatusActive, model.SubscriptionStatusCancelled:
		if s.ExpiresAt.After(now) {
			base = s.ExpiresAt
		}
	}
	s.Plan = plan
	s.Status = model.SubscriptionStatusActive
	s.ExpiresAt = base.AddDate(0, 0, durationDays)
	s.UpdatedAt = now
	if err := u.subs.Save(ctx, tx, s); err != nil {
		return nil, err
	}
	u.log.Info().
		Str("subscription_id", s.ID).
		Str("user_id", s.UserID).
		Str("plan", string(plan)).
		Time("expires_at", s.ExpiresAt).
		Msg("subscription activated")
	return s, nil
}

// Cancel marks the subscription CANCELLED but leaves ExpiresAt untouched:
// access persists until expiry. Cancelling twice is a no-op. The status flip
// is a guarded single-column update rather than a row upsert, so an
// activation landing between the read and the write keeps its expires_at.
func (u *subscriptionUC) Cancel(ctx context.Context, userID string) (*model.Subscription, error) {
	s, err := u.subs.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	if s.Status != model.SubscriptionStatusCancelled {
		if _, err := u.subs.MarkCancelled(ctx, repository.NoTX, s.ID); err != nil {
			return nil, err
		}
		u.log.Info().Str("subscription_id", s.ID).Str("user_id", userID).Msg("subscription cancelled")
	}
	return u.subs.FindByUser(ctx, repository.NoTX, userID)
}

func (u *subscriptionUC) Current(ctx context.Context, userID string) (*model.Subscription, error) {
	s, err := u.subs.FindByUser(ctx, repository.NoTX, userID)
	if err != nil {
		if err == domain.ErrNotFound {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return s, nil
}
