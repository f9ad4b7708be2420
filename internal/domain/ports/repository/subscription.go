package repository

import (
	"context"

	"finance-tracker/internal/domain/model"
)

type SubscriptionRepository interface {
	// Save upserts by id. The unique constraint on user_id maps to
	// ErrAlreadyExists when a second row is created for the same user.
	Save(ctx context.Context, tx Tx, s *model.Subscription) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Subscription, error)
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	// MarkCancelled flips status to CANCELLED in place, touching nothing
	// else, so a renewal racing it cannot have its expires_at overwritten.
	// Returns false when the row is already cancelled.
	MarkCancelled(ctx context.Context, tx Tx, id string) (bool, error)
}
