package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// Subscription is the one-per-user entitlement record. Expiry is lazy: nothing
// flips the stored status when ExpiresAt passes, so read paths that gate
// premium access must go through IsEffectivelyExpired / EffectiveStatus
// instead of trusting Status literally.
type Subscription struct {
	ID        string // UUID
	UserID    string // unique, at most one subscription per user
	Plan      Plan
	Status    SubscriptionStatus
	ExpiresAt time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsEffectivelyExpired reports whether the subscription should be treated as
// expired at the given instant, regardless of the stored status. A cancelled
// subscription keeps access until its expiry.
func (s *Subscription) IsEffectivelyExpired(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusCancelled:
		return !s.ExpiresAt.After(now)
	case SubscriptionStatusExpired:
		return true
	}
	return false
}

// EffectiveStatus maps the stored status through lazy expiry.
func (s *Subscription) EffectiveStatus(now time.Time) SubscriptionStatus {
	if s.Status == SubscriptionStatusActive && s.IsEffectivelyExpired(now) {
		return SubscriptionStatusExpired
	}
	return s.Status
}

// HasAccess reports whether the subscription currently grants premium access.
func (s *Subscription) HasAccess(now time.Time) bool {
	switch s.Status {
	case SubscriptionStatusActive, SubscriptionStatusCancelled:
		return !s.IsEffectivelyExpired(now)
	}
	return false
}
