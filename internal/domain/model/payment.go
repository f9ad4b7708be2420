package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // order created, awaiting capture
	PaymentStatusCompleted PaymentStatus = "completed" // captured and reconciled
	PaymentStatusFailed    PaymentStatus = "failed"    // capture failed, abandoned, or amount mismatch
	PaymentStatusRefunded  PaymentStatus = "refunded"  // explicitly refunded after completion
)

type PaymentProvider string

const (
	ProviderRazorpay PaymentProvider = "razorpay"
	ProviderStripe   PaymentProvider = "stripe"
)

func (p PaymentProvider) Valid() bool {
	return p == ProviderRazorpay || p == ProviderStripe
}

// Payment is one row per attempted payment transaction; the immutable audit
// trail of money movement. ProviderOrderID is assigned exactly once at
// creation. ProviderPaymentID, once set, never changes and is globally unique:
// that uniqueness is the idempotency backbone between the synchronous verify
// call and the asynchronous webhook.
type Payment struct {
	ID                string // UUID
	UserID            string
	SubscriptionID    *string // set once a subscription row exists
	Plan              Plan
	Provider          PaymentProvider
	Amount            int64 // smallest currency unit, as charged
	Currency          string
	DurationDays      int    // snapshot of the pricing row at order time
	Receipt           string // internal receipt reference sent to the gateway
	ProviderOrderID   string
	ProviderPaymentID *string // nil until the gateway reports an actual payment
	Status            PaymentStatus
	FailureReason     *string
	PaidAt            *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
