package model

import "time"

type Plan string

const (
	PlanProMonthly Plan = "PRO_MONTHLY"
	PlanProYearly  Plan = "PRO_YEARLY"
)

func (p Plan) Valid() bool {
	switch p {
	case PlanProMonthly, PlanProYearly:
		return true
	}
	return false
}

// PlanPricing is the active price of a (plan, currency) pair. Rows are never
// deleted, only deactivated, so historical payments keep a resolvable price.
type PlanPricing struct {
	ID           string // UUID
	Plan         Plan
	Currency     string // ISO 4217, 3 letters
	Amount       int64  // smallest currency unit (paise/cents)
	DurationDays int
	Active       bool
	Name         string
	Description  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func ValidCurrency(c string) bool {
	if len(c) != 3 {
		return false
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
