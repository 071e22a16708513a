package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusTrial   SubscriptionStatus = "trial"
	SubscriptionStatusActive  SubscriptionStatus = "active"
	SubscriptionStatusExpired SubscriptionStatus = "expired"
)

// Subscription is the billing state of a developer account. It is mutated
// only as a side effect of a PaymentIntent reaching completed.
type Subscription struct {
	AccountID string
	Plan      PlanType
	Status    SubscriptionStatus
	PeriodEnd time.Time
	UpdatedAt time.Time
}

// ExtendedPeriodEnd computes the new period end for a settled payment:
// calendar month or calendar year from now, never a 30/365-day approximation.
func ExtendedPeriodEnd(now time.Time, period BillingPeriod) time.Time {
	if period == PeriodYearly {
		return now.AddDate(1, 0, 0)
	}
	return now.AddDate(0, 1, 0)
}
