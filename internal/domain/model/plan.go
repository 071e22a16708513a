package model

import "devportal-billing/internal/domain"

type PlanType string

const (
	PlanStarter      PlanType = "starter"
	PlanProfessional PlanType = "professional"
)

type BillingPeriod string

const (
	PeriodMonthly BillingPeriod = "monthly"
	PeriodYearly  BillingPeriod = "yearly"
)

// CurrencyPLN is the only currency the gateway contract covers.
const CurrencyPLN = "PLN"

// priceTable maps every sellable (plan, period) pair to its price in grosze.
var priceTable = map[PlanType]map[BillingPeriod]int64{
	PlanStarter:      {PeriodMonthly: 9_900, PeriodYearly: 99_000},
	PlanProfessional: {PeriodMonthly: 19_900, PeriodYearly: 199_000},
}

// PriceFor returns the charge amount for a plan/period selection.
// Any combination outside the fixed table is rejected before persistence
// or any gateway call.
func PriceFor(plan PlanType, period BillingPeriod) (int64, error) {
	periods, ok := priceTable[plan]
	if !ok {
		return 0, domain.ErrInvalidArgument
	}
	amount, ok := periods[period]
	if !ok {
		return 0, domain.ErrInvalidArgument
	}
	return amount, nil
}
