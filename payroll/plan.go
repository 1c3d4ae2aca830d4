package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// COMPENSATION PLAN - Pure value, no behavior beyond derived fields
// =============================================================================

type PlanType string

const (
	PlanHourly  PlanType = "hourly"
	PlanMonthly PlanType = "monthly"
)

// MonthlyNormHours converts a monthly salary to an hourly rate.
var MonthlyNormHours = decimal.NewFromInt(182)

// CompensationPlan is the normalized plan the engine consumes. Exactly one of
// HourlyRate / MonthlyBase is positive, matching Type. Project plans and
// calculation-type conversion are resolved at ingestion (see factory).
type CompensationPlan struct {
	EmployeeID  EmployeeID      `json:"employee_id"`
	Type        PlanType        `json:"type"`
	HourlyRate  decimal.Decimal `json:"hourly_rate"`
	MonthlyBase decimal.Decimal `json:"monthly_base"`
	Currency    string          `json:"currency"`
}

// EffectiveHourlyRate is HourlyRate for hourly plans and
// MonthlyBase / 182 for monthly plans.
func (p CompensationPlan) EffectiveHourlyRate() decimal.Decimal {
	if p.Type == PlanMonthly {
		return p.MonthlyBase.Div(MonthlyNormHours)
	}
	return p.HourlyRate
}

// Validate checks the exactly-one-positive-amount invariant.
func (p CompensationPlan) Validate() error {
	switch p.Type {
	case PlanHourly:
		if !p.HourlyRate.IsPositive() {
			return fmt.Errorf("%w: hourly plan requires a positive hourly rate", ErrInvalidPlan)
		}
		if !p.MonthlyBase.IsZero() {
			return fmt.Errorf("%w: hourly plan must not carry a monthly base", ErrInvalidPlan)
		}
	case PlanMonthly:
		if !p.MonthlyBase.IsPositive() {
			return fmt.Errorf("%w: monthly plan requires a positive monthly base", ErrInvalidPlan)
		}
		if !p.HourlyRate.IsZero() {
			return fmt.Errorf("%w: monthly plan must not carry an hourly rate", ErrInvalidPlan)
		}
	default:
		return fmt.Errorf("%w: unknown plan type %q", ErrInvalidPlan, p.Type)
	}
	return nil
}

// =============================================================================
// PLAN RESULT - Tagged lookup outcome
// =============================================================================

type PlanStatus string

const (
	PlanConfigured    PlanStatus = "configured"
	PlanNotConfigured PlanStatus = "not_configured"
)

// PlanResult is what a CompensationPlanSource returns: either a configured
// plan or NotConfigured. The error return of the source is reserved for
// storage failures.
type PlanResult struct {
	Status PlanStatus
	Plan   CompensationPlan
	Reason string
}

func Configured(p CompensationPlan) PlanResult {
	return PlanResult{Status: PlanConfigured, Plan: p}
}

func NotConfigured(reason string) PlanResult {
	return PlanResult{Status: PlanNotConfigured, Reason: reason}
}

func (r PlanResult) IsConfigured() bool { return r.Status == PlanConfigured }
