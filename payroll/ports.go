package payroll

import (
	"context"
	"time"
)

// =============================================================================
// CONSUMED PORTS
// =============================================================================

// WorkSessionSource returns the sessions of an employee-month ordered by
// start ascending. Sessions that start or end inside the month are included
// even when the other endpoint falls outside it.
type WorkSessionSource interface {
	Sessions(ctx context.Context, employeeID EmployeeID, year int, month time.Month) ([]WorkSession, error)
}

// CompensationPlanSource returns the active plan as a tagged PlanResult.
// A missing plan is NotConfigured, never an error.
type CompensationPlanSource interface {
	ActivePlan(ctx context.Context, employeeID EmployeeID) (PlanResult, error)
}

// =============================================================================
// PRODUCED PORTS
// =============================================================================

// CompensatoryGranter records compensatory days. Granting is idempotent per
// (employee, date, reason): a duplicate returns created=false and the
// existing grant.
type CompensatoryGranter interface {
	GrantCompensatoryDay(ctx context.Context, employeeID EmployeeID, date time.Time, reason CompensatoryReason) (bool, CompensatoryDayGrant, error)
}

// PayrollResultSink persists calculation output with idempotent upserts keyed
// by (employee, date) and (employee, year, month). The stored output of a
// month depends only on its last calculation.
type PayrollResultSink interface {
	CompensatoryGranter

	// ReplaceDaily upserts days and removes the employee's stored days of
	// the month that are not among them.
	ReplaceDaily(ctx context.Context, employeeID EmployeeID, year int, month time.Month, days []DailyResult) error
	SaveMonthly(ctx context.Context, result MonthlyResult) error

	// ClearMonth removes the stored daily and monthly results of a month.
	ClearMonth(ctx context.Context, employeeID EmployeeID, year int, month time.Month) error
}

// Observer receives calculation events. metrics.Manager implements it.
type Observer interface {
	CalculationFinished(status OutcomeStatus, elapsed time.Duration)
	HolidayFallback()
	ViolationsReported(violations []LegalViolation)
	MinimumWageApplied()
	SessionsSkipped(n int)
}

type nopObserver struct{}

func (nopObserver) CalculationFinished(OutcomeStatus, time.Duration) {}
func (nopObserver) HolidayFallback()                                {}
func (nopObserver) ViolationsReported([]LegalViolation)             {}
func (nopObserver) MinimumWageApplied()                             {}
func (nopObserver) SessionsSkipped(int)                             {}
