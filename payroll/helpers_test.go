package payroll_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// ist is a fixed +03:00 zone so tests do not depend on the host tzdata.
var ist = time.FixedZone("IDT", 3*60*60)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "%s: want %s, got %s", field, want, got.String())
}

func at(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, ist)
}

func session(id string, start, end time.Time, breakMinutes int) payroll.WorkSession {
	return payroll.WorkSession{
		ID:           payroll.SessionID(id),
		EmployeeID:   "emp-1",
		Start:        start,
		End:          &end,
		BreakMinutes: breakMinutes,
	}
}

func hourlyPlan(rate string) payroll.CompensationPlan {
	return payroll.CompensationPlan{
		EmployeeID: "emp-1",
		Type:       payroll.PlanHourly,
		HourlyRate: dec(rate),
		Currency:   "ILS",
	}
}

// noHolidays knows no holidays and no Sabbath.
var noHolidays = payroll.HolidayLookupFunc(func(_ context.Context, date time.Time) (payroll.HolidayFact, error) {
	return payroll.HolidayFact{Date: payroll.DateOf(date)}, nil
})

// preciseSabbath returns the seasonal window as if it came from a precise source.
var preciseSabbath = payroll.HolidayLookupFunc(func(_ context.Context, date time.Time) (payroll.HolidayFact, error) {
	fact := payroll.EstimatedFact(date)
	fact.Estimated = false
	return fact, nil
})

// holidayOn marks one date as a paid holiday.
func holidayOn(day time.Time, name string) payroll.HolidayLookup {
	return payroll.HolidayLookupFunc(func(_ context.Context, date time.Time) (payroll.HolidayFact, error) {
		if payroll.DateKey(date) == payroll.DateKey(day) {
			return payroll.HolidayFact{Date: payroll.DateOf(date), Name: name, IsPaidHoliday: true}, nil
		}
		return payroll.HolidayFact{Date: payroll.DateOf(date)}, nil
	})
}

var failingLookup = payroll.HolidayLookupFunc(func(context.Context, time.Time) (payroll.HolidayFact, error) {
	return payroll.HolidayFact{}, errors.New("provider down")
})

func newCalculator(lookup payroll.HolidayLookup, opts ...payroll.DailyOption) *payroll.DailyCalculator {
	opts = append(opts, payroll.WithDailyLogger(logger.Nop()))
	return payroll.NewDailyCalculator(lookup, opts...)
}

// countingObserver records observer callbacks.
type countingObserver struct {
	fallbacks  int
	minWage    int
	skipped    int
	violations int
	statuses   []payroll.OutcomeStatus
}

func (o *countingObserver) CalculationFinished(s payroll.OutcomeStatus, _ time.Duration) {
	o.statuses = append(o.statuses, s)
}
func (o *countingObserver) HolidayFallback()    { o.fallbacks++ }
func (o *countingObserver) MinimumWageApplied() { o.minWage++ }
func (o *countingObserver) SessionsSkipped(n int) {
	o.skipped += n
}
func (o *countingObserver) ViolationsReported(v []payroll.LegalViolation) {
	o.violations += len(v)
}
