/*
monthly.go - Fold of an employee-month (MonthlyAggregator)

ALGORITHM:
  1. Sort sessions by start; skip in-progress sessions, sessions whose
     check-in is outside the month, and invalid sessions (each with a reason)
  2. Price each remaining session with the DailyCalculator, threading a Carry
     per work date so overtime is counted per calendar day
  3. Merge results sharing a date into one DailyResult per date
  4. Weekly limits per ISO week: > 61 total hours, > 16 overtime hours
  5. Minimum-wage floor for local-currency pay with >= 186 hours
  6. Round every hour and money total to 2 decimals, once, at the end

The fold holds no state between calls: the same sessions and plan always
produce the same MonthlyResult.
*/
package payroll

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/logger"
)

// Rules are the statutory parameters of the monthly fold.
type Rules struct {
	LocalCurrency       string
	MinimumWage         decimal.Decimal
	MinimumWageHours    decimal.Decimal
	WeeklyHoursLimit    decimal.Decimal
	WeeklyOvertimeLimit decimal.Decimal

	// StrictArithmetic makes an arithmetic anomaly an error instead of a
	// logged warning. Enable it in tests and development.
	StrictArithmetic bool
}

// DefaultRules returns the current Israeli statutory values.
func DefaultRules() Rules {
	return Rules{
		LocalCurrency:       "ILS",
		MinimumWage:         decimal.NewFromInt(5300),
		MinimumWageHours:    decimal.NewFromInt(186),
		WeeklyHoursLimit:    decimal.NewFromInt(61),
		WeeklyOvertimeLimit: decimal.NewFromInt(16),
	}
}

// anomalyEpsilon is the tolerated gap between total pay and the bucket sum.
var anomalyEpsilon = decimal.RequireFromString("0.01")

// Skip reasons reported in MonthlyResult.SkippedSessions.
const (
	SkipInProgress   = "session in progress"
	SkipOutsideMonth = "check-in outside the month"
)

// MonthlyAggregator folds sessions into a MonthlyResult.
type MonthlyAggregator struct {
	daily  *DailyCalculator
	rules  Rules
	logger logger.Logger
}

func NewMonthlyAggregator(daily *DailyCalculator, rules Rules, l logger.Logger) *MonthlyAggregator {
	if l == nil {
		l = logger.Get().Named("monthly")
	}
	return &MonthlyAggregator{daily: daily, rules: rules, logger: l}
}

// Aggregate computes the MonthlyResult of one employee-month. Per-session
// failures are isolated and reported in SkippedSessions. The only error is
// an arithmetic anomaly under StrictArithmetic.
func (a *MonthlyAggregator) Aggregate(ctx context.Context, employeeID EmployeeID, year int, month time.Month, plan CompensationPlan, sessions []WorkSession) (MonthlyResult, error) {
	ordered := make([]WorkSession, len(sessions))
	copy(ordered, sessions)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start.Equal(ordered[j].Start) {
			return ordered[i].ID < ordered[j].ID
		}
		return ordered[i].Start.Before(ordered[j].Start)
	})

	res := MonthlyResult{
		EmployeeID:      employeeID,
		Year:            year,
		Month:           month,
		Currency:        plan.Currency,
		PlanType:        plan.Type,
		LegalViolations: []LegalViolation{},
		SkippedSessions: []SkippedSession{},
		Days:            []DailyResult{},
	}

	carries := make(map[string]Carry)
	days := make(map[string]DailyResult)
	var dateKeys []string

	for _, s := range ordered {
		skip := func(reason string) {
			res.SkippedSessions = append(res.SkippedSessions, SkippedSession{
				SessionID: s.ID,
				Date:      s.WorkDate(),
				Reason:    reason,
			})
		}
		if !s.IsComplete() {
			skip(SkipInProgress)
			continue
		}
		if !InMonth(s.Start, year, month) {
			skip(SkipOutsideMonth)
			continue
		}

		key := DateKey(s.Start)
		day, carry, err := a.daily.Calculate(ctx, s, plan, carries[key])
		if err != nil {
			a.logger.Warn(ctx, "skipping invalid session",
				logger.String("employee_id", string(employeeID)),
				logger.String("session_id", string(s.ID)),
				logger.Error(err))
			skip(err.Error())
			continue
		}
		carries[key] = carry

		if prev, ok := days[key]; ok {
			days[key] = prev.Merge(day)
		} else {
			days[key] = day
			dateKeys = append(dateKeys, key)
		}
	}
	sort.Strings(dateKeys)

	// Daily sums at full precision.
	rate := plan.EffectiveHourlyRate()
	for _, key := range dateKeys {
		d := days[key]
		if err := a.VerifyDay(ctx, d, rate); err != nil {
			return MonthlyResult{}, err
		}
		res.TotalHours = res.TotalHours.Add(d.HoursWorked)
		res.Hours = res.Hours.Add(d.Hours)
		res.Pay = res.Pay.Add(d.Pay)
		res.BasePay = res.BasePay.Add(d.BasePay)
		res.BonusPay = res.BonusPay.Add(d.BonusPay)
		res.LegalViolations = append(res.LegalViolations, d.Violations...)
		if d.IsHoliday || d.IsSabbath {
			res.CompensatoryDaysEarned++
		}
		res.UsedEstimatedSabbathTimes = res.UsedEstimatedSabbathTimes || d.UsedEstimatedSabbathTimes
		res.Days = append(res.Days, d)
	}
	res.WorkedDays = len(dateKeys)
	res.TotalGrossPay = res.Pay.Total()

	res.LegalViolations = append(res.LegalViolations, a.weeklyViolations(res.Days)...)
	a.applyMinimumWage(&res)
	return res.rounded(), nil
}

// weeklyViolations checks the weekly limits per ISO week (Monday start).
func (a *MonthlyAggregator) weeklyViolations(days []DailyResult) []LegalViolation {
	type week struct {
		total    decimal.Decimal
		overtime decimal.Decimal
	}
	weeks := make(map[string]*week)
	var order []string
	for _, d := range days {
		k := WeekKey(d.WorkDate)
		w, ok := weeks[k]
		if !ok {
			w = &week{total: decimal.Zero, overtime: decimal.Zero}
			weeks[k] = w
			order = append(order, k)
		}
		w.total = w.total.Add(d.Hours.Total())
		w.overtime = w.overtime.Add(d.Hours.Overtime())
	}

	var out []LegalViolation
	for _, k := range order {
		w := weeks[k]
		if w.total.GreaterThan(a.rules.WeeklyHoursLimit) {
			out = append(out, LegalViolation{
				Code:        ViolationWeeklyHoursExceeded,
				Week:        k,
				Hours:       round2(w.total),
				Limit:       a.rules.WeeklyHoursLimit,
				ExcessHours: round2(w.total.Sub(a.rules.WeeklyHoursLimit)),
				Message: fmt.Sprintf("week %s: %s hours exceed the %s hour weekly limit",
					k, w.total.StringFixed(2), a.rules.WeeklyHoursLimit.String()),
			})
		}
		if w.overtime.GreaterThan(a.rules.WeeklyOvertimeLimit) {
			out = append(out, LegalViolation{
				Code:        ViolationOvertimeExceeded,
				Week:        k,
				Hours:       round2(w.overtime),
				Limit:       a.rules.WeeklyOvertimeLimit,
				ExcessHours: round2(w.overtime.Sub(a.rules.WeeklyOvertimeLimit)),
				Message: fmt.Sprintf("week %s: %s overtime hours exceed the %s hour weekly limit",
					k, w.overtime.StringFixed(2), a.rules.WeeklyOvertimeLimit.String()),
			})
		}
	}
	return out
}

// applyMinimumWage tops up local-currency pay for a full month of hours.
func (a *MonthlyAggregator) applyMinimumWage(res *MonthlyResult) {
	res.MinimumWageSupplement = decimal.Zero
	if !strings.EqualFold(res.Currency, a.rules.LocalCurrency) {
		return
	}
	if res.TotalHours.LessThan(a.rules.MinimumWageHours) {
		return
	}
	gross := round2(res.TotalGrossPay)
	if !gross.LessThan(a.rules.MinimumWage) {
		return
	}
	res.MinimumWageApplied = true
	res.MinimumWageSupplement = a.rules.MinimumWage.Sub(gross)
	res.TotalGrossPay = a.rules.MinimumWage
}

// VerifyDay reprices a day from its hour buckets and checks it against the
// stored pay: the bucket pays, TotalPay and BasePay + BonusPay must agree.
// A mismatch is an error under StrictArithmetic and a logged error otherwise.
func (a *MonthlyAggregator) VerifyDay(ctx context.Context, d DailyResult, rate decimal.Decimal) error {
	repriced := d.Hours.PricedAt(rate)
	var err *ArithmeticAnomalyError
	for _, got := range []decimal.Decimal{d.Pay.Total(), d.TotalPay, d.BasePay.Add(d.BonusPay)} {
		if got.Sub(repriced).Abs().GreaterThan(anomalyEpsilon) {
			err = &ArithmeticAnomalyError{EmployeeID: d.EmployeeID, Date: d.WorkDate, Total: got, BucketSum: repriced}
			break
		}
	}
	if err == nil {
		return nil
	}
	if a.rules.StrictArithmetic {
		return err
	}
	a.logger.Error(ctx, "arithmetic anomaly, continuing with bucket pay",
		logger.String("employee_id", string(d.EmployeeID)),
		logger.String("date", DateKey(d.WorkDate)),
		logger.Error(err))
	return nil
}

func (m MonthlyResult) rounded() MonthlyResult {
	out := m
	out.TotalHours = round2(m.TotalHours)
	out.Hours = m.Hours.Round(2)
	out.Pay = m.Pay.Round(2)
	out.BasePay = round2(m.BasePay)
	out.BonusPay = round2(m.BonusPay)
	out.TotalGrossPay = round2(m.TotalGrossPay)
	out.MinimumWageSupplement = round2(m.MinimumWageSupplement)
	out.Days = make([]DailyResult, len(m.Days))
	for i, d := range m.Days {
		out.Days[i] = d.rounded()
	}
	return out
}
