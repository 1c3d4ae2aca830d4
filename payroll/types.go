/*
Package payroll provides the wage calculation engine.

PURPOSE:
  Turns raw clock-in/clock-out records into Israeli-labor-law compliant pay.
  Every worked hour is classified into a bucket (regular, overtime tier 1/2,
  Sabbath, holiday) and priced with the legal multiplier for that bucket.
  Daily results are folded into a monthly result with weekly limit checks,
  a minimum-wage floor and compensatory-day grants.

KEY CONCEPTS IN THIS FILE (types.go):
  - WorkSession: One check-in/check-out pair (input, read-only)
  - DailyResult: Buckets and pay for one session or one calendar date
  - MonthlyResult: Sums for an employee-month plus warnings
  - LegalViolation: Compliance observation, never blocks calculation

DESIGN PRINCIPLES:
  1. Precision: Hours and money use decimal.Decimal, rounded once at the end
  2. Purity: Partition and Split are pure functions; no hidden state
  3. Idempotence: Recomputing with unchanged inputs yields identical output
  4. Fail open: Holiday lookup failures fall back to ordinary-day rates

USAGE:
  calc := payroll.NewDailyCalculator(lookup)
  res, carry, err := calc.Calculate(ctx, session, plan, payroll.Carry{})

SEE ALSO:
  - tiers.go: Regular/overtime partition (RateTierCalculator)
  - split.go: Sabbath boundary split (TimeSplitter)
  - daily.go: Per-session orchestration (DailyCalculator)
  - monthly.go: Monthly fold (MonthlyAggregator)
*/
package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type SessionID string

// =============================================================================
// WORK SESSION - Input record
// =============================================================================

// WorkSession is one check-in/check-out pair. End is nil while the
// employee is still clocked in; such sessions are never calculated.
type WorkSession struct {
	ID           SessionID
	EmployeeID   EmployeeID
	Start        time.Time
	End          *time.Time
	BreakMinutes int
}

// IsComplete reports whether the session has a check-out.
func (s WorkSession) IsComplete() bool { return s.End != nil }

// WorkDate is the calendar date of the check-in in the session's own location.
func (s WorkSession) WorkDate() time.Time { return DateOf(s.Start) }

// =============================================================================
// SABBATH CLASSIFICATION
// =============================================================================

type SabbathType string

const (
	SabbathNone     SabbathType = ""
	SabbathFull     SabbathType = "within_sabbath"
	SabbathSpanning SabbathType = "friday_shift_spanning_sabbath"
	SabbathEnding   SabbathType = "shift_spanning_sabbath_end"
)

// =============================================================================
// BUCKET PAY - Pay per hour bucket
// =============================================================================

// BucketPay holds the weighted pay of every hour bucket.
type BucketPay struct {
	Regular          decimal.Decimal `json:"regular"`
	Overtime1        decimal.Decimal `json:"overtime_1"`
	Overtime2        decimal.Decimal `json:"overtime_2"`
	SabbathRegular   decimal.Decimal `json:"sabbath_regular"`
	SabbathOvertime1 decimal.Decimal `json:"sabbath_overtime_1"`
	SabbathOvertime2 decimal.Decimal `json:"sabbath_overtime_2"`
	HolidayRegular   decimal.Decimal `json:"holiday_regular"`
	HolidayOvertime1 decimal.Decimal `json:"holiday_overtime_1"`
	HolidayOvertime2 decimal.Decimal `json:"holiday_overtime_2"`
}

func (p BucketPay) Total() decimal.Decimal {
	return sum(p.Regular, p.Overtime1, p.Overtime2,
		p.SabbathRegular, p.SabbathOvertime1, p.SabbathOvertime2,
		p.HolidayRegular, p.HolidayOvertime1, p.HolidayOvertime2)
}

func (p BucketPay) Add(o BucketPay) BucketPay {
	return BucketPay{
		Regular:          p.Regular.Add(o.Regular),
		Overtime1:        p.Overtime1.Add(o.Overtime1),
		Overtime2:        p.Overtime2.Add(o.Overtime2),
		SabbathRegular:   p.SabbathRegular.Add(o.SabbathRegular),
		SabbathOvertime1: p.SabbathOvertime1.Add(o.SabbathOvertime1),
		SabbathOvertime2: p.SabbathOvertime2.Add(o.SabbathOvertime2),
		HolidayRegular:   p.HolidayRegular.Add(o.HolidayRegular),
		HolidayOvertime1: p.HolidayOvertime1.Add(o.HolidayOvertime1),
		HolidayOvertime2: p.HolidayOvertime2.Add(o.HolidayOvertime2),
	}
}

func (p BucketPay) Round(places int32) BucketPay {
	return BucketPay{
		Regular:          p.Regular.Round(places),
		Overtime1:        p.Overtime1.Round(places),
		Overtime2:        p.Overtime2.Round(places),
		SabbathRegular:   p.SabbathRegular.Round(places),
		SabbathOvertime1: p.SabbathOvertime1.Round(places),
		SabbathOvertime2: p.SabbathOvertime2.Round(places),
		HolidayRegular:   p.HolidayRegular.Round(places),
		HolidayOvertime1: p.HolidayOvertime1.Round(places),
		HolidayOvertime2: p.HolidayOvertime2.Round(places),
	}
}

// =============================================================================
// HOUR BUCKETS
// =============================================================================

// Hours holds worked hours per bucket. NightHours is an overlay: those hours
// are also counted in one of the other buckets.
type Hours struct {
	Regular          decimal.Decimal `json:"regular_hours"`
	Overtime1        decimal.Decimal `json:"overtime_hours_1"`
	Overtime2        decimal.Decimal `json:"overtime_hours_2"`
	SabbathRegular   decimal.Decimal `json:"sabbath_regular_hours"`
	SabbathOvertime1 decimal.Decimal `json:"sabbath_overtime_hours_1"`
	SabbathOvertime2 decimal.Decimal `json:"sabbath_overtime_hours_2"`
	HolidayRegular   decimal.Decimal `json:"holiday_regular_hours"`
	HolidayOvertime1 decimal.Decimal `json:"holiday_overtime_hours_1"`
	HolidayOvertime2 decimal.Decimal `json:"holiday_overtime_hours_2"`
	Night            decimal.Decimal `json:"night_hours"`
}

// Total is the sum of every bucket except the night overlay.
func (h Hours) Total() decimal.Decimal {
	return sum(h.Regular, h.Overtime1, h.Overtime2,
		h.SabbathRegular, h.SabbathOvertime1, h.SabbathOvertime2,
		h.HolidayRegular, h.HolidayOvertime1, h.HolidayOvertime2)
}

// Overtime is every overtime bucket, ordinary and special.
func (h Hours) Overtime() decimal.Decimal {
	return sum(h.Overtime1, h.Overtime2,
		h.SabbathOvertime1, h.SabbathOvertime2,
		h.HolidayOvertime1, h.HolidayOvertime2)
}

// PricedAt prices every bucket at rate times its tier multiplier.
func (h Hours) PricedAt(rate decimal.Decimal) decimal.Decimal {
	price := func(m Multipliers, regular, tier1, tier2 decimal.Decimal) decimal.Decimal {
		return sum(regular.Mul(m.Regular), tier1.Mul(m.Tier1), tier2.Mul(m.Tier2)).Mul(rate)
	}
	return sum(
		price(OrdinaryMultipliers, h.Regular, h.Overtime1, h.Overtime2),
		price(SpecialMultipliers, h.SabbathRegular, h.SabbathOvertime1, h.SabbathOvertime2),
		price(SpecialMultipliers, h.HolidayRegular, h.HolidayOvertime1, h.HolidayOvertime2),
	)
}

func (h Hours) Sabbath() decimal.Decimal {
	return sum(h.SabbathRegular, h.SabbathOvertime1, h.SabbathOvertime2)
}

func (h Hours) Holiday() decimal.Decimal {
	return sum(h.HolidayRegular, h.HolidayOvertime1, h.HolidayOvertime2)
}

func (h Hours) Add(o Hours) Hours {
	return Hours{
		Regular:          h.Regular.Add(o.Regular),
		Overtime1:        h.Overtime1.Add(o.Overtime1),
		Overtime2:        h.Overtime2.Add(o.Overtime2),
		SabbathRegular:   h.SabbathRegular.Add(o.SabbathRegular),
		SabbathOvertime1: h.SabbathOvertime1.Add(o.SabbathOvertime1),
		SabbathOvertime2: h.SabbathOvertime2.Add(o.SabbathOvertime2),
		HolidayRegular:   h.HolidayRegular.Add(o.HolidayRegular),
		HolidayOvertime1: h.HolidayOvertime1.Add(o.HolidayOvertime1),
		HolidayOvertime2: h.HolidayOvertime2.Add(o.HolidayOvertime2),
		Night:            h.Night.Add(o.Night),
	}
}

func (h Hours) Round(places int32) Hours {
	return Hours{
		Regular:          h.Regular.Round(places),
		Overtime1:        h.Overtime1.Round(places),
		Overtime2:        h.Overtime2.Round(places),
		SabbathRegular:   h.SabbathRegular.Round(places),
		SabbathOvertime1: h.SabbathOvertime1.Round(places),
		SabbathOvertime2: h.SabbathOvertime2.Round(places),
		HolidayRegular:   h.HolidayRegular.Round(places),
		HolidayOvertime1: h.HolidayOvertime1.Round(places),
		HolidayOvertime2: h.HolidayOvertime2.Round(places),
		Night:            h.Night.Round(places),
	}
}

// =============================================================================
// DAILY RESULT
// =============================================================================

// DailyResult is the engine output for one session. The aggregator merges
// results sharing a work date into one record per (employee, date).
//
// INVARIANTS:
//   - TotalPay == Pay.Total()
//   - BasePay == HoursWorked * effective hourly rate
//   - BonusPay == TotalPay - BasePay
type DailyResult struct {
	EmployeeID  EmployeeID      `json:"employee_id"`
	WorkDate    time.Time       `json:"work_date"`
	SessionIDs  []SessionID     `json:"session_ids"`
	HoursWorked decimal.Decimal `json:"hours_worked"`
	Hours       Hours           `json:"hours"`
	Pay         BucketPay       `json:"pay"`

	IsNightShift bool        `json:"is_night_shift"`
	IsHoliday    bool        `json:"is_holiday"`
	IsSabbath    bool        `json:"is_sabbath"`
	HolidayName  string      `json:"holiday_name,omitempty"`
	SabbathType  SabbathType `json:"sabbath_type,omitempty"`

	BasePay  decimal.Decimal `json:"base_pay"`
	BonusPay decimal.Decimal `json:"bonus_pay"`
	TotalPay decimal.Decimal `json:"total_pay"`

	CompensatoryDayCreated    bool             `json:"compensatory_day_created"`
	UsedEstimatedSabbathTimes bool             `json:"used_estimated_sabbath_times"`
	Violations                []LegalViolation `json:"violations,omitempty"`
}

// Merge folds another result for the same date into this one.
func (d DailyResult) Merge(o DailyResult) DailyResult {
	out := d
	out.SessionIDs = append(append([]SessionID{}, d.SessionIDs...), o.SessionIDs...)
	out.HoursWorked = d.HoursWorked.Add(o.HoursWorked)
	out.Hours = d.Hours.Add(o.Hours)
	out.Pay = d.Pay.Add(o.Pay)
	out.IsNightShift = d.IsNightShift || o.IsNightShift
	out.IsHoliday = d.IsHoliday || o.IsHoliday
	out.IsSabbath = d.IsSabbath || o.IsSabbath
	if out.HolidayName == "" {
		out.HolidayName = o.HolidayName
	}
	if out.SabbathType == SabbathNone {
		out.SabbathType = o.SabbathType
	}
	out.BasePay = d.BasePay.Add(o.BasePay)
	out.BonusPay = d.BonusPay.Add(o.BonusPay)
	out.TotalPay = d.TotalPay.Add(o.TotalPay)
	out.CompensatoryDayCreated = d.CompensatoryDayCreated || o.CompensatoryDayCreated
	out.UsedEstimatedSabbathTimes = d.UsedEstimatedSabbathTimes || o.UsedEstimatedSabbathTimes
	out.Violations = append(append([]LegalViolation{}, d.Violations...), o.Violations...)
	return out
}

func (d DailyResult) rounded() DailyResult {
	out := d
	out.HoursWorked = d.HoursWorked.Round(2)
	out.Hours = d.Hours.Round(2)
	out.Pay = d.Pay.Round(2)
	out.BasePay = d.BasePay.Round(2)
	out.BonusPay = d.BonusPay.Round(2)
	out.TotalPay = d.TotalPay.Round(2)
	return out
}

// =============================================================================
// MONTHLY RESULT
// =============================================================================

// SkippedSession records a session excluded from aggregation and why.
type SkippedSession struct {
	SessionID SessionID `json:"session_id"`
	Date      time.Time `json:"date"`
	Reason    string    `json:"reason"`
}

// MonthlyResult is the fold of all sessions of one employee-month.
// It is recomputed from sessions on demand and carries no hidden state.
type MonthlyResult struct {
	EmployeeID EmployeeID `json:"employee_id"`
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`
	Currency   string     `json:"currency"`
	PlanType   PlanType   `json:"plan_type"`

	TotalHours decimal.Decimal `json:"total_hours"`
	Hours      Hours           `json:"hours"`
	Pay        BucketPay       `json:"pay"`

	BasePay       decimal.Decimal `json:"base_pay"`
	BonusPay      decimal.Decimal `json:"bonus_pay"`
	TotalGrossPay decimal.Decimal `json:"total_gross_pay"`

	WorkedDays             int `json:"worked_days"`
	CompensatoryDaysEarned int `json:"compensatory_days_earned"`

	LegalViolations       []LegalViolation `json:"legal_violations"`
	MinimumWageApplied    bool             `json:"minimum_wage_applied"`
	MinimumWageSupplement decimal.Decimal  `json:"minimum_wage_supplement"`

	UsedEstimatedSabbathTimes bool             `json:"used_estimated_sabbath_times"`
	SkippedSessions           []SkippedSession `json:"skipped_sessions"`
	Days                      []DailyResult    `json:"days"`
}

// =============================================================================
// LEGAL VIOLATIONS - Observations, not errors
// =============================================================================

type ViolationCode string

const (
	ViolationDailyHoursExceeded  ViolationCode = "daily_hours_exceeded"
	ViolationWeeklyHoursExceeded ViolationCode = "weekly_hours_exceeded"
	ViolationOvertimeExceeded    ViolationCode = "overtime_exceeded"
)

// LegalViolation is a compliance warning attached to a result. Date is set
// for daily violations, Week ("2025-W10") for weekly ones.
type LegalViolation struct {
	Code        ViolationCode   `json:"code"`
	Date        *time.Time      `json:"date,omitempty"`
	Week        string          `json:"week,omitempty"`
	Hours       decimal.Decimal `json:"hours"`
	Limit       decimal.Decimal `json:"limit"`
	ExcessHours decimal.Decimal `json:"excess_hours"`
	Message     string          `json:"message"`
}
