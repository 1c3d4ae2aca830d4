/*
daily.go - Per-session calculation (DailyCalculator)

ALGORITHM:
  1. hours = (end - start) - break, rounded to 2 decimals half-up
  2. night shift = at least 2 hours inside 22:00-06:00; norm becomes 7
  3. paid holiday on the check-in date -> the whole session is special
  4. otherwise classify against the Sabbath window:
       a. entirely inside  -> one special partition
       b. entirely outside -> one ordinary partition (Friday norm 7.6)
       c. crossing         -> split, ordinary piece first, special piece
                              second sharing the remaining norm; any tail
                              past Havdalah is ordinary with a fresh norm
  5. holiday or Sabbath work -> compensatory day grant (idempotent)
  6. base = hours x rate, total = sum of bucket pay, bonus = total - base

FAILURE SEMANTICS:
  A failing HolidayLookup never fails the calculation. The engine logs a
  warning, treats the date as a non-holiday and uses the seasonal Sabbath
  estimate.
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/logger"
)

// DailyCalculator produces one DailyResult per WorkSession.
type DailyCalculator struct {
	lookup   HolidayLookup
	granter  CompensatoryGranter
	observer Observer
	logger   logger.Logger
}

// DailyOption configures a DailyCalculator.
type DailyOption func(*DailyCalculator)

// WithGranter makes the calculator record compensatory days.
func WithGranter(g CompensatoryGranter) DailyOption {
	return func(c *DailyCalculator) {
		c.granter = g
	}
}

// WithDailyObserver reports holiday lookup fallbacks to o.
func WithDailyObserver(o Observer) DailyOption {
	return func(c *DailyCalculator) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithDailyLogger sets the calculator logger.
func WithDailyLogger(l logger.Logger) DailyOption {
	return func(c *DailyCalculator) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewDailyCalculator(lookup HolidayLookup, opts ...DailyOption) *DailyCalculator {
	c := &DailyCalculator{
		lookup:   lookup,
		observer: nopObserver{},
		logger:   logger.Get().Named("daily"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateSession checks the invariants the engine relies on.
func ValidateSession(s WorkSession) error {
	if !s.IsComplete() {
		return ErrIncompleteSession
	}
	invalid := func(reason string) error {
		return &InvalidSessionError{SessionID: s.ID, Start: s.Start, Reason: reason}
	}
	end := *s.End
	switch {
	case !end.After(s.Start):
		return invalid("end is not after start")
	case end.Sub(s.Start) > MaxSessionDuration:
		return invalid(fmt.Sprintf("duration %s exceeds %s", end.Sub(s.Start), MaxSessionDuration))
	case s.BreakMinutes < 0:
		return invalid("negative break")
	case time.Duration(s.BreakMinutes)*time.Minute > end.Sub(s.Start):
		return invalid("break longer than the session")
	}
	return nil
}

// HoursWorked is elapsed time minus break, rounded to 2 decimals.
func HoursWorked(s WorkSession) decimal.Decimal {
	if !s.IsComplete() {
		return decimal.Zero
	}
	elapsed := hoursBetween(s.Start, *s.End)
	breakHours := decimal.NewFromInt(int64(s.BreakMinutes)).Div(minutesPerHour)
	return round2(maxDec(decimal.Zero, elapsed.Sub(breakHours)))
}

// Calculate prices one session. carry holds the norm and tier-1 allowance
// already used by earlier sessions on the same work date; the returned Carry
// includes this session. The only errors are session validation errors.
func (c *DailyCalculator) Calculate(ctx context.Context, s WorkSession, plan CompensationPlan, carry Carry) (DailyResult, Carry, error) {
	if err := ValidateSession(s); err != nil {
		return DailyResult{}, carry, err
	}

	start, end := s.Start, *s.End
	rate := plan.EffectiveHourlyRate()
	hours := HoursWorked(s)
	night := NightOverlap(start, end)
	isNight := night.GreaterThanOrEqual(NightShiftThreshold)

	res := DailyResult{
		EmployeeID:   s.EmployeeID,
		WorkDate:     s.WorkDate(),
		SessionIDs:   []SessionID{s.ID},
		HoursWorked:  hours,
		IsNightShift: isNight,
	}
	res.Hours.Night = night

	fact := c.resolve(ctx, s.WorkDate())
	res.UsedEstimatedSabbathTimes = fact.Estimated && fact.IsSabbath

	switch {
	case fact.IsPaidHoliday:
		b := PartitionWithCarry(hours, rate, true, specialNorm(isNight), carry)
		carry = carry.Consume(b)
		res.applyHoliday(b)
		res.IsHoliday = true
		res.HolidayName = fact.Name

	case fact.HasSabbathWindow():
		carry = c.priceAgainstSabbath(&res, s, fact, rate, isNight, carry)

	default:
		b := PartitionWithCarry(hours, rate, false, ordinaryNorm(start, isNight), carry)
		carry = carry.Consume(b)
		res.applyOrdinary(b)
	}

	if hours.GreaterThan(MaxDailyHours) {
		v := dailyHoursViolation(hours)
		date := res.WorkDate
		v.Date = &date
		res.Violations = append(res.Violations, *v)
	}

	res.IsSabbath = res.Hours.Sabbath().IsPositive()
	c.grantCompensatory(ctx, &res)

	res.TotalPay = res.Pay.Total()
	res.BasePay = hours.Mul(rate)
	res.BonusPay = res.TotalPay.Sub(res.BasePay)
	return res, carry, nil
}

// priceAgainstSabbath handles sub-cases a, b and c of the Sabbath rules.
func (c *DailyCalculator) priceAgainstSabbath(res *DailyResult, s WorkSession, fact HolidayFact, rate decimal.Decimal, isNight bool, carry Carry) Carry {
	start, end := s.Start, *s.End
	split := Split(start, end, fact.SabbathStart, fact.SabbathEnd)

	// a. entirely inside
	if split.Overlaps() && split.Before.IsZero() && split.After.IsZero() {
		b := PartitionWithCarry(res.HoursWorked, rate, true, specialNorm(isNight), carry)
		res.applySabbath(b)
		res.SabbathType = SabbathFull
		return carry.Consume(b)
	}

	// b. entirely outside
	if !split.Overlaps() {
		b := PartitionWithCarry(res.HoursWorked, rate, false, ordinaryNorm(start, isNight), carry)
		res.applyOrdinary(b)
		return carry.Consume(b)
	}

	// c. crossing a boundary
	breakHours := decimal.NewFromInt(int64(s.BreakMinutes)).Div(minutesPerHour)
	split = split.deductBreak(breakHours).roundTo(res.HoursWorked)
	norm := DefaultDailyNorm

	before := PartitionWithCarry(split.Before, rate, false, norm, carry)
	carry = carry.Consume(before)
	during := PartitionWithCarry(split.During, rate, true, norm, carry)
	carry = carry.Consume(during)
	after := partition(split.After, rate, false, norm, OvertimeTierHours)

	res.applyOrdinary(before)
	res.applySabbath(during)
	res.applyOrdinary(after)

	if split.Before.IsPositive() {
		res.SabbathType = SabbathSpanning
	} else {
		res.SabbathType = SabbathEnding
	}
	return carry
}

// resolve queries the lookup and falls back to the seasonal estimate.
func (c *DailyCalculator) resolve(ctx context.Context, date time.Time) HolidayFact {
	if c.lookup == nil {
		return EstimatedFact(date)
	}
	fact, err := c.lookup.Lookup(ctx, date)
	if err != nil {
		if !errors.Is(err, ErrHolidayLookupUnavailable) {
			err = fmt.Errorf("%w: %v", ErrHolidayLookupUnavailable, err)
		}
		c.observer.HolidayFallback()
		c.logger.Warn(ctx, "holiday lookup failed, using seasonal estimate",
			logger.String("date", DateKey(date)), logger.Error(err))
		return EstimatedFact(date)
	}
	if fact.IsSabbath && !fact.HasSabbathWindow() {
		est := EstimatedFact(date)
		fact.SabbathStart, fact.SabbathEnd = est.SabbathStart, est.SabbathEnd
		fact.Estimated = true
	}
	return fact
}

func (c *DailyCalculator) grantCompensatory(ctx context.Context, res *DailyResult) {
	var reason CompensatoryReason
	switch {
	case res.IsHoliday:
		reason = ReasonHoliday
	case res.IsSabbath:
		reason = ReasonSabbath
	default:
		return
	}
	if c.granter == nil {
		return
	}
	created, _, err := c.granter.GrantCompensatoryDay(ctx, res.EmployeeID, res.WorkDate, reason)
	if err != nil {
		c.logger.Error(ctx, "failed to grant compensatory day",
			logger.String("employee_id", string(res.EmployeeID)),
			logger.String("date", DateKey(res.WorkDate)),
			logger.Error(err))
		return
	}
	if created {
		c.logger.Debug(ctx, "compensatory day granted",
			logger.String("employee_id", string(res.EmployeeID)),
			logger.String("reason", string(reason)))
	}
	res.CompensatoryDayCreated = true
}

// =============================================================================
// NORMS
// =============================================================================

func ordinaryNorm(start time.Time, isNight bool) decimal.Decimal {
	switch {
	case isNight:
		return NightShiftNorm
	case start.Weekday() == time.Friday:
		return ShortDayNorm
	default:
		return DefaultDailyNorm
	}
}

func specialNorm(isNight bool) decimal.Decimal {
	if isNight {
		return NightShiftNorm
	}
	return DefaultDailyNorm
}

// =============================================================================
// BUCKET ASSIGNMENT
// =============================================================================

func (d *DailyResult) applyOrdinary(b BucketResult) {
	d.Hours.Regular = d.Hours.Regular.Add(b.Regular)
	d.Hours.Overtime1 = d.Hours.Overtime1.Add(b.Overtime1)
	d.Hours.Overtime2 = d.Hours.Overtime2.Add(b.Overtime2)
	d.Pay.Regular = d.Pay.Regular.Add(b.RegularPay)
	d.Pay.Overtime1 = d.Pay.Overtime1.Add(b.Overtime1Pay)
	d.Pay.Overtime2 = d.Pay.Overtime2.Add(b.Overtime2Pay)
}

func (d *DailyResult) applySabbath(b BucketResult) {
	d.Hours.SabbathRegular = d.Hours.SabbathRegular.Add(b.Regular)
	d.Hours.SabbathOvertime1 = d.Hours.SabbathOvertime1.Add(b.Overtime1)
	d.Hours.SabbathOvertime2 = d.Hours.SabbathOvertime2.Add(b.Overtime2)
	d.Pay.SabbathRegular = d.Pay.SabbathRegular.Add(b.RegularPay)
	d.Pay.SabbathOvertime1 = d.Pay.SabbathOvertime1.Add(b.Overtime1Pay)
	d.Pay.SabbathOvertime2 = d.Pay.SabbathOvertime2.Add(b.Overtime2Pay)
}

func (d *DailyResult) applyHoliday(b BucketResult) {
	d.Hours.HolidayRegular = d.Hours.HolidayRegular.Add(b.Regular)
	d.Hours.HolidayOvertime1 = d.Hours.HolidayOvertime1.Add(b.Overtime1)
	d.Hours.HolidayOvertime2 = d.Hours.HolidayOvertime2.Add(b.Overtime2)
	d.Pay.HolidayRegular = d.Pay.HolidayRegular.Add(b.RegularPay)
	d.Pay.HolidayOvertime1 = d.Pay.HolidayOvertime1.Add(b.Overtime1Pay)
	d.Pay.HolidayOvertime2 = d.Pay.HolidayOvertime2.Add(b.Overtime2Pay)
}
