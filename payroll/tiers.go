/*
tiers.go - Regular/overtime partition of one day's hours

RULES:
  regular   = min(hours, norm)                      x1.00 ordinary / x1.50 special
  tier 1    = min(max(0, hours - norm), 2)          x1.25 ordinary / x1.75 special
  tier 2    = max(0, hours - norm - 2)              x1.50 ordinary / x2.00 special

  norm is 8.6 on ordinary days, 7.6 on Friday, 7 for night shifts.
  A special day is a paid holiday or Sabbath hours.

CARRY:
  When one calendar day is priced in several pieces (a shift split at candle
  lighting, or two sessions on the same date), the pieces share one norm and
  one 2-hour tier-1 allowance. Carry tracks how much of each is used.
*/
package payroll

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	DefaultDailyNorm  = decimal.RequireFromString("8.6")
	ShortDayNorm      = decimal.RequireFromString("7.6")
	NightShiftNorm    = decimal.NewFromInt(7)
	OvertimeTierHours = decimal.NewFromInt(2)
	MaxDailyHours     = decimal.NewFromInt(12)
)

// Multipliers price the three tiers of a day type.
type Multipliers struct {
	Regular decimal.Decimal
	Tier1   decimal.Decimal
	Tier2   decimal.Decimal
}

var (
	OrdinaryMultipliers = Multipliers{
		Regular: decimal.NewFromInt(1),
		Tier1:   decimal.RequireFromString("1.25"),
		Tier2:   decimal.RequireFromString("1.5"),
	}
	SpecialMultipliers = Multipliers{
		Regular: decimal.RequireFromString("1.5"),
		Tier1:   decimal.RequireFromString("1.75"),
		Tier2:   decimal.NewFromInt(2),
	}
)

func multipliersFor(special bool) Multipliers {
	if special {
		return SpecialMultipliers
	}
	return OrdinaryMultipliers
}

// =============================================================================
// BUCKET RESULT
// =============================================================================

// BucketResult is the partition of one piece of work into tiers.
type BucketResult struct {
	Regular   decimal.Decimal
	Overtime1 decimal.Decimal
	Overtime2 decimal.Decimal

	RegularPay   decimal.Decimal
	Overtime1Pay decimal.Decimal
	Overtime2Pay decimal.Decimal
	TotalPay     decimal.Decimal

	// Violation is set when the hours exceed MaxDailyHours.
	Violation *LegalViolation
}

func (b BucketResult) Hours() decimal.Decimal {
	return b.Regular.Add(b.Overtime1).Add(b.Overtime2)
}

// =============================================================================
// PARTITION
// =============================================================================

// Partition splits hoursWorked into regular and overtime tiers for a day
// whose regular threshold is dailyNorm, and prices each tier. It is pure.
func Partition(hoursWorked, hourlyRate decimal.Decimal, isSpecialDay bool, dailyNorm decimal.Decimal) BucketResult {
	b := partition(hoursWorked, hourlyRate, isSpecialDay, dailyNorm, OvertimeTierHours)
	if hoursWorked.GreaterThan(MaxDailyHours) {
		b.Violation = dailyHoursViolation(hoursWorked)
	}
	return b
}

// partition is Partition with an explicit tier-1 allowance and no violation.
func partition(hours, rate decimal.Decimal, special bool, norm, tier1Allowance decimal.Decimal) BucketResult {
	if !hours.IsPositive() {
		return zeroBuckets()
	}
	norm = maxDec(norm, decimal.Zero)
	tier1Allowance = maxDec(tier1Allowance, decimal.Zero)

	regular := minDec(hours, norm)
	overtime := maxDec(decimal.Zero, hours.Sub(norm))
	tier1 := minDec(overtime, tier1Allowance)
	tier2 := overtime.Sub(tier1)

	m := multipliersFor(special)
	b := BucketResult{
		Regular:      regular,
		Overtime1:    tier1,
		Overtime2:    tier2,
		RegularPay:   regular.Mul(rate).Mul(m.Regular),
		Overtime1Pay: tier1.Mul(rate).Mul(m.Tier1),
		Overtime2Pay: tier2.Mul(rate).Mul(m.Tier2),
	}
	b.TotalPay = b.RegularPay.Add(b.Overtime1Pay).Add(b.Overtime2Pay)
	return b
}

func zeroBuckets() BucketResult {
	return BucketResult{
		Regular:      decimal.Zero,
		Overtime1:    decimal.Zero,
		Overtime2:    decimal.Zero,
		RegularPay:   decimal.Zero,
		Overtime1Pay: decimal.Zero,
		Overtime2Pay: decimal.Zero,
		TotalPay:     decimal.Zero,
	}
}

func dailyHoursViolation(hours decimal.Decimal) *LegalViolation {
	return &LegalViolation{
		Code:        ViolationDailyHoursExceeded,
		Hours:       hours,
		Limit:       MaxDailyHours,
		ExcessHours: hours.Sub(MaxDailyHours),
		Message:     fmt.Sprintf("shift of %s hours exceeds the %s hour daily limit", hours.StringFixed(2), MaxDailyHours.String()),
	}
}

// =============================================================================
// CARRY - Norm and tier-1 usage shared across pieces of one calendar day
// =============================================================================

type Carry struct {
	RegularUsed decimal.Decimal
	Tier1Used   decimal.Decimal
}

// RemainingNorm is the part of norm not yet consumed by earlier pieces.
func (c Carry) RemainingNorm(norm decimal.Decimal) decimal.Decimal {
	return maxDec(decimal.Zero, norm.Sub(c.RegularUsed))
}

// RemainingTier1 is the part of the 2-hour tier-1 allowance still available.
func (c Carry) RemainingTier1() decimal.Decimal {
	return maxDec(decimal.Zero, OvertimeTierHours.Sub(c.Tier1Used))
}

// Consume records the tiers used by b.
func (c Carry) Consume(b BucketResult) Carry {
	return Carry{
		RegularUsed: c.RegularUsed.Add(b.Regular),
		Tier1Used:   c.Tier1Used.Add(b.Overtime1),
	}
}

// PartitionWithCarry partitions a piece of a day that already used part of
// its norm and tier-1 allowance.
func PartitionWithCarry(hours, rate decimal.Decimal, special bool, norm decimal.Decimal, carry Carry) BucketResult {
	return partition(hours, rate, special, carry.RemainingNorm(norm), carry.RemainingTier1())
}
