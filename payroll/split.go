package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// TIME SPLITTER - Cut a session at a special window's boundaries
// =============================================================================

// SplitResult holds the hours of a session before, during and after a
// special window, at full precision.
//
// After is the tail past the window end (a Saturday-night shift running into
// Sunday). It is priced as ordinary hours of the next day with a fresh norm.
type SplitResult struct {
	Before decimal.Decimal
	During decimal.Decimal
	After  decimal.Decimal
}

func (s SplitResult) Total() decimal.Decimal { return s.Before.Add(s.During).Add(s.After) }

// Overlaps reports whether any part of the session fell in the window.
func (s SplitResult) Overlaps() bool { return s.During.IsPositive() }

// Split cuts [start, end) against [windowStart, windowEnd):
//
//	Before = [start, min(end, windowStart))
//	During = [max(start, windowStart), min(end, windowEnd))
//	After  = [max(start, windowEnd), end)
//
// Each part is floored at zero. A session outside the window is all Before
// (or all After when it starts past the window end).
func Split(start, end, windowStart, windowEnd time.Time) SplitResult {
	beforeEnd := end
	if windowStart.Before(beforeEnd) {
		beforeEnd = windowStart
	}
	afterStart := start
	if windowEnd.After(afterStart) {
		afterStart = windowEnd
	}

	res := SplitResult{
		Before: hoursBetween(start, beforeEnd),
		During: overlap(start, end, windowStart, windowEnd),
		After:  hoursBetween(afterStart, end),
	}
	// A session entirely past the window is ordinary time; report it as
	// Before so callers see one ordinary piece.
	if res.Before.IsZero() && res.During.IsZero() {
		res.Before, res.After = res.After, decimal.Zero
	}
	return res
}

// deductBreak removes breakHours from the ordinary pieces first (before,
// then after) and only then from the special piece.
func (s SplitResult) deductBreak(breakHours decimal.Decimal) SplitResult {
	take := func(part *decimal.Decimal) {
		d := minDec(*part, breakHours)
		*part = part.Sub(d)
		breakHours = breakHours.Sub(d)
	}
	take(&s.Before)
	take(&s.After)
	take(&s.During)
	return s
}

// roundTo rounds each piece to 2 decimals and assigns the rounding residue
// to the last non-zero piece so the pieces sum exactly to total.
func (s SplitResult) roundTo(total decimal.Decimal) SplitResult {
	parts := []*decimal.Decimal{&s.Before, &s.During, &s.After}
	last := -1
	for i, p := range parts {
		*p = round2(*p)
		if p.IsPositive() {
			last = i
		}
	}
	if last < 0 {
		return SplitResult{Before: total, During: decimal.Zero, After: decimal.Zero}
	}
	residue := total.Sub(s.Total())
	*parts[last] = maxDec(decimal.Zero, parts[last].Add(residue))
	return s
}
