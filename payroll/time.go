package payroll

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	nightStartHour = 22
	nightEndHour   = 6

	// MaxSessionDuration bounds a single session; longer ones are invalid.
	MaxSessionDuration = 24 * time.Hour
)

var (
	secondsPerHour = decimal.NewFromInt(3600)
	minutesPerHour = decimal.NewFromInt(60)

	// NightShiftThreshold is the overlap with 22:00-06:00 that makes a night shift.
	NightShiftThreshold = decimal.NewFromInt(2)
)

// =============================================================================
// DATE HELPERS
// =============================================================================

// DateOf truncates t to midnight in its own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DateKey formats the calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string { return t.Format("2006-01-02") }

// WeekKey returns the ISO week of t (Monday start), e.g. "2025-W03".
func WeekKey(t time.Time) string {
	y, w := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", y, w)
}

// InMonth reports whether t falls in the given month, in t's location.
func InMonth(t time.Time, year int, month time.Month) bool {
	return t.Year() == year && t.Month() == month
}

// MonthBounds returns [first day 00:00, first day of next month 00:00) in loc.
func MonthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// =============================================================================
// DURATION HELPERS
// =============================================================================

// hoursBetween returns the length of [a, b) in hours at full precision,
// floored at zero.
func hoursBetween(a, b time.Time) decimal.Decimal {
	if !b.After(a) {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(b.Sub(a) / time.Second)).Div(secondsPerHour)
}

// overlap returns the hours shared by [s1, e1) and [s2, e2).
func overlap(s1, e1, s2, e2 time.Time) decimal.Decimal {
	start := s1
	if s2.After(start) {
		start = s2
	}
	end := e1
	if e2.Before(end) {
		end = e2
	}
	return hoursBetween(start, end)
}

// NightOverlap sums the overlap of [start, end) with every 22:00-06:00 window
// it touches, in start's location.
func NightOverlap(start, end time.Time) decimal.Decimal {
	total := decimal.Zero
	day := DateOf(start).AddDate(0, 0, -1)
	last := DateOf(end)
	for !day.After(last) {
		ws := time.Date(day.Year(), day.Month(), day.Day(), nightStartHour, 0, 0, 0, day.Location())
		we := time.Date(day.Year(), day.Month(), day.Day()+1, nightEndHour, 0, 0, 0, day.Location())
		total = total.Add(overlap(start, end, ws, we))
		day = day.AddDate(0, 0, 1)
	}
	return total
}

// round2 rounds half away from zero, which is half-up for hours and pay.
func round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

func sum(ds ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}

func minDec(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

func maxDec(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}
