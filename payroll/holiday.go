package payroll

import (
	"context"
	"time"
)

// =============================================================================
// HOLIDAY FACTS - Consumed from an external lookup
// =============================================================================

// HolidayFact describes one calendar date. For a Friday or a Saturday,
// IsSabbath is true and SabbathStart/SabbathEnd bound that weekend's Sabbath.
type HolidayFact struct {
	Date          time.Time `json:"date"`
	Name          string    `json:"name,omitempty"`
	IsPaidHoliday bool      `json:"is_paid_holiday"`
	IsSabbath     bool      `json:"is_sabbath"`
	SabbathStart  time.Time `json:"sabbath_start,omitempty"`
	SabbathEnd    time.Time `json:"sabbath_end,omitempty"`

	// Estimated marks Sabbath times taken from the seasonal estimate.
	Estimated bool `json:"estimated"`
}

// HasSabbathWindow reports whether precise or estimated times are present.
func (f HolidayFact) HasSabbathWindow() bool {
	return f.IsSabbath && !f.SabbathStart.IsZero() && f.SabbathEnd.After(f.SabbathStart)
}

// HolidayLookup returns facts for a calendar date. Implementations return an
// error wrapping ErrHolidayLookupUnavailable when their provider fails; the
// engine then falls back to EstimatedFact and ordinary-day holiday status.
// Implementations must be safe for concurrent use.
type HolidayLookup interface {
	Lookup(ctx context.Context, date time.Time) (HolidayFact, error)
}

// HolidayLookupFunc adapts a function to HolidayLookup.
type HolidayLookupFunc func(ctx context.Context, date time.Time) (HolidayFact, error)

func (f HolidayLookupFunc) Lookup(ctx context.Context, date time.Time) (HolidayFact, error) {
	return f(ctx, date)
}

// =============================================================================
// SEASONAL ESTIMATE - Fallback when no precise source is available
// =============================================================================

// SeasonalSabbathWindow estimates the Sabbath containing date: candle lighting
// Friday at 18:30 (October-April) or 19:30 (May-September) local time, and
// Havdalah Saturday one hour after the same clock time. ok is false when
// date is neither a Friday nor a Saturday.
func SeasonalSabbathWindow(date time.Time) (start, end time.Time, ok bool) {
	day := DateOf(date)
	var friday time.Time
	switch day.Weekday() {
	case time.Friday:
		friday = day
	case time.Saturday:
		friday = day.AddDate(0, 0, -1)
	default:
		return time.Time{}, time.Time{}, false
	}

	hour := 18
	if m := friday.Month(); m >= time.May && m <= time.September {
		hour = 19
	}
	loc := friday.Location()
	start = time.Date(friday.Year(), friday.Month(), friday.Day(), hour, 30, 0, 0, loc)
	end = time.Date(friday.Year(), friday.Month(), friday.Day()+1, hour+1, 30, 0, 0, loc)
	return start, end, true
}

// EstimatedFact is the fail-open fact for date: never a paid holiday, with a
// seasonal Sabbath window on Fridays and Saturdays.
func EstimatedFact(date time.Time) HolidayFact {
	fact := HolidayFact{Date: DateOf(date), Estimated: true}
	if start, end, ok := SeasonalSabbathWindow(date); ok {
		fact.IsSabbath = true
		fact.SabbathStart = start
		fact.SabbathEnd = end
	}
	return fact
}
