package holidays

import (
	"context"
	"time"

	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
)

// FactStore holds operator-maintained holiday facts (sqlite holidays table).
type FactStore interface {
	HolidayFact(ctx context.Context, date time.Time) (payroll.HolidayFact, bool, error)
}

// Calendar overlays stored paid-holiday entries on top of next. Sabbath times
// always come from next; a stored entry only decides IsPaidHoliday and Name.
type Calendar struct {
	store  FactStore
	next   payroll.HolidayLookup
	logger logger.Logger
}

func NewCalendar(store FactStore, next payroll.HolidayLookup) *Calendar {
	return &Calendar{store: store, next: next, logger: logger.Named("calendar")}
}

func (c *Calendar) Lookup(ctx context.Context, date time.Time) (payroll.HolidayFact, error) {
	stored, ok, err := c.store.HolidayFact(ctx, date)
	if err != nil {
		c.logger.Warn(ctx, "stored holiday read failed", logger.String("date", payroll.DateKey(date)), logger.Error(err))
		ok = false
	}

	fact, err := c.next.Lookup(ctx, date)
	if err != nil {
		if !ok {
			return payroll.HolidayFact{}, err
		}
		// The stored entry settles holiday status; Sabbath times fall back
		// to the estimate and are flagged as such.
		fact = payroll.EstimatedFact(date)
	}
	if ok {
		fact.IsPaidHoliday = stored.IsPaidHoliday
		fact.Name = stored.Name
	}
	return fact, nil
}
