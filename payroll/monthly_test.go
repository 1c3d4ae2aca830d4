package payroll_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

func newAggregator(lookup payroll.HolidayLookup, rules payroll.Rules, opts ...payroll.DailyOption) *payroll.MonthlyAggregator {
	return payroll.NewMonthlyAggregator(newCalculator(lookup, opts...), rules, logger.Nop())
}

func strictRules() payroll.Rules {
	r := payroll.DefaultRules()
	r.StrictArithmetic = true
	return r
}

func findViolation(vs []payroll.LegalViolation, code payroll.ViolationCode) *payroll.LegalViolation {
	for i := range vs {
		if vs[i].Code == code {
			return &vs[i]
		}
	}
	return nil
}

// =============================================================================
// WEEKLY LIMITS
// =============================================================================

func TestMonthly_SixTwelveHourDays_WeeklyViolation(t *testing.T) {
	// GIVEN: Monday to Saturday, 12 hours each (72 hours in ISO week 10)
	// THEN: weekly_hours_exceeded with 11 excess hours

	var sessions []payroll.WorkSession
	for d := 3; d <= 8; d++ {
		sessions = append(sessions, session(
			"s-"+string(rune('a'+d)),
			at(2025, time.March, d, 6, 0),
			at(2025, time.March, d, 18, 0), 0))
	}

	agg := newAggregator(noHolidays, strictRules())
	res, err := agg.Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("50"), sessions)
	require.NoError(t, err)

	weekly := findViolation(res.LegalViolations, payroll.ViolationWeeklyHoursExceeded)
	require.NotNil(t, weekly)
	assert.Equal(t, "2025-W10", weekly.Week)
	assertDec(t, "72", weekly.Hours, "weekly hours")
	assertDec(t, "11", weekly.ExcessHours, "excess")

	overtime := findViolation(res.LegalViolations, payroll.ViolationOvertimeExceeded)
	require.NotNil(t, overtime, "5 x 3.4 + 4.4 on Friday exceed 16")
	assertDec(t, "5.4", overtime.ExcessHours, "overtime excess")

	assert.Nil(t, findViolation(res.LegalViolations, payroll.ViolationDailyHoursExceeded), "12 hours is allowed")
	assert.Equal(t, 6, res.WorkedDays)
}

func TestMonthly_WeeksAreCheckedSeparately(t *testing.T) {
	// 40 hours in each of two weeks: no violation
	var sessions []payroll.WorkSession
	for _, d := range []int{3, 4, 5, 6, 10, 11, 12, 13} {
		sessions = append(sessions, session("s", at(2025, time.March, d, 8, 0), at(2025, time.March, d, 18, 0), 0))
	}
	for i := range sessions {
		sessions[i].ID = payroll.SessionID(payroll.DateKey(sessions[i].Start))
	}

	res, err := newAggregator(noHolidays, strictRules()).
		Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("50"), sessions)
	require.NoError(t, err)
	assert.Empty(t, res.LegalViolations)
}

// =============================================================================
// MINIMUM WAGE
// =============================================================================

func fullMonthSessions(hoursPerDay int) []payroll.WorkSession {
	var out []payroll.WorkSession
	for d := 1; d <= 31; d++ {
		start := at(2025, time.March, d, 8, 0)
		out = append(out, session(payroll.DateKey(start), start, start.Add(time.Duration(hoursPerDay)*time.Hour), 0))
	}
	return out
}

func TestMonthly_MinimumWageFloor(t *testing.T) {
	// GIVEN: 186 hours at 20/hour with no premiums (3720)
	// THEN: Topped up to 5300 with a 1580 supplement

	agg := newAggregator(noHolidays, strictRules())
	res, err := agg.Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("20"), fullMonthSessions(6))
	require.NoError(t, err)

	assertDec(t, "186", res.TotalHours, "total hours")
	assertDec(t, "3720", res.Pay.Total(), "bucket pay")
	assert.True(t, res.MinimumWageApplied)
	assertDec(t, "1580", res.MinimumWageSupplement, "supplement")
	assertDec(t, "5300", res.TotalGrossPay, "gross")
}

func TestMonthly_MinimumWage_NotAppliedBelowHours(t *testing.T) {
	sessions := fullMonthSessions(6)[:30]

	res, err := newAggregator(noHolidays, strictRules()).
		Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("20"), sessions)
	require.NoError(t, err)

	assert.False(t, res.MinimumWageApplied)
	assertDec(t, "0", res.MinimumWageSupplement, "supplement")
	assertDec(t, "3600", res.TotalGrossPay, "gross")
}

func TestMonthly_MinimumWage_NotAppliedInForeignCurrency(t *testing.T) {
	plan := hourlyPlan("20")
	plan.Currency = "USD"

	res, err := newAggregator(noHolidays, strictRules()).
		Aggregate(context.Background(), "emp-1", 2025, time.March, plan, fullMonthSessions(6))
	require.NoError(t, err)

	assert.False(t, res.MinimumWageApplied)
	assertDec(t, "3720", res.TotalGrossPay, "gross")
}

// =============================================================================
// DAY MERGING AND SKIPPING
// =============================================================================

func TestMonthly_SessionsOnSameDateShareOneNorm(t *testing.T) {
	sessions := []payroll.WorkSession{
		session("s-2", at(2025, time.March, 3, 13, 0), at(2025, time.March, 3, 19, 0), 0),
		session("s-1", at(2025, time.March, 3, 6, 0), at(2025, time.March, 3, 11, 0), 0),
	}

	res, err := newAggregator(noHolidays, strictRules()).
		Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("10"), sessions)
	require.NoError(t, err)

	require.Len(t, res.Days, 1)
	day := res.Days[0]
	assert.Equal(t, []payroll.SessionID{"s-1", "s-2"}, day.SessionIDs, "sessions are taken in start order")
	assertDec(t, "11", day.HoursWorked, "hours")
	assertDec(t, "8.6", day.Hours.Regular, "regular")
	assertDec(t, "2", day.Hours.Overtime1, "overtime_1")
	assertDec(t, "0.4", day.Hours.Overtime2, "overtime_2")
	assert.Equal(t, 1, res.WorkedDays)
}

func TestMonthly_SkipsOpenOutOfMonthAndInvalidSessions(t *testing.T) {
	open := payroll.WorkSession{ID: "open", EmployeeID: "emp-1", Start: at(2025, time.March, 20, 8, 0)}
	sessions := []payroll.WorkSession{
		session("ok", at(2025, time.March, 3, 8, 0), at(2025, time.March, 3, 16, 0), 0),
		session("february", at(2025, time.February, 28, 22, 0), at(2025, time.March, 1, 6, 0), 0),
		session("broken", at(2025, time.March, 4, 10, 0), at(2025, time.March, 4, 9, 0), 0),
		open,
	}

	res, err := newAggregator(noHolidays, strictRules()).
		Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("10"), sessions)
	require.NoError(t, err, "bad sessions never abort the month")

	require.Len(t, res.SkippedSessions, 3)
	reasons := map[payroll.SessionID]string{}
	for _, s := range res.SkippedSessions {
		reasons[s.SessionID] = s.Reason
	}
	assert.Equal(t, payroll.SkipOutsideMonth, reasons["february"])
	assert.Equal(t, payroll.SkipInProgress, reasons["open"])
	assert.Contains(t, reasons["broken"], "end is not after start")

	assert.Equal(t, 1, res.WorkedDays)
	assertDec(t, "8", res.TotalHours, "hours")
}

func TestMonthly_CompensatoryDaysAndFlags(t *testing.T) {
	mem := store.NewMemory()
	sessions := []payroll.WorkSession{
		session("fri", at(2025, time.June, 6, 15, 0), at(2025, time.June, 6, 20, 30), 0),
		session("sat", at(2025, time.June, 7, 9, 0), at(2025, time.June, 7, 13, 0), 0),
		session("sun", at(2025, time.June, 8, 9, 0), at(2025, time.June, 8, 13, 0), 0),
	}

	res, err := newAggregator(preciseSabbath, strictRules(), payroll.WithGranter(mem)).
		Aggregate(context.Background(), "emp-1", 2025, time.June, hourlyPlan("100"), sessions)
	require.NoError(t, err)

	assert.Equal(t, 3, res.WorkedDays)
	assert.Equal(t, 2, res.CompensatoryDaysEarned)
	assertDec(t, "5", res.Hours.Sabbath(), "sabbath hours")
	assertDec(t, "8.5", res.Hours.Regular, "regular")
	assertDec(t, "1600", res.TotalGrossPay, "450+150 + 600 + 400")
	assertDec(t, "1350", res.BasePay, "base")
	assertDec(t, "250", res.BonusPay, "bonus")

	grants, err := mem.Grants(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Len(t, grants, 2)
}

// =============================================================================
// IDEMPOTENCE AND ROUNDING
// =============================================================================

func TestMonthly_Idempotent(t *testing.T) {
	mem := store.NewMemory()
	sessions := []payroll.WorkSession{
		session("a", at(2025, time.June, 2, 8, 7), at(2025, time.June, 2, 19, 41), 23),
		session("b", at(2025, time.June, 6, 11, 13), at(2025, time.June, 6, 21, 2), 17),
		session("c", at(2025, time.June, 7, 22, 0), at(2025, time.June, 8, 5, 59), 0),
	}
	agg := newAggregator(preciseSabbath, strictRules(), payroll.WithGranter(mem))

	first, err := agg.Aggregate(context.Background(), "emp-1", 2025, time.June, hourlyPlan("43.17"), sessions)
	require.NoError(t, err)
	second, err := agg.Aggregate(context.Background(), "emp-1", 2025, time.June, hourlyPlan("43.17"), sessions)
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestMonthly_RoundsOnlyAtTheEnd(t *testing.T) {
	// Three sessions of 20 minutes: 0.33 each after daily rounding, pay at
	// full precision until the month total.
	var sessions []payroll.WorkSession
	for _, d := range []int{3, 4, 5} {
		start := at(2025, time.March, d, 9, 0)
		sessions = append(sessions, session(payroll.DateKey(start), start, start.Add(20*time.Minute), 0))
	}

	res, err := newAggregator(noHolidays, strictRules()).
		Aggregate(context.Background(), "emp-1", 2025, time.March, hourlyPlan("33.333"), sessions)
	require.NoError(t, err)

	assertDec(t, "0.99", res.TotalHours, "hours")
	// 0.99 x 33.333 = 32.99967
	assertDec(t, "33", res.TotalGrossPay, "gross")
	for _, d := range res.Days {
		assert.LessOrEqual(t, -d.TotalPay.Exponent(), int32(2), "daily pay is rounded to cents")
	}
}

// =============================================================================
// ARITHMETIC CHECK
// =============================================================================

func TestMonthly_VerifyDay_AcceptsCalculatedDays(t *testing.T) {
	monthly := payroll.CompensationPlan{EmployeeID: "emp-1", Type: payroll.PlanMonthly, MonthlyBase: dec("9999"), Currency: "ILS"}
	plans := []payroll.CompensationPlan{hourlyPlan("47.3"), monthly}
	// Friday 15:00 to Saturday 02:00 across the summer Sabbath start (19:30).
	s := session("fri", at(2025, time.June, 6, 15, 0), at(2025, time.June, 7, 2, 0), 30)

	agg := newAggregator(preciseSabbath, strictRules())
	for _, plan := range plans {
		day, _, err := newCalculator(preciseSabbath).Calculate(context.Background(), s, plan, payroll.Carry{})
		require.NoError(t, err)
		assert.NoError(t, agg.VerifyDay(context.Background(), day, plan.EffectiveHourlyRate()), plan.Type)
	}
}

func TestMonthly_VerifyDay_FlagsDoctoredPay(t *testing.T) {
	plan := hourlyPlan("50")
	s := session("mon", at(2025, time.March, 3, 8, 0), at(2025, time.March, 3, 19, 0), 0)
	day, _, err := newCalculator(noHolidays).Calculate(context.Background(), s, plan, payroll.Carry{})
	require.NoError(t, err)

	tests := []struct {
		name   string
		doctor func(d *payroll.DailyResult)
	}{
		{"bucket pay and total moved together", func(d *payroll.DailyResult) {
			d.Pay.Overtime1 = d.Pay.Overtime1.Add(dec("10"))
			d.TotalPay = d.TotalPay.Add(dec("10"))
			d.BonusPay = d.BonusPay.Add(dec("10"))
		}},
		{"total only", func(d *payroll.DailyResult) { d.TotalPay = d.TotalPay.Sub(dec("0.5")) }},
		{"bonus only", func(d *payroll.DailyResult) { d.BonusPay = d.BonusPay.Add(dec("1")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doctored := day
			tt.doctor(&doctored)

			err := newAggregator(noHolidays, strictRules()).VerifyDay(context.Background(), doctored, dec("50"))
			require.ErrorIs(t, err, payroll.ErrArithmeticAnomaly)
			var anomaly *payroll.ArithmeticAnomalyError
			require.True(t, errors.As(err, &anomaly))
			assert.Equal(t, "2025-03-03", payroll.DateKey(anomaly.Date))
			assert.Equal(t, payroll.EmployeeID("emp-1"), anomaly.EmployeeID)

			lenient := newAggregator(noHolidays, payroll.DefaultRules())
			assert.NoError(t, lenient.VerifyDay(context.Background(), doctored, dec("50")))
		})
	}
}
