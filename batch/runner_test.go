package batch_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/batch"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/payroll/store"
)

var ist = time.FixedZone("IST", 2*60*60)

type countingLookup struct{ calls atomic.Int32 }

func (c *countingLookup) Lookup(_ context.Context, date time.Time) (payroll.HolidayFact, error) {
	c.calls.Add(1)
	return payroll.HolidayFact{Date: payroll.DateOf(date)}, nil
}

// brokenSessions fails for one employee.
type brokenSessions struct {
	*store.Memory
	broken payroll.EmployeeID
}

func (b brokenSessions) Sessions(ctx context.Context, id payroll.EmployeeID, year int, month time.Month) ([]payroll.WorkSession, error) {
	if id == b.broken {
		return nil, errors.New("disk on fire")
	}
	return b.Memory.Sessions(ctx, id, year, month)
}

type recorder struct{ ok, failed int }

func (r *recorder) RecordBatch(succeeded, failed int, _ time.Duration) {
	r.ok, r.failed = succeeded, failed
}

func seed(t *testing.T, mem *store.Memory, emp payroll.EmployeeID) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, mem.SetPlan(ctx, payroll.CompensationPlan{
		EmployeeID: emp, Type: payroll.PlanHourly, HourlyRate: decimal.NewFromInt(40), Currency: "ILS",
	}))
	// Monday and Tuesday, 8h each.
	for _, d := range []int{3, 4} {
		end := time.Date(2025, time.March, d, 16, 0, 0, 0, ist)
		_, err := mem.AddSession(ctx, payroll.WorkSession{
			EmployeeID: emp,
			Start:      time.Date(2025, time.March, d, 8, 0, 0, 0, ist),
			End:        &end,
		})
		require.NoError(t, err)
	}
}

func TestRunAll_SharesOneCachePerBatch(t *testing.T) {
	mem := store.NewMemory()
	for _, id := range []payroll.EmployeeID{"emp-c", "emp-a", "emp-b"} {
		seed(t, mem, id)
	}
	lookup := &countingLookup{}
	svc := payroll.NewService(mem, mem, mem, lookup, payroll.WithLogger(logger.Nop()))
	rec := &recorder{}
	runner := batch.NewRunner(svc, lookup, mem, batch.WithWorkers(1), batch.WithRecorder(rec), batch.WithLogger(logger.Nop()))

	report, err := runner.RunAll(context.Background(), 2025, time.March)
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	assert.Equal(t, payroll.EmployeeID("emp-a"), report.Results[0].EmployeeID)
	assert.Equal(t, payroll.EmployeeID("emp-c"), report.Results[2].EmployeeID)
	for _, res := range report.Results {
		assert.Equal(t, payroll.StatusOK, res.Status)
		assert.True(t, res.TotalGrossPay.Equal(decimal.NewFromInt(640)), "got %s", res.TotalGrossPay)
	}
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, 2, report.CachedDates)
	assert.Equal(t, int32(2), lookup.calls.Load(), "one provider call per distinct date")
	assert.Equal(t, 3, rec.ok)

	// A second run builds a fresh cache.
	_, err = runner.RunAll(context.Background(), 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, int32(4), lookup.calls.Load())
}

func TestRun_FailureIsPerEmployee(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, "emp-ok")
	seed(t, mem, "emp-bad")
	lookup := &countingLookup{}
	svc := payroll.NewService(brokenSessions{Memory: mem, broken: "emp-bad"}, mem, mem, lookup, payroll.WithLogger(logger.Nop()))
	rec := &recorder{}
	runner := batch.NewRunner(svc, lookup, mem, batch.WithWorkers(4), batch.WithRecorder(rec), batch.WithLogger(logger.Nop()))

	report, err := runner.Run(context.Background(), 2025, time.March, []payroll.EmployeeID{"emp-ok", "emp-bad", "emp-none"})
	require.NoError(t, err)

	require.Len(t, report.Results, 3)
	byID := map[payroll.EmployeeID]batch.EmployeeResult{}
	for _, r := range report.Results {
		byID[r.EmployeeID] = r
	}
	assert.Contains(t, byID["emp-bad"].Error, "disk on fire")
	assert.Equal(t, payroll.StatusOK, byID["emp-ok"].Status)
	assert.Equal(t, payroll.StatusNotConfigured, byID["emp-none"].Status)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, rec.failed)
}

func TestRun_Cancelled(t *testing.T) {
	mem := store.NewMemory()
	seed(t, mem, "emp-1")
	lookup := &countingLookup{}
	svc := payroll.NewService(mem, mem, mem, lookup, payroll.WithLogger(logger.Nop()))
	runner := batch.NewRunner(svc, lookup, mem, batch.WithLogger(logger.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := runner.RunAll(ctx, 2025, time.March)
	assert.ErrorIs(t, err, context.Canceled)
}
