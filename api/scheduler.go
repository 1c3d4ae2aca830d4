/*
scheduler.go - Periodic payroll recalculation

PURPOSE:
  Keeps the stored monthly summaries of the running month current by
  recalculating every employee with a plan at a fixed interval. During the
  first days of a month the previous month is recalculated too, so late
  check-outs and corrections land in the closed month.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick is one batch.Runner run (one holiday cache per run)
  - Recalculation is idempotent, so overlapping or repeated runs are safe

CONFIGURATION:
  - Interval: How often to run (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)
  - GraceDays: Days into a month during which the previous month is
    also recalculated (default: 3)

USAGE:
  scheduler := NewRecalculationScheduler(runner, loc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - batch/runner.go: Runner
  - handlers.go: RunBatch endpoint (manual recalculation)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/warp/payroll-engine/batch"
	"github.com/warp/payroll-engine/logger"
)

// RecalculationScheduler recalculates recent months in the background.
type RecalculationScheduler struct {
	Runner    *batch.Runner
	Location  *time.Location
	Interval  time.Duration
	GraceDays int
	Enabled   bool

	logger logger.Logger
	now    func() time.Time
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRecalculationScheduler creates a new scheduler.
func NewRecalculationScheduler(runner *batch.Runner, loc *time.Location) *RecalculationScheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &RecalculationScheduler{
		Runner:    runner,
		Location:  loc,
		Interval:  time.Hour,
		GraceDays: 3,
		Enabled:   true,
		logger:    logger.Named("scheduler"),
		now:       time.Now,
	}
}

// Start begins the scheduler.
func (rs *RecalculationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.logger.Info(context.Background(), "scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.Interval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)
	go rs.run()

	rs.logger.Info(context.Background(), "scheduler started", logger.Duration("interval", rs.Interval))
}

// Stop stops the scheduler and waits for a running batch to finish.
func (rs *RecalculationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		rs.logger.Info(context.Background(), "scheduler stopped")
	}
}

func (rs *RecalculationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-rs.ticker.C:
			rs.RunNow(context.Background())
		case <-rs.stop:
			return
		}
	}
}

// RunNow recalculates the due months immediately and returns the reports.
func (rs *RecalculationScheduler) RunNow(ctx context.Context) []batch.Report {
	var reports []batch.Report
	for _, p := range rs.dueMonths() {
		report, err := rs.Runner.RunAll(ctx, p.year, p.month)
		if err != nil {
			rs.logger.Error(ctx, "scheduled recalculation failed",
				logger.Int("year", p.year),
				logger.Int("month", int(p.month)),
				logger.Error(err))
			continue
		}
		reports = append(reports, report)
	}
	return reports
}

// NextRunTime returns when the next scheduled run will occur.
func (rs *RecalculationScheduler) NextRunTime() time.Time {
	return rs.now().Add(rs.Interval)
}

type period struct {
	year  int
	month time.Month
}

// dueMonths is the current month, preceded by the previous one while the
// current month is younger than GraceDays.
func (rs *RecalculationScheduler) dueMonths() []period {
	now := rs.now().In(rs.Location)
	current := period{year: now.Year(), month: now.Month()}
	if now.Day() > rs.GraceDays {
		return []period{current}
	}
	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, rs.Location).AddDate(0, -1, 0)
	return []period{{year: prev.Year(), month: prev.Month()}, current}
}
