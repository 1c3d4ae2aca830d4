/*
Package batch computes many employee-months in parallel.

PURPOSE:
  Month-end runs recalculate every employee with a plan. Employees are
  independent, so they are fanned out over a bounded errgroup. The run owns
  one holidays.BatchCache: every worker reads through it, so each date is
  fetched from the remote provider at most a handful of times per run and
  the cache is dropped when the run ends.

FAILURE SEMANTICS:
  A failing employee is recorded in the Report and does not stop the others.
  Only context cancellation aborts the run.

SEE ALSO:
  - payroll/service.go: Service.Calculate, Service.WithLookup
  - holidays/cache.go: BatchCache
  - api/scheduler.go: periodic runs
*/
package batch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/holidays"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkers = 4

// EmployeeLister lists the employees a full run covers.
type EmployeeLister interface {
	PlanEmployees(ctx context.Context) ([]payroll.EmployeeID, error)
}

// Recorder receives run-level measurements. metrics.Manager implements it.
type Recorder interface {
	RecordBatch(succeeded, failed int, elapsed time.Duration)
}

// EmployeeResult is the outcome of one employee in a run.
type EmployeeResult struct {
	EmployeeID    payroll.EmployeeID    `json:"employee_id"`
	Status        payroll.OutcomeStatus `json:"status,omitempty"`
	TotalGrossPay decimal.Decimal       `json:"total_gross_pay"`
	Violations    int                   `json:"violations"`
	Message       string                `json:"message,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Report summarizes a run. Results are sorted by employee ID.
type Report struct {
	Year        int              `json:"year"`
	Month       time.Month       `json:"month"`
	Results     []EmployeeResult `json:"results"`
	Succeeded   int              `json:"succeeded"`
	Failed      int              `json:"failed"`
	CachedDates int              `json:"cached_dates"`
	Duration    time.Duration    `json:"duration_ns"`
}

// Runner runs batches against one Service.
type Runner struct {
	service   *payroll.Service
	lookup    payroll.HolidayLookup
	employees EmployeeLister
	workers   int
	recorder  Recorder
	logger    logger.Logger
}

type Option func(*Runner)

func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

func WithRecorder(rec Recorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

func WithLogger(l logger.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a runner. lookup is the long-lived holiday chain that
// each run wraps in its own BatchCache.
func NewRunner(svc *payroll.Service, lookup payroll.HolidayLookup, employees EmployeeLister, opts ...Option) *Runner {
	r := &Runner{
		service:   svc,
		lookup:    lookup,
		employees: employees,
		workers:   DefaultWorkers,
		logger:    logger.Named("batch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunAll calculates the month for every employee the lister returns.
func (r *Runner) RunAll(ctx context.Context, year int, month time.Month) (Report, error) {
	ids, err := r.employees.PlanEmployees(ctx)
	if err != nil {
		return Report{}, err
	}
	return r.Run(ctx, year, month, ids)
}

// Run calculates the month for the given employees.
func (r *Runner) Run(ctx context.Context, year int, month time.Month, employeeIDs []payroll.EmployeeID) (Report, error) {
	started := time.Now()
	cache := holidays.NewBatchCache(r.lookup)
	svc := r.service.WithLookup(cache)

	r.logger.Info(ctx, "batch started",
		logger.Int("year", year),
		logger.Int("month", int(month)),
		logger.Int("employees", len(employeeIDs)),
		logger.Int("workers", r.workers))

	var mu sync.Mutex
	results := make([]EmployeeResult, 0, len(employeeIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for _, id := range employeeIDs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.runOne(gctx, svc, id, year, month)
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].EmployeeID < results[j].EmployeeID })
	report := Report{
		Year:        year,
		Month:       month,
		Results:     results,
		CachedDates: cache.Len(),
		Duration:    time.Since(started),
	}
	for _, res := range results {
		if res.Error != "" {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	if r.recorder != nil {
		r.recorder.RecordBatch(report.Succeeded, report.Failed, report.Duration)
	}

	r.logger.Info(ctx, "batch finished",
		logger.Int("succeeded", report.Succeeded),
		logger.Int("failed", report.Failed),
		logger.Int("cached_dates", report.CachedDates),
		logger.Duration("duration", report.Duration))
	return report, nil
}

func (r *Runner) runOne(ctx context.Context, svc *payroll.Service, id payroll.EmployeeID, year int, month time.Month) EmployeeResult {
	res := EmployeeResult{EmployeeID: id}
	out, err := svc.Calculate(ctx, id, year, month)
	if err != nil {
		r.logger.Error(ctx, "employee calculation failed",
			logger.String("employee_id", string(id)),
			logger.Error(err))
		res.Error = err.Error()
		return res
	}
	res.Status = out.Status
	res.Message = out.Message
	if out.Result != nil {
		res.TotalGrossPay = out.Result.TotalGrossPay
		res.Violations = len(out.Result.LegalViolations)
	}
	return res
}
