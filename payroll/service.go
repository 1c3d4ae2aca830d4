package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/warp/payroll-engine/logger"
)

// =============================================================================
// OUTCOME - Typed result of a monthly calculation request
// =============================================================================

type OutcomeStatus string

const (
	StatusOK            OutcomeStatus = "ok"
	StatusNotConfigured OutcomeStatus = "not_configured"
	StatusNoSessions    OutcomeStatus = "no_sessions"
)

// Outcome is always returned for an employee-month. Result is set only for
// StatusOK; Message explains the other states.
type Outcome struct {
	Status  OutcomeStatus  `json:"status"`
	Result  *MonthlyResult `json:"result,omitempty"`
	Message string         `json:"message,omitempty"`
}

// =============================================================================
// SERVICE - Wires the ports to the engine
// =============================================================================

// Service loads plans and sessions, runs the engine and persists results.
// It holds no per-calculation state and is safe for concurrent use when its
// collaborators are.
type Service struct {
	sessions WorkSessionSource
	plans    CompensationPlanSource
	sink     PayrollResultSink
	lookup   HolidayLookup
	rules    Rules
	observer Observer
	logger   logger.Logger
}

type ServiceOption func(*Service)

func WithRules(r Rules) ServiceOption {
	return func(s *Service) { s.rules = r }
}

func WithObserver(o Observer) ServiceOption {
	return func(s *Service) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithLogger(l logger.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service. sink may be nil for read-only previews.
func NewService(sessions WorkSessionSource, plans CompensationPlanSource, sink PayrollResultSink, lookup HolidayLookup, opts ...ServiceOption) *Service {
	s := &Service{
		sessions: sessions,
		plans:    plans,
		sink:     sink,
		lookup:   lookup,
		rules:    DefaultRules(),
		observer: nopObserver{},
		logger:   logger.Get().Named("payroll"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLookup returns a copy of the service using l. Batch runs use it to
// attach a cache whose lifetime is the batch.
func (s *Service) WithLookup(l HolidayLookup) *Service {
	c := *s
	c.lookup = l
	return &c
}

// Rules returns the statutory parameters in use.
func (s *Service) Rules() Rules { return s.rules }

// Calculate computes and persists the MonthlyResult of one employee-month.
// A missing plan and an empty month are Outcomes, not errors; errors are
// storage failures and strict arithmetic anomalies.
func (s *Service) Calculate(ctx context.Context, employeeID EmployeeID, year int, month time.Month) (Outcome, error) {
	started := time.Now()
	out, err := s.calculate(ctx, employeeID, year, month)
	if err != nil {
		return Outcome{}, err
	}
	s.observer.CalculationFinished(out.Status, time.Since(started))
	return out, nil
}

func (s *Service) calculate(ctx context.Context, employeeID EmployeeID, year int, month time.Month) (Outcome, error) {
	if month < time.January || month > time.December {
		return Outcome{}, fmt.Errorf("%w: month %d out of range", ErrInvalidPeriod, month)
	}

	planRes, err := s.plans.ActivePlan(ctx, employeeID)
	if err != nil {
		return Outcome{}, fmt.Errorf("load plan for %s: %w", employeeID, err)
	}
	if !planRes.IsConfigured() {
		msg := planRes.Reason
		if msg == "" {
			msg = fmt.Sprintf("no compensation plan configured for employee %s", employeeID)
		}
		s.logger.Info(ctx, "payroll not configured",
			logger.String("employee_id", string(employeeID)),
			logger.String("reason", msg))
		return Outcome{Status: StatusNotConfigured, Message: msg}, nil
	}

	sessions, err := s.sessions.Sessions(ctx, employeeID, year, month)
	if err != nil {
		return Outcome{}, fmt.Errorf("load sessions for %s: %w", employeeID, err)
	}
	if len(sessions) == 0 {
		if s.sink != nil {
			if err := s.sink.ClearMonth(ctx, employeeID, year, month); err != nil {
				return Outcome{}, fmt.Errorf("clear results %s %d-%02d: %w", employeeID, year, int(month), err)
			}
		}
		return Outcome{
			Status:  StatusNoSessions,
			Message: fmt.Sprintf("no work sessions for employee %s in %d-%02d", employeeID, year, int(month)),
		}, nil
	}

	dailyOpts := []DailyOption{WithDailyObserver(s.observer), WithDailyLogger(s.logger.Named("daily"))}
	if s.sink != nil {
		dailyOpts = append(dailyOpts, WithGranter(s.sink))
	}
	agg := NewMonthlyAggregator(NewDailyCalculator(s.lookup, dailyOpts...), s.rules, s.logger.Named("monthly"))

	res, err := agg.Aggregate(ctx, employeeID, year, month, planRes.Plan, sessions)
	if err != nil {
		return Outcome{}, err
	}
	s.report(ctx, res)

	if s.sink != nil {
		if err := s.sink.ReplaceDaily(ctx, employeeID, year, month, res.Days); err != nil {
			return Outcome{}, fmt.Errorf("save daily %s %d-%02d: %w", employeeID, year, int(month), err)
		}
		if err := s.sink.SaveMonthly(ctx, res); err != nil {
			return Outcome{}, fmt.Errorf("save monthly %s %d-%02d: %w", employeeID, year, int(month), err)
		}
	}
	return Outcome{Status: StatusOK, Result: &res}, nil
}

func (s *Service) report(ctx context.Context, res MonthlyResult) {
	s.observer.ViolationsReported(res.LegalViolations)
	if len(res.SkippedSessions) > 0 {
		s.observer.SessionsSkipped(len(res.SkippedSessions))
	}
	if res.MinimumWageApplied {
		s.observer.MinimumWageApplied()
	}
	s.logger.Debug(ctx, "payroll calculated",
		logger.String("employee_id", string(res.EmployeeID)),
		logger.Int("year", res.Year),
		logger.Int("month", int(res.Month)),
		logger.Decimal("total_hours", res.TotalHours),
		logger.Decimal("total_gross_pay", res.TotalGrossPay),
		logger.Int("violations", len(res.LegalViolations)))
}
