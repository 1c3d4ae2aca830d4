// Package store provides in-memory implementations of the payroll ports.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements WorkSessionSource, CompensationPlanSource and
// PayrollResultSink. Daily and monthly results are upserted by their natural
// keys; grants are unique per (employee, date, reason).
type Memory struct {
	mu       sync.RWMutex
	sessions map[payroll.EmployeeID][]payroll.WorkSession
	plans    map[payroll.EmployeeID]payroll.CompensationPlan
	daily    map[dailyKey]payroll.DailyResult
	monthly  map[monthlyKey]payroll.MonthlyResult
	grants   map[string]payroll.CompensatoryDayGrant
	now      func() time.Time
}

type dailyKey struct {
	EmployeeID payroll.EmployeeID
	Date       string
}

type monthlyKey struct {
	EmployeeID payroll.EmployeeID
	Year       int
	Month      time.Month
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[payroll.EmployeeID][]payroll.WorkSession),
		plans:    make(map[payroll.EmployeeID]payroll.CompensationPlan),
		daily:    make(map[dailyKey]payroll.DailyResult),
		monthly:  make(map[monthlyKey]payroll.MonthlyResult),
		grants:   make(map[string]payroll.CompensatoryDayGrant),
		now:      time.Now,
	}
}

// =============================================================================
// INPUTS
// =============================================================================

// AddSession stores a session, assigning an ID when empty.
func (m *Memory) AddSession(_ context.Context, s payroll.WorkSession) (payroll.WorkSession, error) {
	if s.ID == "" {
		s.ID = payroll.SessionID(uuid.NewString())
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.sessions[s.EmployeeID]
	for i, existing := range list {
		if existing.ID == s.ID {
			list[i] = s
			return s, nil
		}
	}
	m.sessions[s.EmployeeID] = append(list, s)
	return s, nil
}

// Sessions returns the sessions touching the month, ordered by start. An
// in-progress session is included when it started before the month ends.
func (m *Memory) Sessions(_ context.Context, employeeID payroll.EmployeeID, year int, month time.Month) ([]payroll.WorkSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []payroll.WorkSession
	for _, s := range m.sessions[employeeID] {
		from, to := payroll.MonthBounds(year, month, s.Start.Location())
		startsIn := !s.Start.Before(from) && s.Start.Before(to)
		endsIn := s.End != nil && s.End.After(from) && !s.End.After(to)
		openIn := s.End == nil && s.Start.Before(to)
		if startsIn || endsIn || openIn {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *Memory) SetPlan(_ context.Context, plan payroll.CompensationPlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.EmployeeID] = plan
	return nil
}

func (m *Memory) ActivePlan(_ context.Context, employeeID payroll.EmployeeID) (payroll.PlanResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	plan, ok := m.plans[employeeID]
	if !ok {
		return payroll.NotConfigured(fmt.Sprintf("no compensation plan configured for employee %s", employeeID)), nil
	}
	return payroll.Configured(plan), nil
}

// PlanEmployees lists employees with a plan, sorted.
func (m *Memory) PlanEmployees(_ context.Context) ([]payroll.EmployeeID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]payroll.EmployeeID, 0, len(m.plans))
	for id := range m.plans {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// =============================================================================
// OUTPUTS
// =============================================================================

// ReplaceDaily stores days and drops the employee's other days of the month.
func (m *Memory) ReplaceDaily(_ context.Context, employeeID payroll.EmployeeID, year int, month time.Month, days []payroll.DailyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropDaily(employeeID, year, month)
	for _, r := range days {
		m.daily[dailyKey{EmployeeID: r.EmployeeID, Date: payroll.DateKey(r.WorkDate)}] = r
	}
	return nil
}

// ClearMonth drops the daily and monthly results of an employee-month.
func (m *Memory) ClearMonth(_ context.Context, employeeID payroll.EmployeeID, year int, month time.Month) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropDaily(employeeID, year, month)
	delete(m.monthly, monthlyKey{EmployeeID: employeeID, Year: year, Month: month})
	return nil
}

func (m *Memory) dropDaily(employeeID payroll.EmployeeID, year int, month time.Month) {
	for k, r := range m.daily {
		if k.EmployeeID == employeeID && payroll.InMonth(r.WorkDate, year, month) {
			delete(m.daily, k)
		}
	}
}

func (m *Memory) SaveMonthly(_ context.Context, r payroll.MonthlyResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monthly[monthlyKey{EmployeeID: r.EmployeeID, Year: r.Year, Month: r.Month}] = r
	return nil
}

func (m *Memory) Daily(_ context.Context, employeeID payroll.EmployeeID, year int, month time.Month) ([]payroll.DailyResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.DailyResult
	for k, r := range m.daily {
		if k.EmployeeID == employeeID && payroll.InMonth(r.WorkDate, year, month) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

// Monthly returns the stored result and whether it exists.
func (m *Memory) Monthly(_ context.Context, employeeID payroll.EmployeeID, year int, month time.Month) (payroll.MonthlyResult, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.monthly[monthlyKey{EmployeeID: employeeID, Year: year, Month: month}]
	return r, ok, nil
}

// GrantCompensatoryDay creates the grant unless one exists for the key.
func (m *Memory) GrantCompensatoryDay(_ context.Context, employeeID payroll.EmployeeID, date time.Time, reason payroll.CompensatoryReason) (bool, payroll.CompensatoryDayGrant, error) {
	if !reason.Valid() {
		return false, payroll.CompensatoryDayGrant{}, fmt.Errorf("unknown compensatory reason %q", reason)
	}
	key := payroll.GrantKey(employeeID, date, reason)

	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.grants[key]; ok {
		return false, g, nil
	}
	g := payroll.CompensatoryDayGrant{
		ID:         uuid.NewString(),
		EmployeeID: employeeID,
		DateEarned: payroll.DateOf(date),
		Reason:     reason,
		CreatedAt:  m.now(),
	}
	m.grants[key] = g
	return true, g, nil
}

func (m *Memory) Grants(_ context.Context, employeeID payroll.EmployeeID) ([]payroll.CompensatoryDayGrant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []payroll.CompensatoryDayGrant
	for _, g := range m.grants {
		if g.EmployeeID == employeeID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DateEarned.Equal(out[j].DateEarned) {
			return out[i].Reason < out[j].Reason
		}
		return out[i].DateEarned.Before(out[j].DateEarned)
	})
	return out, nil
}

// UseGrant marks a grant as taken on date.
func (m *Memory) UseGrant(_ context.Context, grantID string, date time.Time) (payroll.CompensatoryDayGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, g := range m.grants {
		if g.ID != grantID {
			continue
		}
		if g.IsUsed() {
			return g, payroll.ErrGrantAlreadyUsed
		}
		used := payroll.DateOf(date)
		g.DateUsed = &used
		m.grants[k] = g
		return g, nil
	}
	return payroll.CompensatoryDayGrant{}, payroll.ErrGrantNotFound
}
