package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/batch"
	"github.com/warp/payroll-engine/holidays"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/metrics"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

var ist = time.FixedZone("IST", 2*60*60)

type testEnv struct {
	router *chi.Mux
	store  *sqlite.Store
	h      *Handler
	runner *batch.Runner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store, err := sqlite.New(":memory:", sqlite.WithLocation(ist))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	lookup := holidays.NewCalendar(store, holidays.Seasonal{})
	m := metrics.NewManager(metrics.WithRegistry(prometheus.NewRegistry()))
	svc := payroll.NewService(store, store, store, lookup,
		payroll.WithObserver(m),
		payroll.WithLogger(logger.Nop()))
	runner := batch.NewRunner(svc, lookup, store, batch.WithRecorder(m), batch.WithLogger(logger.Nop()))

	h := NewHandler(store, svc, runner, ist)
	h.logger = logger.Nop()
	h.now = func() time.Time { return time.Date(2025, time.March, 15, 12, 0, 0, 0, ist) }

	return &testEnv{router: NewRouter(h, RouterOptions{Metrics: m}), store: store, h: h, runner: runner}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func strp(s string) *string { return &s }

func (e *testEnv) setHourlyPlan(t *testing.T, emp, rate string) {
	t.Helper()
	rec := e.do(t, http.MethodPut, "/api/employees/"+emp+"/plan", map[string]any{"type": "HOURLY", "hourly_rate": rate})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

// =============================================================================
// PAYROLL
// =============================================================================

func TestPayroll_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	env.setHourlyPlan(t, "emp-1", "50")

	rec := env.do(t, http.MethodPost, "/api/employees/emp-1/sessions", SessionRequest{
		Start: "2025-03-02T08:00:00+02:00",
		End:   strp("2025-03-02T17:00:00+02:00"),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	session := decode[SessionDTO](t, rec)
	assert.NotEmpty(t, session.ID)
	assert.Equal(t, "2025-03-02", session.WorkDate)
	require.NotNil(t, session.HoursWorked)
	assert.Equal(t, "9.00", *session.HoursWorked)

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1/payroll?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[payroll.Outcome](t, rec)
	require.Equal(t, payroll.StatusOK, out.Status)
	require.NotNil(t, out.Result)
	// 8.6h at 50 + 0.4h at 62.5
	assert.True(t, out.Result.TotalGrossPay.Equal(decimal.NewFromInt(455)), "got %s", out.Result.TotalGrossPay)
	assert.True(t, out.Result.Hours.Overtime1.Equal(decimal.RequireFromString("0.4")))

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1/payroll/daily?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	daily := decode[struct {
		Days []payroll.DailyResult `json:"days"`
	}](t, rec)
	require.Len(t, daily.Days, 1)
	assert.True(t, daily.Days[0].TotalPay.Equal(decimal.NewFromInt(455)))
}

func TestPayroll_DefaultsToCurrentMonth(t *testing.T) {
	env := newTestEnv(t)
	env.setHourlyPlan(t, "emp-1", "50")

	rec := env.do(t, http.MethodGet, "/api/employees/emp-1/payroll", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[payroll.Outcome](t, rec)
	assert.Equal(t, payroll.StatusNoSessions, out.Status)
	assert.Contains(t, out.Message, "2025-03")
}

func TestPayroll_NotConfigured(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/employees/ghost/payroll?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[payroll.Outcome](t, rec)
	assert.Equal(t, payroll.StatusNotConfigured, out.Status)
	assert.Nil(t, out.Result)
	assert.Contains(t, out.Message, "ghost")
}

func TestPayroll_InvalidPeriod(t *testing.T) {
	env := newTestEnv(t)

	for _, q := range []string{"?year=2025&month=13", "?year=abc&month=1", "?month=0"} {
		rec := env.do(t, http.MethodGet, "/api/employees/emp-1/payroll"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

// =============================================================================
// SESSIONS AND PLANS
// =============================================================================

func TestCreateSession_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		req  SessionRequest
	}{
		{"bad start", SessionRequest{Start: "yesterday"}},
		{"end before start", SessionRequest{Start: "2025-03-02T17:00:00+02:00", End: strp("2025-03-02T08:00:00+02:00")}},
		{"break longer than session", SessionRequest{Start: "2025-03-02T08:00:00+02:00", End: strp("2025-03-02T09:00:00+02:00"), BreakMinutes: 90}},
		{"negative break on open session", SessionRequest{Start: "2025-03-02T08:00:00+02:00", BreakMinutes: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/employees/emp-1/sessions", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestListSessions_IncludesOpenSession(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/employees/emp-1/sessions", SessionRequest{Start: "2025-03-14T08:00:00+02:00"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1/sessions?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Sessions []SessionDTO `json:"sessions"`
	}](t, rec)
	require.Len(t, body.Sessions, 1)
	assert.Nil(t, body.Sessions[0].End)
	assert.Nil(t, body.Sessions[0].HoursWorked)
}

func TestPlan(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/employees/emp-1/plan", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/employees/emp-1/plan", map[string]any{"type": "PROJECT", "monthly_base": "9100"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1/plan", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	plan := decode[payroll.CompensationPlan](t, rec)
	assert.Equal(t, payroll.PlanMonthly, plan.Type)
	assert.Equal(t, payroll.EmployeeID("emp-1"), plan.EmployeeID)
	assert.True(t, plan.EffectiveHourlyRate().Equal(decimal.NewFromInt(50)))

	rec = env.do(t, http.MethodPut, "/api/employees/emp-1/plan", map[string]any{"type": "WEEKLY", "hourly_rate": "10"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// HOLIDAYS AND COMPENSATORY DAYS
// =============================================================================

func TestHolidayWork_GrantsCompensatoryDay(t *testing.T) {
	env := newTestEnv(t)
	env.setHourlyPlan(t, "emp-1", "50")

	rec := env.do(t, http.MethodPost, "/api/holidays", HolidayRequest{Date: "2025-04-13", Name: "Pesach I"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	holiday := decode[HolidayDTO](t, rec)
	assert.True(t, holiday.IsPaid)

	rec = env.do(t, http.MethodPost, "/api/employees/emp-1/sessions", SessionRequest{
		Start: "2025-04-13T08:00:00+02:00",
		End:   strp("2025-04-13T16:00:00+02:00"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1/payroll?year=2025&month=4", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[payroll.Outcome](t, rec)
	require.NotNil(t, out.Result)
	// 8h at 150%
	assert.True(t, out.Result.TotalGrossPay.Equal(decimal.NewFromInt(600)), "got %s", out.Result.TotalGrossPay)
	assert.Equal(t, 1, out.Result.CompensatoryDaysEarned)
	require.Len(t, out.Result.Days, 1)
	assert.Equal(t, "Pesach I", out.Result.Days[0].HolidayName)

	rec = env.do(t, http.MethodGet, "/api/employees/emp-1/compensatory-days", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	grants := decode[struct {
		Days      []payroll.CompensatoryDayGrant `json:"compensatory_days"`
		Available int                            `json:"available"`
	}](t, rec)
	require.Len(t, grants.Days, 1)
	assert.Equal(t, 1, grants.Available)
	assert.Equal(t, payroll.ReasonHoliday, grants.Days[0].Reason)

	id := grants.Days[0].ID
	rec = env.do(t, http.MethodPost, "/api/compensatory-days/"+id+"/use", UseGrantRequest{Date: "2025-04-20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = env.do(t, http.MethodPost, "/api/compensatory-days/"+id+"/use", UseGrantRequest{Date: "2025-04-21"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/compensatory-days/nope/use", UseGrantRequest{Date: "2025-04-21"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.do(t, http.MethodPost, "/api/compensatory-days/"+id+"/use", UseGrantRequest{Date: "21/04/2025"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHolidays_ListAndDelete(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/holidays", HolidayRequest{Date: "2025-09-23", Name: "Rosh Hashana"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[HolidayDTO](t, rec)

	rec = env.do(t, http.MethodPost, "/api/holidays", HolidayRequest{Date: "2025-09-24"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/holidays?year=2025", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Holidays []HolidayDTO `json:"holidays"`
	}](t, rec)
	require.Len(t, list.Holidays, 1)
	assert.Equal(t, "2025-09-23", list.Holidays[0].Date)

	rec = env.do(t, http.MethodDelete, "/api/holidays/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/holidays?year=2025", nil)
	list = decode[struct {
		Holidays []HolidayDTO `json:"holidays"`
	}](t, rec)
	assert.Empty(t, list.Holidays)
}

// =============================================================================
// BATCH, METRICS, SCHEDULER
// =============================================================================

func TestRunBatch(t *testing.T) {
	env := newTestEnv(t)
	env.setHourlyPlan(t, "emp-1", "50")
	env.setHourlyPlan(t, "emp-2", "60")
	rec := env.do(t, http.MethodPost, "/api/employees/emp-1/sessions", SessionRequest{
		Start: "2025-03-03T08:00:00+02:00",
		End:   strp("2025-03-03T16:00:00+02:00"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/payroll/batch", BatchRequest{Year: 2025, Month: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[batch.Report](t, rec)
	require.Len(t, report.Results, 2)
	assert.Equal(t, payroll.StatusOK, report.Results[0].Status)
	assert.Equal(t, payroll.StatusNoSessions, report.Results[1].Status)
	assert.Equal(t, 2, report.Succeeded)

	stored, ok, err := env.store.Monthly(context.Background(), "emp-1", 2025, time.March)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.TotalGrossPay.Equal(decimal.NewFromInt(400)))

	rec = env.do(t, http.MethodPost, "/api/payroll/batch", BatchRequest{Year: 2025, Month: 13})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.setHourlyPlan(t, "emp-1", "50")
	env.do(t, http.MethodGet, "/api/employees/emp-1/payroll?year=2025&month=3", nil)

	rec := env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `payroll_engine_calculations_total{status="no_sessions"} 1`)
	assert.Contains(t, body, `route="/api/employees/{id}/payroll"`)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_LogsRequests(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf)
	t.Cleanup(func() { logger.InitWithWriter(os.Stdout) })

	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/employees/emp-77/payroll?year=2025&month=13", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	out := buf.String()
	assert.Contains(t, out, "component=http")
	assert.Contains(t, out, "/api/employees/emp-77/payroll")
	assert.Contains(t, out, "400")
}

func TestScheduler_DueMonths(t *testing.T) {
	rs := NewRecalculationScheduler(nil, ist)

	rs.now = func() time.Time { return time.Date(2025, time.April, 2, 9, 0, 0, 0, ist) }
	assert.Equal(t, []period{{2025, time.March}, {2025, time.April}}, rs.dueMonths())

	rs.now = func() time.Time { return time.Date(2025, time.January, 1, 9, 0, 0, 0, ist) }
	assert.Equal(t, []period{{2024, time.December}, {2025, time.January}}, rs.dueMonths())

	rs.now = func() time.Time { return time.Date(2025, time.April, 20, 9, 0, 0, 0, ist) }
	assert.Equal(t, []period{{2025, time.April}}, rs.dueMonths())
}

func TestScheduler_RunNow(t *testing.T) {
	env := newTestEnv(t)
	env.setHourlyPlan(t, "emp-1", "50")
	rec := env.do(t, http.MethodPost, "/api/employees/emp-1/sessions", SessionRequest{
		Start: "2025-03-31T08:00:00+02:00",
		End:   strp("2025-03-31T16:00:00+02:00"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rs := NewRecalculationScheduler(env.runner, ist)
	rs.logger = logger.Nop()
	rs.now = func() time.Time { return time.Date(2025, time.April, 1, 6, 0, 0, 0, ist) }

	reports := rs.RunNow(context.Background())
	require.Len(t, reports, 2)
	assert.Equal(t, time.March, reports[0].Month)

	_, ok, err := env.store.Monthly(context.Background(), "emp-1", 2025, time.March)
	require.NoError(t, err)
	assert.True(t, ok, "the closed month is recalculated during the grace period")
}

func TestScheduler_StartStop(t *testing.T) {
	env := newTestEnv(t)
	rs := NewRecalculationScheduler(env.runner, ist)
	rs.logger = logger.Nop()
	rs.Interval = time.Hour

	rs.Start()
	rs.Start()
	rs.Stop()
	rs.Stop()

	rs.Enabled = false
	rs.Start()
	assert.Nil(t, rs.ticker)
}
