/*
handlers.go - HTTP API handlers for the payroll engine

PURPOSE:
  Exposes the engine and its stores via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to payroll.Service,
  the sqlite store and the batch runner.

ENDPOINTS:
  Payroll:
    GET    /api/employees/{id}/payroll?year=&month=        Calculate and persist a month
    GET    /api/employees/{id}/payroll/daily?year=&month=  Stored daily results
    POST   /api/payroll/batch                              Recalculate many employees

  Sessions:
    POST   /api/employees/{id}/sessions                    Record a session
    GET    /api/employees/{id}/sessions?year=&month=       Sessions of a month

  Plans:
    PUT    /api/employees/{id}/plan                        Set the compensation plan
    GET    /api/employees/{id}/plan                        Active (normalized) plan

  Compensatory days:
    GET    /api/employees/{id}/compensatory-days           Grants of an employee
    POST   /api/compensatory-days/{id}/use                 Take a granted day off

  Holidays:
    GET    /api/holidays?year=                             Calendar entries of a year
    POST   /api/holidays                                   Create or replace an entry
    DELETE /api/holidays/{id}                              Remove an entry

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (grant already used)
  - 500: Internal errors
  A missing plan or an empty month is not an error: the payroll endpoint
  answers 200 with the Outcome status.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/payroll-engine/batch"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/logger"
	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Service  *payroll.Service
	Runner   *batch.Runner
	Location *time.Location

	logger logger.Logger
	now    func() time.Time
}

// NewHandler creates a new handler. loc is the zone used for default
// periods and date-only inputs.
func NewHandler(store *sqlite.Store, svc *payroll.Service, runner *batch.Runner, loc *time.Location) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{
		Store:    store,
		Service:  svc,
		Runner:   runner,
		Location: loc,
		logger:   logger.Named("api"),
		now:      time.Now,
	}
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// GetPayroll calculates, persists and returns an employee-month.
// GET /api/employees/{id}/payroll
func (h *Handler) GetPayroll(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))
	year, month, err := h.parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	out, err := h.Service.Calculate(r.Context(), employeeID, year, month)
	if err != nil {
		h.writeServiceError(w, r, "Failed to calculate payroll", err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// GetDailyResults returns the stored daily results of a month.
// GET /api/employees/{id}/payroll/daily
func (h *Handler) GetDailyResults(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))
	year, month, err := h.parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	days, err := h.Store.Daily(r.Context(), employeeID, year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load daily results", err)
		return
	}
	if days == nil {
		days = []payroll.DailyResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

// RunBatch recalculates a month for many employees.
// POST /api/payroll/batch
func (h *Handler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		writeError(w, http.StatusBadRequest, "year and month (1-12) are required", nil)
		return
	}

	var (
		report batch.Report
		err    error
	)
	if len(req.EmployeeIDs) == 0 {
		report, err = h.Runner.RunAll(r.Context(), req.Year, time.Month(req.Month))
	} else {
		ids := make([]payroll.EmployeeID, len(req.EmployeeIDs))
		for i, id := range req.EmployeeIDs {
			ids[i] = payroll.EmployeeID(id)
		}
		report, err = h.Runner.Run(r.Context(), req.Year, time.Month(req.Month), ids)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Batch failed", err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession records a check-in, or a complete session.
// POST /api/employees/{id}/sessions
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))

	var req SessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start (use RFC 3339)", err)
		return
	}
	session := payroll.WorkSession{
		ID:           payroll.SessionID(req.ID),
		EmployeeID:   employeeID,
		Start:        start.In(h.Location),
		BreakMinutes: req.BreakMinutes,
	}
	if req.End != nil && *req.End != "" {
		end, err := time.Parse(time.RFC3339, *req.End)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end (use RFC 3339)", err)
			return
		}
		end = end.In(h.Location)
		session.End = &end
		if err := payroll.ValidateSession(session); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid session", err)
			return
		}
	} else if req.BreakMinutes < 0 {
		writeError(w, http.StatusBadRequest, "Invalid session", errors.New("negative break"))
		return
	}

	saved, err := h.Store.SaveSession(r.Context(), session)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save session", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionDTO(saved))
}

// ListSessions returns the sessions of a month.
// GET /api/employees/{id}/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	employeeID := payroll.EmployeeID(chi.URLParam(r, "id"))
	year, month, err := h.parsePeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	sessions, err := h.Store.Sessions(r.Context(), employeeID, year, month)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions", err)
		return
	}
	dtos := make([]SessionDTO, len(sessions))
	for i, s := range sessions {
		dtos[i] = toSessionDTO(s)
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": dtos})
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// PutPlan sets the compensation plan. The employee comes from the path.
// PUT /api/employees/{id}/plan
func (h *Handler) PutPlan(w http.ResponseWriter, r *http.Request) {
	var pj factory.PlanJSON
	if err := json.NewDecoder(r.Body).Decode(&pj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	pj.EmployeeID = chi.URLParam(r, "id")

	plan, err := h.Store.SavePlan(r.Context(), pj)
	if err != nil {
		if errors.Is(err, payroll.ErrInvalidPlan) {
			writeError(w, http.StatusBadRequest, "Invalid plan", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// GetPlan returns the active plan after normalization.
// GET /api/employees/{id}/plan
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	res, err := h.Store.ActivePlan(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load plan", err)
		return
	}
	if !res.IsConfigured() {
		writeError(w, http.StatusNotFound, "Plan not configured", errors.New(res.Reason))
		return
	}
	writeJSON(w, http.StatusOK, res.Plan)
}

// =============================================================================
// COMPENSATORY DAY HANDLERS
// =============================================================================

// ListCompensatoryDays returns an employee's grants.
// GET /api/employees/{id}/compensatory-days
func (h *Handler) ListCompensatoryDays(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Store.Grants(r.Context(), payroll.EmployeeID(chi.URLParam(r, "id")))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list compensatory days", err)
		return
	}
	if grants == nil {
		grants = []payroll.CompensatoryDayGrant{}
	}

	available := 0
	for _, g := range grants {
		if !g.IsUsed() {
			available++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"compensatory_days": grants,
		"available":         available,
	})
}

// UseCompensatoryDay marks a grant as taken.
// POST /api/compensatory-days/{id}/use
func (h *Handler) UseCompensatoryDay(w http.ResponseWriter, r *http.Request) {
	var req UseGrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	grant, err := h.Store.UseGrant(r.Context(), chi.URLParam(r, "id"), date)
	switch {
	case errors.Is(err, payroll.ErrGrantNotFound):
		writeError(w, http.StatusNotFound, "Compensatory day not found", err)
	case errors.Is(err, payroll.ErrGrantAlreadyUsed):
		writeError(w, http.StatusConflict, "Compensatory day already used", err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Failed to use compensatory day", err)
	default:
		writeJSON(w, http.StatusOK, grant)
	}
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// ListHolidays returns the calendar entries of a year.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.now().In(h.Location).Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid year", err)
			return
		}
		year = y
	}

	holidays, err := h.Store.ListHolidays(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get holidays", err)
		return
	}
	dtos := make([]HolidayDTO, 0, len(holidays))
	for _, hol := range holidays {
		dtos = append(dtos, toHolidayDTO(hol))
	}
	writeJSON(w, http.StatusOK, map[string]any{"holidays": dtos})
}

// CreateHoliday creates or replaces the entry of a date.
// POST /api/holidays
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req HolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Date == "" || strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "Date and name are required", nil)
		return
	}
	date, err := time.ParseInLocation(dateLayout, req.Date, h.Location)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format (use YYYY-MM-DD)", err)
		return
	}

	isPaid := true
	if req.IsPaid != nil {
		isPaid = *req.IsPaid
	}
	saved, err := h.Store.SaveHoliday(r.Context(), sqlite.Holiday{
		Date:      date,
		Name:      req.Name,
		IsPaid:    isPaid,
		Recurring: req.Recurring,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(saved))
}

// DeleteHoliday deletes a holiday.
// DELETE /api/holidays/{id}
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteHoliday(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete holiday", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "deleted"})
}

// Health reports whether the database answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// parsePeriod reads ?year=&month=, defaulting to the current month.
func (h *Handler) parsePeriod(r *http.Request) (int, time.Month, error) {
	now := h.now().In(h.Location)
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 {
			return 0, 0, fmt.Errorf("year %q is not a valid year", v)
		}
		year = y
	}
	if v := q.Get("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			return 0, 0, fmt.Errorf("month %q is not in 1-12", v)
		}
		month = time.Month(m)
	}
	return year, month, nil
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	switch {
	case payroll.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case payroll.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	default:
		h.logger.Error(r.Context(), message, logger.Error(err), logger.String("path", r.URL.Path))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
