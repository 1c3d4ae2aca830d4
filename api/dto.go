/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Engine results
  (payroll.Outcome, MonthlyResult, DailyResult, CompensatoryDayGrant) carry
  their own JSON tags and are returned as-is; the types here cover inputs
  and records whose storage form differs from the wire form.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Sessions:      SessionRequest, SessionDTO
  Plans:         factory.PlanJSON (request and response)
  Holidays:      HolidayRequest, HolidayDTO
  Compensatory:  UseGrantRequest
  Batch:         BatchRequest (response is batch.Report)

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/plan.go: PlanJSON type
*/
package api

import (
	"time"

	"github.com/warp/payroll-engine/payroll"
	"github.com/warp/payroll-engine/store/sqlite"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// SessionRequest records a check-in, optionally with its check-out.
// Times are RFC 3339 with an offset.
type SessionRequest struct {
	ID           string  `json:"id,omitempty"`
	Start        string  `json:"start"`
	End          *string `json:"end,omitempty"`
	BreakMinutes int     `json:"break_minutes"`
}

// SessionDTO represents a work session in API responses.
type SessionDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	WorkDate     string  `json:"work_date"`
	Start        string  `json:"start"`
	End          *string `json:"end,omitempty"`
	BreakMinutes int     `json:"break_minutes"`
	HoursWorked  *string `json:"hours_worked,omitempty"`
}

func toSessionDTO(s payroll.WorkSession) SessionDTO {
	dto := SessionDTO{
		ID:           string(s.ID),
		EmployeeID:   string(s.EmployeeID),
		WorkDate:     payroll.DateKey(s.WorkDate()),
		Start:        s.Start.Format(time.RFC3339),
		BreakMinutes: s.BreakMinutes,
	}
	if s.End != nil {
		end := s.End.Format(time.RFC3339)
		dto.End = &end
		if payroll.ValidateSession(s) == nil {
			hours := payroll.HoursWorked(s).StringFixed(2)
			dto.HoursWorked = &hours
		}
	}
	return dto
}

// HolidayRequest creates or replaces the calendar entry of a date.
// IsPaid defaults to true.
type HolidayRequest struct {
	Date      string `json:"date"`
	Name      string `json:"name"`
	IsPaid    *bool  `json:"is_paid,omitempty"`
	Recurring bool   `json:"recurring"`
}

// HolidayDTO represents a calendar entry.
type HolidayDTO struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Name      string `json:"name"`
	IsPaid    bool   `json:"is_paid"`
	Recurring bool   `json:"recurring"`
}

func toHolidayDTO(h sqlite.Holiday) HolidayDTO {
	return HolidayDTO{
		ID:        h.ID,
		Date:      h.Date.Format(dateLayout),
		Name:      h.Name,
		IsPaid:    h.IsPaid,
		Recurring: h.Recurring,
	}
}

// UseGrantRequest marks a compensatory day as taken.
type UseGrantRequest struct {
	Date string `json:"date"`
}

// BatchRequest recalculates a month. Without employee_ids every employee
// with a plan is included.
type BatchRequest struct {
	Year        int      `json:"year"`
	Month       int      `json:"month"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
