package payroll

import (
	"fmt"
	"time"
)

// =============================================================================
// COMPENSATORY DAYS - A day off owed for holiday or Sabbath work
// =============================================================================

type CompensatoryReason string

const (
	ReasonHoliday CompensatoryReason = "HOLIDAY"
	ReasonSabbath CompensatoryReason = "SABBATH"
)

func (r CompensatoryReason) Valid() bool {
	return r == ReasonHoliday || r == ReasonSabbath
}

// CompensatoryDayGrant is unique per (EmployeeID, DateEarned, Reason).
// DateUsed is nil until the day off is taken.
type CompensatoryDayGrant struct {
	ID         string             `json:"id"`
	EmployeeID EmployeeID         `json:"employee_id"`
	DateEarned time.Time          `json:"date_earned"`
	Reason     CompensatoryReason `json:"reason"`
	DateUsed   *time.Time         `json:"date_used,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

func (g CompensatoryDayGrant) IsUsed() bool { return g.DateUsed != nil }

// GrantKey is the idempotency key of a grant.
func GrantKey(employeeID EmployeeID, date time.Time, reason CompensatoryReason) string {
	return fmt.Sprintf("%s:%s:%s", employeeID, DateKey(date), reason)
}
