/*
errors.go - Centralized error types for the payroll engine

ERROR CATEGORIES:
  1. Input errors - A session violates its invariants (skipped, never fatal)
  2. Configuration - No active compensation plan (typed outcome, not a crash)
  3. Collaborator errors - Holiday lookup unavailable (recovered by fallback)
  4. Programming errors - Arithmetic anomalies between totals and buckets

LegalViolation is NOT an error; see types.go.
*/
package payroll

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidSession is returned when a session violates an invariant
	// (end <= start, break longer than the session, excessive duration).
	ErrInvalidSession = errors.New("invalid work session")

	// ErrIncompleteSession is returned for sessions without a check-out.
	ErrIncompleteSession = errors.New("work session in progress")

	// ErrNoActivePlan marks an employee without a compensation plan.
	ErrNoActivePlan = errors.New("no active compensation plan")

	// ErrInvalidPlan is returned when a plan fails normalization.
	ErrInvalidPlan = errors.New("invalid compensation plan")

	// ErrInvalidPeriod is returned for a month outside 1-12.
	ErrInvalidPeriod = errors.New("invalid payroll period")

	// ErrHolidayLookupUnavailable is returned by HolidayLookup implementations
	// when the underlying provider fails. The engine recovers from it.
	ErrHolidayLookupUnavailable = errors.New("holiday lookup unavailable")

	// ErrArithmeticAnomaly signals totals that disagree with bucket sums.
	ErrArithmeticAnomaly = errors.New("arithmetic anomaly")

	// ErrGrantNotFound is returned when a compensatory day does not exist.
	ErrGrantNotFound = errors.New("compensatory day not found")

	// ErrGrantAlreadyUsed is returned when using a compensatory day twice.
	ErrGrantAlreadyUsed = errors.New("compensatory day already used")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidSessionError describes why a session was rejected.
type InvalidSessionError struct {
	SessionID SessionID
	Start     time.Time
	Reason    string
}

func (e *InvalidSessionError) Error() string {
	return fmt.Sprintf("invalid session %s at %s: %s", e.SessionID, e.Start.Format(time.RFC3339), e.Reason)
}

func (e *InvalidSessionError) Unwrap() error {
	return ErrInvalidSession
}

// ArithmeticAnomalyError reports a day whose stored pay disagrees with its
// hour buckets priced at the plan rate.
type ArithmeticAnomalyError struct {
	EmployeeID EmployeeID
	Date       time.Time
	Total      decimal.Decimal
	BucketSum  decimal.Decimal
}

func (e *ArithmeticAnomalyError) Error() string {
	return fmt.Sprintf("pay %s does not match bucket pay %s for %s on %s",
		e.Total.String(), e.BucketSum.String(), e.EmployeeID, DateKey(e.Date))
}

func (e *ArithmeticAnomalyError) Unwrap() error {
	return ErrArithmeticAnomaly
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrIncompleteSession) ||
		errors.Is(err, ErrInvalidPlan) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrGrantAlreadyUsed)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNoActivePlan) ||
		errors.Is(err, ErrGrantNotFound)
}
