/*
Package factory converts stored or submitted plan documents into the
normalized payroll.CompensationPlan the engine consumes.

PURPOSE:
  Plans arrive as JSON from the HTTP API and sit in the plans table in the
  same shape. Upstream plans may be of type PROJECT or carry both amounts;
  the engine only accepts HOURLY or MONTHLY with exactly one positive
  amount. All of that is resolved here, once, at load time.

JSON SCHEMA:
  {
    "employee_id": "emp-1",
    "type": "PROJECT",
    "calculation_type": "HOURLY",
    "hourly_rate": "50",
    "monthly_base": null,
    "currency": "ILS"
  }

NORMALIZATION RULES:
  1. PROJECT takes its calculation_type; without one, whichever amount is
     positive decides (hourly first).
  2. A declared type whose amount is missing converts to the other type when
     that amount is positive.
  3. The amount not matching the final type is dropped.
  4. Currency defaults to the configured local currency and is upper-cased.

SEE ALSO:
  - payroll/plan.go: CompensationPlan and its invariant
*/
package factory

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/payroll"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the document form of a compensation plan.
type PlanJSON struct {
	EmployeeID      string           `json:"employee_id"`
	Type            string           `json:"type"`
	CalculationType string           `json:"calculation_type,omitempty"`
	HourlyRate      *decimal.Decimal `json:"hourly_rate,omitempty"`
	MonthlyBase     *decimal.Decimal `json:"monthly_base,omitempty"`
	Currency        string           `json:"currency,omitempty"`
}

const (
	typeHourly  = "HOURLY"
	typeMonthly = "MONTHLY"
	typeProject = "PROJECT"
)

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory normalizes plan documents.
type PlanFactory struct {
	defaultCurrency string
}

// NewPlanFactory creates a factory that fills missing currencies with
// defaultCurrency.
func NewPlanFactory(defaultCurrency string) *PlanFactory {
	if defaultCurrency == "" {
		defaultCurrency = "ILS"
	}
	return &PlanFactory{defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// ParsePlan parses and normalizes a JSON document.
func (f *PlanFactory) ParsePlan(data []byte) (payroll.CompensationPlan, error) {
	var pj PlanJSON
	if err := json.Unmarshal(data, &pj); err != nil {
		return payroll.CompensationPlan{}, fmt.Errorf("%w: failed to parse plan JSON: %v", payroll.ErrInvalidPlan, err)
	}
	return f.FromJSON(pj)
}

// FromJSON normalizes pj and validates the result.
func (f *PlanFactory) FromJSON(pj PlanJSON) (payroll.CompensationPlan, error) {
	if strings.TrimSpace(pj.EmployeeID) == "" {
		return payroll.CompensationPlan{}, fmt.Errorf("%w: employee_id is required", payroll.ErrInvalidPlan)
	}

	hourly := amount(pj.HourlyRate)
	monthly := amount(pj.MonthlyBase)
	if hourly.IsNegative() || monthly.IsNegative() {
		return payroll.CompensationPlan{}, fmt.Errorf("%w: amounts must not be negative", payroll.ErrInvalidPlan)
	}

	declared := strings.ToUpper(strings.TrimSpace(pj.Type))
	if declared == typeProject {
		declared = strings.ToUpper(strings.TrimSpace(pj.CalculationType))
		if declared == "" {
			declared = inferType(hourly, monthly)
		}
	}

	var planType payroll.PlanType
	switch declared {
	case typeHourly:
		planType = payroll.PlanHourly
		if !hourly.IsPositive() && monthly.IsPositive() {
			planType = payroll.PlanMonthly
		}
	case typeMonthly:
		planType = payroll.PlanMonthly
		if !monthly.IsPositive() && hourly.IsPositive() {
			planType = payroll.PlanHourly
		}
	default:
		return payroll.CompensationPlan{}, fmt.Errorf("%w: unknown plan type %q", payroll.ErrInvalidPlan, pj.Type)
	}

	plan := payroll.CompensationPlan{
		EmployeeID: payroll.EmployeeID(pj.EmployeeID),
		Type:       planType,
		Currency:   strings.ToUpper(strings.TrimSpace(pj.Currency)),
	}
	if plan.Currency == "" {
		plan.Currency = f.defaultCurrency
	}
	if planType == payroll.PlanHourly {
		plan.HourlyRate = hourly
	} else {
		plan.MonthlyBase = monthly
	}

	if err := plan.Validate(); err != nil {
		return payroll.CompensationPlan{}, err
	}
	return plan, nil
}

// ToJSON converts a normalized plan back to its document form.
func (f *PlanFactory) ToJSON(plan payroll.CompensationPlan) PlanJSON {
	pj := PlanJSON{
		EmployeeID: string(plan.EmployeeID),
		Currency:   plan.Currency,
	}
	switch plan.Type {
	case payroll.PlanMonthly:
		pj.Type = typeMonthly
		v := plan.MonthlyBase
		pj.MonthlyBase = &v
	default:
		pj.Type = typeHourly
		v := plan.HourlyRate
		pj.HourlyRate = &v
	}
	return pj
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func amount(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func inferType(hourly, monthly decimal.Decimal) string {
	switch {
	case hourly.IsPositive():
		return typeHourly
	case monthly.IsPositive():
		return typeMonthly
	default:
		return ""
	}
}
