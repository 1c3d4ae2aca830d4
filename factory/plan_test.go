package factory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/payroll"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestFromJSON_Hourly(t *testing.T) {
	f := NewPlanFactory("ILS")
	plan, err := f.FromJSON(PlanJSON{EmployeeID: "emp-1", Type: "hourly", HourlyRate: decPtr("50")})
	require.NoError(t, err)

	assert.Equal(t, payroll.PlanHourly, plan.Type)
	assert.True(t, plan.HourlyRate.Equal(decimal.NewFromInt(50)))
	assert.True(t, plan.MonthlyBase.IsZero())
	assert.Equal(t, "ILS", plan.Currency)
}

func TestFromJSON_DropsNonMatchingAmount(t *testing.T) {
	f := NewPlanFactory("ILS")
	plan, err := f.FromJSON(PlanJSON{
		EmployeeID:  "emp-1",
		Type:        "MONTHLY",
		HourlyRate:  decPtr("40"),
		MonthlyBase: decPtr("9100"),
		Currency:    "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, payroll.PlanMonthly, plan.Type)
	assert.True(t, plan.HourlyRate.IsZero())
	assert.Equal(t, "USD", plan.Currency)
	assert.True(t, plan.EffectiveHourlyRate().Equal(decimal.NewFromInt(50)))
}

func TestFromJSON_AutoConvertsMissingAmount(t *testing.T) {
	f := NewPlanFactory("ILS")

	plan, err := f.FromJSON(PlanJSON{EmployeeID: "emp-1", Type: "HOURLY", MonthlyBase: decPtr("7280")})
	require.NoError(t, err)
	assert.Equal(t, payroll.PlanMonthly, plan.Type)

	plan, err = f.FromJSON(PlanJSON{EmployeeID: "emp-1", Type: "MONTHLY", HourlyRate: decPtr("45")})
	require.NoError(t, err)
	assert.Equal(t, payroll.PlanHourly, plan.Type)
}

func TestFromJSON_Project(t *testing.T) {
	f := NewPlanFactory("ILS")

	tests := []struct {
		name string
		in   PlanJSON
		want payroll.PlanType
	}{
		{"explicit calculation type", PlanJSON{EmployeeID: "e", Type: "PROJECT", CalculationType: "monthly", MonthlyBase: decPtr("10000")}, payroll.PlanMonthly},
		{"inferred hourly", PlanJSON{EmployeeID: "e", Type: "PROJECT", HourlyRate: decPtr("60")}, payroll.PlanHourly},
		{"inferred monthly", PlanJSON{EmployeeID: "e", Type: "PROJECT", MonthlyBase: decPtr("10000")}, payroll.PlanMonthly},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := f.FromJSON(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, plan.Type)
			assert.NoError(t, plan.Validate())
		})
	}
}

func TestFromJSON_Rejects(t *testing.T) {
	f := NewPlanFactory("ILS")

	tests := []struct {
		name string
		in   PlanJSON
	}{
		{"missing employee", PlanJSON{Type: "HOURLY", HourlyRate: decPtr("50")}},
		{"unknown type", PlanJSON{EmployeeID: "e", Type: "DAILY", HourlyRate: decPtr("50")}},
		{"no amounts", PlanJSON{EmployeeID: "e", Type: "HOURLY"}},
		{"negative", PlanJSON{EmployeeID: "e", Type: "HOURLY", HourlyRate: decPtr("-5")}},
		{"project without amounts", PlanJSON{EmployeeID: "e", Type: "PROJECT"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.FromJSON(tt.in)
			assert.ErrorIs(t, err, payroll.ErrInvalidPlan)
		})
	}
}

func TestParsePlan(t *testing.T) {
	f := NewPlanFactory("")
	plan, err := f.ParsePlan([]byte(`{"employee_id":"emp-7","type":"HOURLY","hourly_rate":42.5}`))
	require.NoError(t, err)
	assert.True(t, plan.HourlyRate.Equal(decimal.RequireFromString("42.5")))
	assert.Equal(t, "ILS", plan.Currency)

	_, err = f.ParsePlan([]byte(`{not json`))
	assert.ErrorIs(t, err, payroll.ErrInvalidPlan)
}

func TestToJSON_RoundTripsNormalizedPlan(t *testing.T) {
	f := NewPlanFactory("ILS")
	in := payroll.CompensationPlan{
		EmployeeID:  "emp-1",
		Type:        payroll.PlanMonthly,
		MonthlyBase: decimal.NewFromInt(9100),
		Currency:    "ILS",
	}
	out, err := f.FromJSON(f.ToJSON(in))
	require.NoError(t, err)
	assert.Equal(t, in.Type, out.Type)
	assert.True(t, in.MonthlyBase.Equal(out.MonthlyBase))
}
