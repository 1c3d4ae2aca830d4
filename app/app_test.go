package app

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/payroll"
)

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func testConfig() *config.Config {
	cfg := config.New(context.Background())
	cfg.DBPath = ":memory:"
	cfg.HolidayCachePath = ":memory:"
	cfg.BatchWorkers = 2
	return cfg
}

func TestNew_WiresServiceAndRunner(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig())
	require.NoError(t, err)
	defer a.Close()

	rate := payroll.DefaultRules().MinimumWage
	assert.True(t, a.Service.Rules().MinimumWage.Equal(rate))
	assert.Equal(t, "ILS", a.Service.Rules().LocalCurrency)

	out, err := a.Service.Calculate(ctx, "nobody", 2025, time.March)
	require.NoError(t, err)
	assert.Equal(t, payroll.StatusNotConfigured, out.Status)

	_, err = a.Store.SavePlan(ctx, factory.PlanJSON{EmployeeID: "emp-1", Type: "HOURLY", HourlyRate: decPtr("50")})
	require.NoError(t, err)

	report, err := a.Runner.RunAll(ctx, 2025, time.March)
	require.NoError(t, err)
	require.Len(t, report.Results, 1)
	assert.Equal(t, payroll.StatusNoSessions, report.Results[0].Status)
}

func TestNew_RejectsBadTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus"

	_, err := New(context.Background(), cfg)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
