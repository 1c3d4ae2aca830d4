package main

import (
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/batch"
	"github.com/warp/payroll-engine/payroll"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func buildSummaryTable(w io.Writer, res payroll.MonthlyResult) table.Writer {
	t := newTable(w)
	t.SetTitle("%s %d-%02d (%s, %s)", res.EmployeeID, res.Year, int(res.Month), res.PlanType, res.Currency)
	t.AppendHeader(table.Row{"Bucket", "Hours", "Pay"})

	buckets := []struct {
		name  string
		hours decimal.Decimal
		pay   decimal.Decimal
	}{
		{"regular", res.Hours.Regular, res.Pay.Regular},
		{"overtime 125%", res.Hours.Overtime1, res.Pay.Overtime1},
		{"overtime 150%", res.Hours.Overtime2, res.Pay.Overtime2},
		{"sabbath", res.Hours.SabbathRegular, res.Pay.SabbathRegular},
		{"sabbath overtime 175%", res.Hours.SabbathOvertime1, res.Pay.SabbathOvertime1},
		{"sabbath overtime 200%", res.Hours.SabbathOvertime2, res.Pay.SabbathOvertime2},
		{"holiday", res.Hours.HolidayRegular, res.Pay.HolidayRegular},
		{"holiday overtime 175%", res.Hours.HolidayOvertime1, res.Pay.HolidayOvertime1},
		{"holiday overtime 200%", res.Hours.HolidayOvertime2, res.Pay.HolidayOvertime2},
	}
	for _, b := range buckets {
		if b.hours.IsZero() && b.pay.IsZero() {
			continue
		}
		t.AppendRow(table.Row{b.name, b.hours.StringFixed(2), b.pay.StringFixed(2)})
	}
	t.AppendSeparator()
	t.AppendRow(table.Row{"base pay", "", res.BasePay.StringFixed(2)})
	t.AppendRow(table.Row{"bonus pay", "", res.BonusPay.StringFixed(2)})
	if res.MinimumWageApplied {
		t.AppendRow(table.Row{"minimum wage supplement", "", res.MinimumWageSupplement.StringFixed(2)})
	}
	t.AppendFooter(table.Row{"total", res.TotalHours.StringFixed(2), res.TotalGrossPay.StringFixed(2)})
	t.AppendFooter(table.Row{"worked days", res.WorkedDays, ""})
	t.AppendFooter(table.Row{"compensatory days", res.CompensatoryDaysEarned, ""})
	return t
}

func buildDailyTable(w io.Writer, days []payroll.DailyResult) table.Writer {
	t := newTable(w)
	t.AppendHeader(table.Row{"Date", "Hours", "Kind", "Base", "Bonus", "Total"})
	for _, d := range days {
		t.AppendRow(table.Row{
			payroll.DateKey(d.WorkDate),
			d.HoursWorked.StringFixed(2),
			dayKind(d),
			d.BasePay.StringFixed(2),
			d.BonusPay.StringFixed(2),
			d.TotalPay.StringFixed(2),
		})
	}
	return t
}

func dayKind(d payroll.DailyResult) string {
	var kinds []string
	if d.IsHoliday {
		kinds = append(kinds, "holiday "+d.HolidayName)
	}
	if d.IsSabbath {
		kinds = append(kinds, "sabbath "+string(d.SabbathType))
	}
	if d.IsNightShift {
		kinds = append(kinds, "night")
	}
	if len(kinds) == 0 {
		return "-"
	}
	return strings.Join(kinds, ", ")
}

func buildViolationsTable(w io.Writer, violations []payroll.LegalViolation) table.Writer {
	t := newTable(w)
	t.SetTitle("Legal violations")
	t.AppendHeader(table.Row{"Code", "Hours", "Limit", "Excess", "Message"})
	for _, v := range violations {
		t.AppendRow(table.Row{v.Code, v.Hours.StringFixed(2), v.Limit.StringFixed(2), v.ExcessHours.StringFixed(2), v.Message})
	}
	return t
}

func buildBatchTable(w io.Writer, report batch.Report) table.Writer {
	t := newTable(w)
	t.SetTitle("Batch %d-%02d", report.Year, int(report.Month))
	t.AppendHeader(table.Row{"Employee", "Status", "Gross pay", "Violations", "Note"})
	for _, r := range report.Results {
		status := string(r.Status)
		note := r.Message
		if r.Error != "" {
			status = "error"
			note = r.Error
		}
		t.AppendRow(table.Row{r.EmployeeID, status, r.TotalGrossPay.StringFixed(2), r.Violations, note})
	}
	t.AppendFooter(table.Row{"", "", "", "succeeded", report.Succeeded})
	t.AppendFooter(table.Row{"", "", "", "failed", report.Failed})
	return t
}
