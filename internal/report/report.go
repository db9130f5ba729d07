// Package report flattens budget and dashboard documents into tables shared
// by the Sheets mirror, the CLI and the file exporters.
package report

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"kpiboard/internal/core"
)

// Table is a header plus rows. Cells hold either a string or a float64.
type Table struct {
	Title  string
	Header []string
	Rows   [][]any
}

// Strings renders every cell as text: amounts with two decimals and
// thousands separators.
func (t Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			out[i][j] = Cell(cell)
		}
	}
	return out
}

// Values returns the header followed by the rows, in the shape the Sheets
// API expects.
func (t Table) Values() [][]interface{} {
	out := make([][]interface{}, 0, len(t.Rows)+1)
	header := make([]interface{}, len(t.Header))
	for i, h := range t.Header {
		header[i] = h
	}
	out = append(out, header)
	for _, row := range t.Rows {
		out = append(out, append([]interface{}{}, row...))
	}
	return out
}

// Cell formats a single cell.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return Amount(x)
	case int:
		return fmt.Sprintf("%d", x)
	default:
		return fmt.Sprint(x)
	}
}

// Amount formats v with two decimals and comma thousands separators.
func Amount(v float64) string {
	s := decimal.NewFromFloat(v).StringFixed(2)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return sign + b.String() + "." + frac
}

// Percent formats a percentage with one decimal.
func Percent(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(1) + "%"
}

// BudgetHeader returns the column names of a budget table.
func BudgetHeader(cal core.FiscalCalendar) []string {
	header := []string{"Category", "Key", "Line Item", "Prior Year 1", "Prior Year 2", "Budget", "Actual"}
	header = append(header, cal.Labels()...)
	return append(header, "Variance", "% of Budget")
}

// BudgetTable lists every line item in fixed key order followed by the
// income statement totals.
func BudgetTable(doc core.BudgetDocument, cal core.FiscalCalendar) Table {
	t := Table{Title: doc.FiscalYearLabel, Header: BudgetHeader(cal)}
	for _, c := range core.Categories() {
		t.Rows = append(t.Rows, CategoryRows(doc, c)...)
	}

	s := core.SummarizeBudget(doc)
	width := len(t.Header)
	totals := []struct {
		label          string
		actual, budget float64
	}{
		{"Total Revenue", s.Actual.Revenue, s.Budget.Revenue},
		{"Total Expenses", s.Actual.Expenses, s.Budget.Expenses},
		{"Net Operating Income", s.Actual.NetOperatingIncome, s.Budget.NetOperatingIncome},
		{"Earnings Before Tax", s.Actual.EarningsBeforeTax, s.Budget.EarningsBeforeTax},
		{"Net Earnings", s.Actual.NetEarnings, s.Budget.NetEarnings},
	}
	for _, tot := range totals {
		row := make([]any, width)
		row[0] = "summary"
		row[2] = tot.label
		row[5] = tot.budget
		row[6] = tot.actual
		row[width-2] = core.Variance(tot.actual, tot.budget)
		row[width-1] = Percent(core.PercentOfBudget(tot.actual, tot.budget))
		t.Rows = append(t.Rows, row)
	}
	return t
}

// CategoryRows returns one row per line item of c, in fixed key order.
func CategoryRows(doc core.BudgetDocument, c core.Category) [][]any {
	items := doc.Items(c)
	rows := make([][]any, 0, len(c.Keys()))
	for _, key := range c.Keys() {
		it := items[key]
		row := []any{string(c), key, c.KeyLabel(key), it.PriorYearActual1, it.PriorYearActual2, it.Budget, it.ActualsTotal}
		for _, m := range it.MonthlyActuals {
			row = append(row, m)
		}
		row = append(row,
			core.Variance(it.ActualsTotal, it.Budget),
			Percent(core.PercentOfBudget(it.ActualsTotal, it.Budget)),
		)
		rows = append(rows, row)
	}
	return rows
}

// CategoryTable is the budget table restricted to one category.
func CategoryTable(doc core.BudgetDocument, c core.Category, cal core.FiscalCalendar) Table {
	return Table{
		Title:  c.Label(),
		Header: BudgetHeader(cal),
		Rows:   CategoryRows(doc, c),
	}
}

// DashboardTable lists the dashboard figures as metric/value pairs.
func DashboardTable(doc core.DashboardDocument) Table {
	s := core.SummarizeDashboard(doc)
	t := Table{Title: "Dashboard", Header: []string{"Metric", "Value"}}
	add := func(metric string, v any) {
		t.Rows = append(t.Rows, []any{metric, v})
	}

	add("Revenue Target", doc.RevenueTarget)
	add("Revenue Current", doc.RevenueCurrent)
	add("Revenue Progress", Percent(s.RevenueProgress))
	add("Revenue Remaining", s.RevenueRemaining)
	add("Revenue Status", string(s.RevenueStatus))
	add("Milestone Cash", doc.Milestones.Cash)
	add("Milestone Escrow", doc.Milestones.Escrow)
	add("Milestones Total", s.MilestonesTotal)
	for _, it := range doc.OutsideSpending {
		add("Outside Spending: "+it.Label, it.Amount)
	}
	add("Outside Spending Total", s.OutsideSpendingTotal)
	add("YTD Revenue", doc.YTD.Revenue)
	add("YTD Expenses", doc.YTD.Expenses)
	add("YTD Profit", s.Profit)
	add("Profit Margin", Percent(s.ProfitMargin))
	for _, g := range doc.Goals {
		add("Goal: "+g.Goal, string(g.Status))
	}
	return t
}
