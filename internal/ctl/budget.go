package ctl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"kpiboard/internal/autosave"
	"kpiboard/internal/client"
	"kpiboard/internal/core"
	"kpiboard/internal/export"
	"kpiboard/internal/report"
)

func (a *App) budgetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Show, edit and export the annual budget",
	}

	var months bool
	show := &cobra.Command{
		Use:   "show [category]",
		Short: "Print budget line items, optionally for one category",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cats := core.Categories()
			if len(args) == 1 {
				c, err := core.ParseCategory(args[0])
				if err != nil {
					return fmt.Errorf("%w: %q", err, args[0])
				}
				cats = []core.Category{c}
			}
			cal, err := a.calendar()
			if err != nil {
				return err
			}
			doc, err := a.client().Budget(cmd.Context())
			if err != nil {
				return fmt.Errorf("load budget: %w", err)
			}
			fmt.Fprintln(a.out, cyan(doc.FiscalYearLabel))
			for _, c := range cats {
				a.printCategory(doc, c, cal, months)
			}
			return nil
		},
	}
	show.Flags().BoolVarP(&months, "months", "m", false, "include the twelve monthly actuals")

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the income statement, actual against budget",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client().BudgetSummary(cmd.Context())
			if err != nil {
				return fmt.Errorf("load budget summary: %w", err)
			}
			a.printBudgetSummary(resp.Summary)
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <category>.<key> <month> <value>",
		Short: "Set one monthly actual and save immediately",
		Long: `Sets one monthly actual and recomputes the line item total.
<month> is a fiscal index (0 is the first month of the fiscal year) or a
month name such as Sep.`,
		Example: "  kpictl budget set expenses.rent Sep 12,500",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setMonthlyActual(cmd.Context(), args[0], args[1], args[2])
		},
	}

	edit := &cobra.Command{
		Use:   "edit",
		Short: "Apply edits read from stdin, saving after each quiet period",
		Long: `Reads one edit per line from stdin:

  <category>.<key> <month> <value>
  <category>.<key> budget <value>
  fiscalYearLabel <label>

Unreadable or negative values are stored as 0. Pending edits are written
when input ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editBudget(cmd.Context())
		},
	}

	var format, dir string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the budget to a csv, json or pdf file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cal, err := a.calendar()
			if err != nil {
				return err
			}
			doc, err := a.client().Budget(cmd.Context())
			if err != nil {
				return fmt.Errorf("load budget: %w", err)
			}
			path, err := export.Budget(doc, cal, f, dir)
			if err != nil {
				return err
			}
			successf(a.out, "Exported budget to %s", path)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, json or pdf")
	exportCmd.Flags().StringVarP(&dir, "out", "o", ".", "output directory")

	cmd.AddCommand(show, summary, set, edit, exportCmd)
	return cmd
}

// printCategory renders one category. Without months it keeps the label,
// prior years, budget, actual and variance columns.
func (a *App) printCategory(doc core.BudgetDocument, c core.Category, cal core.FiscalCalendar, months bool) {
	t := report.CategoryTable(doc, c, cal)
	width := len(t.Header)
	moreIsBetter := c == core.CategoryRevenue

	project := func(cells []string) []string {
		if months {
			return cells[2:]
		}
		out := append([]string{}, cells[2:7]...)
		return append(out, cells[width-2:]...)
	}

	data := [][]string{project(t.Header)}
	for _, row := range t.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = report.Cell(v)
		}
		if variance, ok := row[width-2].(float64); ok {
			cells[width-2] = signed(variance, moreIsBetter)
		}
		data = append(data, project(cells))
	}
	renderTable(a.out, t.Title, data)
}

func (a *App) printBudgetSummary(s core.BudgetSummary) {
	lines := []struct {
		label          string
		actual, budget float64
		moreIsBetter   bool
	}{
		{"Revenue", s.Actual.Revenue, s.Budget.Revenue, true},
		{"Expenses", s.Actual.Expenses, s.Budget.Expenses, false},
		{"Net Operating Income", s.Actual.NetOperatingIncome, s.Budget.NetOperatingIncome, true},
		{"Interest Expense", s.Actual.InterestExpense, s.Budget.InterestExpense, false},
		{"Earnings Before Tax", s.Actual.EarningsBeforeTax, s.Budget.EarningsBeforeTax, true},
		{"Income Taxes", s.Actual.IncomeTaxes, s.Budget.IncomeTaxes, false},
		{"Net Earnings", s.Actual.NetEarnings, s.Budget.NetEarnings, true},
	}

	data := [][]string{{"", "Actual", "Budget", "Variance", "% of Budget"}}
	for _, l := range lines {
		data = append(data, []string{
			l.label,
			report.Amount(l.actual),
			report.Amount(l.budget),
			signed(core.Variance(l.actual, l.budget), l.moreIsBetter),
			report.Percent(core.PercentOfBudget(l.actual, l.budget)),
		})
	}
	renderTable(a.out, s.FiscalYearLabel, data)

	track := red("off track")
	if s.OnTrack {
		track = green("on track")
	}
	fmt.Fprintf(a.out, "Revenue progress %s, expense progress %s, %s\n",
		report.Percent(s.RevenueProgress), report.Percent(s.ExpenseProgress), track)
}

func (a *App) budgetSession(c *client.Client, doc core.BudgetDocument) *autosave.Session[core.BudgetDocument] {
	save := func(ctx context.Context, doc core.BudgetDocument) (core.BudgetDocument, error) {
		res, err := c.ReplaceBudget(ctx, doc)
		if err != nil {
			return doc, err
		}
		if res.Warning != "" {
			warnf(a.out, "%s", res.Warning)
		}
		return res.Data, nil
	}
	return autosave.New(doc, save,
		autosave.WithDebounce[core.BudgetDocument](a.debounce),
		autosave.OnSaved(func(core.BudgetDocument) { successf(a.out, "Budget saved") }),
		autosave.OnError[core.BudgetDocument](func(err error) { errorf(a.out, "Save failed, edits kept: %v", err) }),
	)
}

func (a *App) setMonthlyActual(ctx context.Context, ref, monthArg, valueArg string) error {
	c, key, err := parseItemRef(ref)
	if err != nil {
		return err
	}
	cal, err := a.calendar()
	if err != nil {
		return err
	}
	month, err := parseMonth(monthArg, cal)
	if err != nil {
		return err
	}
	value, err := parseAmount(valueArg)
	if err != nil {
		return err
	}

	cl := a.client()
	doc, err := cl.Budget(ctx)
	if err != nil {
		return fmt.Errorf("load budget: %w", err)
	}
	session := a.budgetSession(cl, doc)

	var editErr error
	if err := session.Edit(func(d core.BudgetDocument) core.BudgetDocument {
		out, err := d.SetMonthlyActual(c, key, month, value)
		if err != nil {
			editErr = err
			return d
		}
		return out
	}); err != nil {
		return err
	}
	if editErr != nil {
		return editErr
	}
	if err := session.SaveNow(ctx); err != nil {
		return fmt.Errorf("save budget: %w", err)
	}

	item, _ := session.Local().LineItem(c, key)
	fmt.Fprintf(a.out, "%s %s: %s, total %s\n",
		c.KeyLabel(key), cal.MonthLabel(month), report.Amount(value), report.Amount(item.ActualsTotal))
	return session.Close(ctx)
}

func (a *App) editBudget(ctx context.Context) error {
	cal, err := a.calendar()
	if err != nil {
		return err
	}
	cl := a.client()
	doc, err := cl.Budget(ctx)
	if err != nil {
		return fmt.Errorf("load budget: %w", err)
	}
	session := a.budgetSession(cl, doc)
	return readEdits(ctx, a.in, a.out, session, func(line string) (func(core.BudgetDocument) core.BudgetDocument, error) {
		return parseBudgetLine(line, cal)
	})
}

// readEdits feeds parsed lines into the session until input ends, then
// flushes. Bad lines are reported and skipped.
func readEdits[T any](ctx context.Context, in io.Reader, out io.Writer, session *autosave.Session[T], parse func(string) (func(T) T, error)) error {
	scanner := bufio.NewScanner(in)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn, err := parse(line)
		if errors.Is(err, errEmptyLine) {
			continue
		}
		if err != nil {
			errorf(out, "line %d: %v", lineNo, err)
			continue
		}
		if err := session.Edit(fn); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read edits: %w", err)
	}
	if err := session.Close(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("save edits: %w", err)
	}
	return nil
}
