package ctl

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"kpiboard/internal/autosave"
	"kpiboard/internal/core"
	"kpiboard/internal/export"
	"kpiboard/internal/report"
)

func (a *App) dashboardCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dashboard",
		Aliases: []string{"dash"},
		Short:   "Show and edit the KPI dashboard",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the dashboard figures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.client().Dashboard(cmd.Context())
			if err != nil {
				return fmt.Errorf("load dashboard: %w", err)
			}
			a.printDashboard(doc)
			return nil
		},
	}

	summary := &cobra.Command{
		Use:   "summary",
		Short: "Print the derived dashboard summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := a.client().DashboardSummary(cmd.Context())
			if err != nil {
				return fmt.Errorf("load dashboard summary: %w", err)
			}
			a.printDashboardSummary(resp.Summary)
			return nil
		},
	}

	edit := &cobra.Command{
		Use:   "edit",
		Short: "Apply edits read from stdin, saving after each quiet period",
		Long: `Reads one edit per line from stdin:

  revenueTarget <amount>
  revenueCurrent <amount>
  milestones.cash <amount>
  milestones.escrow <amount>
  ytd.revenue <amount>
  ytd.expenses <amount>
  spending <amount> <label>
  spending.remove <label>
  goal <pending|in-progress|completed> <text>
  goal.remove <text>

Pending edits are written when input ends.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.editDashboard(cmd.Context())
		},
	}

	var format, dir string
	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the dashboard to a csv, json or pdf file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			doc, err := a.client().Dashboard(cmd.Context())
			if err != nil {
				return fmt.Errorf("load dashboard: %w", err)
			}
			path, err := export.Dashboard(doc, f, dir)
			if err != nil {
				return err
			}
			successf(a.out, "Exported dashboard to %s", path)
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&format, "format", "f", "csv", "output format: csv, json or pdf")
	exportCmd.Flags().StringVarP(&dir, "out", "o", ".", "output directory")

	cmd.AddCommand(show, summary, edit, exportCmd)
	return cmd
}

func (a *App) printDashboard(doc core.DashboardDocument) {
	t := report.DashboardTable(doc)
	renderTable(a.out, t.Title, t.Strings())
}

func (a *App) printDashboardSummary(s core.DashboardSummary) {
	status := string(s.RevenueStatus)
	switch s.RevenueStatus {
	case core.RevenueOnTrack:
		status = green(status)
	case core.RevenueBehind:
		status = yellow(status)
	case core.RevenueCritical:
		status = red(status)
	}

	data := [][]string{
		{"Metric", "Value"},
		{"Revenue progress", report.Percent(s.RevenueProgress)},
		{"Revenue remaining", report.Amount(s.RevenueRemaining)},
		{"Revenue status", status},
		{"Milestones total", report.Amount(s.MilestonesTotal)},
		{"Outside spending", report.Amount(s.OutsideSpendingTotal)},
		{"YTD profit", signed(s.Profit, true)},
		{"Profit margin", report.Percent(s.ProfitMargin)},
	}
	for _, st := range core.GoalStatuses() {
		data = append(data, []string{"Goals " + string(st), fmt.Sprintf("%d", s.GoalCounts[st])})
	}
	renderTable(a.out, "Dashboard summary", data)
}

func (a *App) editDashboard(ctx context.Context) error {
	c := a.client()
	doc, err := c.Dashboard(ctx)
	if err != nil {
		return fmt.Errorf("load dashboard: %w", err)
	}

	save := func(ctx context.Context, doc core.DashboardDocument) (core.DashboardDocument, error) {
		res, err := c.ReplaceDashboard(ctx, doc)
		if err != nil {
			return doc, err
		}
		if res.Warning != "" {
			warnf(a.out, "%s", res.Warning)
		}
		return res.Data, nil
	}
	session := autosave.New(doc, save,
		autosave.WithDebounce[core.DashboardDocument](a.debounce),
		autosave.OnSaved(func(core.DashboardDocument) { successf(a.out, "Dashboard saved") }),
		autosave.OnError[core.DashboardDocument](func(err error) { errorf(a.out, "Save failed, edits kept: %v", err) }),
	)

	return readEdits(ctx, a.in, a.out, session, parseDashboardLine)
}
