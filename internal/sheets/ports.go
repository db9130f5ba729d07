// Package sheets defines the outbound port used to mirror documents into a
// spreadsheet.
package sheets

import (
	"context"

	"kpiboard/internal/core"
)

// Ports for outbound adapters.
type (
	// BudgetMirror writes a tabular snapshot of the budget.
	BudgetMirror interface {
		MirrorBudget(ctx context.Context, doc core.BudgetDocument, cal core.FiscalCalendar) error
	}

	// DashboardMirror writes a tabular snapshot of the dashboard.
	DashboardMirror interface {
		MirrorDashboard(ctx context.Context, doc core.DashboardDocument) error
	}

	DocumentMirror interface {
		BudgetMirror
		DashboardMirror
	}
)
