// Package memory is an in-process DocumentMirror that keeps the last
// snapshot of each document.
package memory

import (
	"context"
	"sync"

	"kpiboard/internal/core"
	"kpiboard/internal/report"
	"kpiboard/internal/sheets"
)

var _ sheets.DocumentMirror = (*Mirror)(nil)

type Mirror struct {
	mu        sync.Mutex
	budget    *report.Table
	dashboard *report.Table
	writes    int
}

func New() *Mirror {
	return &Mirror{}
}

// MirrorBudget stores the budget table.
func (m *Mirror) MirrorBudget(ctx context.Context, doc core.BudgetDocument, cal core.FiscalCalendar) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := report.BudgetTable(doc, cal)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.budget = &t
	m.writes++
	return nil
}

// MirrorDashboard stores the dashboard table.
func (m *Mirror) MirrorDashboard(ctx context.Context, doc core.DashboardDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := report.DashboardTable(doc)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dashboard = &t
	m.writes++
	return nil
}

// Budget returns the last mirrored budget table.
func (m *Mirror) Budget() (report.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.budget == nil {
		return report.Table{}, false
	}
	return *m.budget, true
}

// Dashboard returns the last mirrored dashboard table.
func (m *Mirror) Dashboard() (report.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dashboard == nil {
		return report.Table{}, false
	}
	return *m.dashboard, true
}

// Writes counts successful mirror calls.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
