package http

import (
	"html/template"
	"net/http"
	"time"

	"kpiboard/internal/core"
	applog "kpiboard/internal/log"
	"kpiboard/internal/report"
)

var templateFuncs = template.FuncMap{
	"amount":  report.Amount,
	"percent": report.Percent,
	"negative": func(v float64) bool {
		return v < 0
	},
}

type adminView struct {
	GeneratedAt    string
	Durable        bool
	Dashboard      core.DashboardDocument
	DashboardStats core.DashboardSummary
	Budget         core.BudgetSummary
	Months         []string
	ElapsedMonths  int
	Header         []string
	Rows           [][]string
}

// handleAdmin renders both summaries and the full budget table. It always
// reads the documents directly so the page shows the latest saved state.
func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	if s.templates == nil {
		logger.ErrorContext(ctx, "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			applog.FieldErrorType, applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	dash, _ := s.readDashboard(ctx)
	budget, _ := s.readBudget(ctx)
	table := report.BudgetTable(budget, s.calendar).Strings()

	now := s.now()
	view := adminView{
		GeneratedAt:    now.Format(time.RFC1123),
		Durable:        s.dashboard.Durable() && s.budget.Durable(),
		Dashboard:      dash,
		DashboardStats: core.SummarizeDashboard(dash),
		Budget:         core.SummarizeBudget(budget),
		Months:         s.calendar.Labels(),
		ElapsedMonths:  s.calendar.ElapsedMonths(now),
		Header:         table[0],
		Rows:           table[1:],
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "admin.html", view); err != nil {
		logger.ErrorContext(ctx, "Admin template execution failed",
			applog.FieldOperation, applog.OpRender,
			applog.FieldError, err)
		http.Error(w, "failed to render admin view", http.StatusInternalServerError)
	}
}
