package http

import (
	"context"
	"net/http"
	"sync/atomic"

	"kpiboard/internal/cache"
	"kpiboard/internal/core"
	applog "kpiboard/internal/log"
)

type budgetSummaryResponse struct {
	Summary core.BudgetSummary `json:"summary"`
	Months  []string           `json:"months"`
}

type dashboardSummaryResponse struct {
	Summary core.DashboardSummary `json:"summary"`
}

func (s *Server) handleBudgetSummary(w http.ResponseWriter, r *http.Request) {
	resp := s.budgetSummary(r.Context())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDashboardSummary(w http.ResponseWriter, r *http.Request) {
	resp := s.dashboardSummary(r.Context())
	writeJSON(w, http.StatusOK, resp)
}

// budgetSummary returns the cached summary or computes it from the current
// document. When the document cannot be read the default is summarised and
// nothing is cached.
func (s *Server) budgetSummary(ctx context.Context) budgetSummaryResponse {
	if resp, ok := s.budgetSummaries.Get(core.KindBudget); ok {
		s.appMetrics.cacheHit()
		return resp
	}
	s.appMetrics.cacheMiss()

	gen := s.budgetGen.Load()
	doc, fresh := s.readBudget(ctx)
	resp := budgetSummaryResponse{
		Summary: core.SummarizeBudget(doc),
		Months:  s.calendar.Labels(),
	}
	if fresh {
		storeIfCurrent(s.budgetSummaries, &s.budgetGen, gen, core.KindBudget, resp)
	}
	return resp
}

func (s *Server) dashboardSummary(ctx context.Context) dashboardSummaryResponse {
	if resp, ok := s.dashboardSummaries.Get(core.KindDashboard); ok {
		s.appMetrics.cacheHit()
		return resp
	}
	s.appMetrics.cacheMiss()

	gen := s.dashboardGen.Load()
	doc, fresh := s.readDashboard(ctx)
	resp := dashboardSummaryResponse{Summary: core.SummarizeDashboard(doc)}
	if fresh {
		storeIfCurrent(s.dashboardSummaries, &s.dashboardGen, gen, core.KindDashboard, resp)
	}
	return resp
}

// storeIfCurrent caches v unless a replace happened since gen was taken. The
// second check covers a replace that lands between the first check and Set.
func storeIfCurrent[T any](c *cache.LRUCache[T], current *atomic.Uint64, gen uint64, key string, v T) {
	if current.Load() != gen {
		return
	}
	c.Set(key, v)
	if current.Load() != gen {
		c.Delete(key)
	}
}

// readBudget reports false when it had to fall back to the default document.
func (s *Server) readBudget(ctx context.Context) (core.BudgetDocument, bool) {
	snap, err := s.budget.Read(ctx)
	if err != nil {
		s.appMetrics.fallbackRead(core.KindBudget)
		applog.FromContext(ctx).ErrorContext(ctx, "Budget read failed, using default",
			applog.FieldOperation, applog.OpSummary,
			applog.FieldError, err)
		return core.DefaultBudget(), false
	}
	return snap.Doc, true
}

func (s *Server) readDashboard(ctx context.Context) (core.DashboardDocument, bool) {
	snap, err := s.dashboard.Read(ctx)
	if err != nil {
		s.appMetrics.fallbackRead(core.KindDashboard)
		applog.FromContext(ctx).ErrorContext(ctx, "Dashboard read failed, using default",
			applog.FieldOperation, applog.OpSummary,
			applog.FieldError, err)
		return core.DefaultDashboard(), false
	}
	return snap.Doc, true
}
