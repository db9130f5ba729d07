package http

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"kpiboard/internal/core"
)

type kindCounters struct {
	writes    int64
	rejected  int64
	fallbacks int64
}

// appMetrics holds the application counters exposed on /metrics. The kinds
// map is filled once and only read afterwards.
type appMetrics struct {
	started     time.Time
	cacheHits   int64
	cacheMisses int64
	kinds       map[string]*kindCounters
}

func newAppMetrics() *appMetrics {
	return &appMetrics{
		started: time.Now(),
		kinds: map[string]*kindCounters{
			core.KindDashboard: {},
			core.KindBudget:    {},
		},
	}
}

func (m *appMetrics) counters(kind string) *kindCounters {
	if c, ok := m.kinds[kind]; ok {
		return c
	}
	return &kindCounters{}
}

func (m *appMetrics) written(kind string)      { atomic.AddInt64(&m.counters(kind).writes, 1) }
func (m *appMetrics) rejected(kind string)     { atomic.AddInt64(&m.counters(kind).rejected, 1) }
func (m *appMetrics) fallbackRead(kind string) { atomic.AddInt64(&m.counters(kind).fallbacks, 1) }
func (m *appMetrics) cacheHit()                { atomic.AddInt64(&m.cacheHits, 1) }
func (m *appMetrics) cacheMiss()               { atomic.AddInt64(&m.cacheMisses, 1) }

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.started).Round(time.Second).String(),
	})
}

func storeMode(durable bool) string {
	if durable {
		return "durable"
	}
	return "memory"
}

// handleReady pings the primary repository and reports the store mode of
// both documents. A failing ping makes the service not ready even though
// requests are still served from the in-memory fallback.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if err := s.budget.Ping(ctx); err != nil {
		checks["repository"] = fmt.Sprintf("failed: %v", err)
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["repository"] = "ok"
	}

	checks["store"] = map[string]string{
		core.KindDashboard: storeMode(s.dashboard.Durable()),
		core.KindBudget:    storeMode(s.budget.Durable()),
	}
	checks["cache"] = map[string]int{
		"budget_entries":    s.budgetSummaries.Size(),
		"dashboard_entries": s.dashboardSummaries.Size(),
	}
	checks["rate_limiter"] = map[string]int{
		"active_clients": s.rateLimiter.ActiveClients(),
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	})
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// handleMetrics writes application and security metrics in the Prometheus
// text exposition format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	traceMetrics := s.tracer.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.detector.GetMetrics()
	kinds := []string{core.KindDashboard, core.KindBudget}

	w.WriteHeader(http.StatusOK)

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_server_errors_total HTTP responses with a 5xx status\n")
	fmt.Fprintf(w, "# TYPE http_server_errors_total counter\n")
	fmt.Fprintf(w, "http_server_errors_total %d\n\n", traceMetrics.ServerErrors)

	fmt.Fprintf(w, "# HELP http_response_time_microseconds Smoothed average response time\n")
	fmt.Fprintf(w, "# TYPE http_response_time_microseconds gauge\n")
	fmt.Fprintf(w, "http_response_time_microseconds %d\n\n", traceMetrics.AverageResponseTime)

	fmt.Fprintf(w, "# HELP document_writes_total Successful document writes\n")
	fmt.Fprintf(w, "# TYPE document_writes_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "document_writes_total{kind=%q} %d\n", k, atomic.LoadInt64(&s.appMetrics.counters(k).writes))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP document_validation_failures_total Writes rejected by validation\n")
	fmt.Fprintf(w, "# TYPE document_validation_failures_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "document_validation_failures_total{kind=%q} %d\n", k, atomic.LoadInt64(&s.appMetrics.counters(k).rejected))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP document_default_reads_total Reads answered with the default document\n")
	fmt.Fprintf(w, "# TYPE document_default_reads_total counter\n")
	for _, k := range kinds {
		fmt.Fprintf(w, "document_default_reads_total{kind=%q} %d\n", k, atomic.LoadInt64(&s.appMetrics.counters(k).fallbacks))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "# HELP document_store_durable Whether the last store operation was durable\n")
	fmt.Fprintf(w, "# TYPE document_store_durable gauge\n")
	fmt.Fprintf(w, "document_store_durable{kind=%q} %d\n", core.KindDashboard, boolGauge(s.dashboard.Durable()))
	fmt.Fprintf(w, "document_store_durable{kind=%q} %d\n\n", core.KindBudget, boolGauge(s.budget.Durable()))

	fmt.Fprintf(w, "# HELP cache_hits_total Total summary cache hits\n")
	fmt.Fprintf(w, "# TYPE cache_hits_total counter\n")
	fmt.Fprintf(w, "cache_hits_total %d\n\n", atomic.LoadInt64(&s.appMetrics.cacheHits))

	fmt.Fprintf(w, "# HELP cache_misses_total Total summary cache misses\n")
	fmt.Fprintf(w, "# TYPE cache_misses_total counter\n")
	fmt.Fprintf(w, "cache_misses_total %d\n\n", atomic.LoadInt64(&s.appMetrics.cacheMisses))

	fmt.Fprintf(w, "# HELP cache_entries Current summary cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=%q} %d\n", core.KindBudget, s.budgetSummaries.Size())
	fmt.Fprintf(w, "cache_entries{type=%q} %d\n\n", core.KindDashboard, s.dashboardSummaries.Size())

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP auth_failures_total Requests rejected by the basic-auth gate\n")
	fmt.Fprintf(w, "# TYPE auth_failures_total counter\n")
	fmt.Fprintf(w, "auth_failures_total %d\n\n", s.gate.Failures())

	fmt.Fprintf(w, "# HELP suspicious_requests_total Total suspicious requests detected\n")
	fmt.Fprintf(w, "# TYPE suspicious_requests_total counter\n")
	fmt.Fprintf(w, "suspicious_requests_total %d\n\n", securityMetrics.SuspiciousRequests)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.appMetrics.started).Seconds())
}
