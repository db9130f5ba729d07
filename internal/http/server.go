// Package http serves the dashboard and budget documents, their derived
// summaries, the admin view and the operational endpoints.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"kpiboard/internal/cache"
	"kpiboard/internal/core"
	applog "kpiboard/internal/log"
	"kpiboard/internal/middleware/auth"
	"kpiboard/internal/middleware/ratelimit"
	"kpiboard/internal/middleware/security"
	"kpiboard/internal/middleware/trace"
	"kpiboard/internal/services"
	appweb "kpiboard/web"
)

const (
	maxBodyBytes = 1 << 20
	summaryTTL   = 30 * time.Second
)

// Options configures NewServer. Dashboard and Budget are required.
type Options struct {
	Addr               string
	Dashboard          *services.DocumentService[core.DashboardDocument]
	Budget             *services.DocumentService[core.BudgetDocument]
	Calendar           core.FiscalCalendar
	Auth               auth.Config
	RateLimitPerMinute int
	TrustedProxies     []string
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	dashboard *services.DocumentService[core.DashboardDocument]
	budget    *services.DocumentService[core.BudgetDocument]
	calendar  core.FiscalCalendar
	logger    *applog.Logger
	now       func() time.Time

	budgetSummaries    *cache.LRUCache[budgetSummaryResponse]
	dashboardSummaries *cache.LRUCache[dashboardSummaryResponse]
	// bumped on every replace so summaries computed from an older read are
	// not cached
	budgetGen    atomic.Uint64
	dashboardGen atomic.Uint64
	cacheManager *cache.Manager

	rateLimiter *ratelimit.Limiter
	detector    *security.Detector
	tracer      *trace.Middleware
	gate        *auth.Gate
	appMetrics  *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	s := &Server{
		dashboard:          opts.Dashboard,
		budget:             opts.Budget,
		calendar:           opts.Calendar,
		logger:             logger,
		now:                time.Now,
		budgetSummaries:    cache.NewLRUCache[budgetSummaryResponse](4, summaryTTL),
		dashboardSummaries: cache.NewLRUCache[dashboardSummaryResponse](4, summaryTTL),
		cacheManager:       cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger),
		rateLimiter:        ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:           security.NewDetector(),
		gate:               auth.NewGate(opts.Auth, auth.ProtectAdminAndWrites),
		appMetrics:         newAppMetrics(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.cacheManager.Register(s.budgetSummaries)
	s.cacheManager.Register(s.dashboardSummaries)
	s.cacheManager.StartCleanup(5 * time.Minute)

	s.budget.OnReplace(s.invalidateSummaries)
	s.dashboard.OnReplace(s.invalidateSummaries)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", applog.FieldError, err)
	}
	s.templates = t

	if !opts.Auth.Enabled() {
		logger.Warn("Admin basic auth disabled: ADMIN_BASIC_AUTH_USER or ADMIN_BASIC_AUTH_PASS not set")
	}

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	dashboard := &documentHandler[core.DashboardDocument]{
		svc:      s.dashboard,
		fallback: core.DefaultDashboard,
		metrics:  s.appMetrics,
	}
	budget := &documentHandler[core.BudgetDocument]{
		svc:      s.budget,
		fallback: core.DefaultBudget,
		metrics:  s.appMetrics,
	}

	mux.HandleFunc("GET /api/dashboard", dashboard.get)
	mux.HandleFunc("PATCH /api/dashboard", dashboard.patch)
	mux.HandleFunc("PUT /api/dashboard", dashboard.put)
	mux.HandleFunc("GET /api/dashboard/summary", s.handleDashboardSummary)

	mux.HandleFunc("GET /api/budget", budget.get)
	mux.HandleFunc("PATCH /api/budget", budget.patch)
	mux.HandleFunc("PUT /api/budget", budget.put)
	mux.HandleFunc("GET /api/budget/summary", s.handleBudgetSummary)

	mux.HandleFunc("GET /admin", s.handleAdmin)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/admin", http.StatusFound)
	})

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	return mux
}

// middleware wraps h with, outermost first: tracing, panic recovery,
// security headers, suspicious-request detection, write rate limiting and
// the basic-auth gate.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = s.gate.Middleware(h)
	h = s.rateLimiter.Middleware(s.detector.ExtractClientIP, ratelimit.WritesOnly, s.onRateLimited)(h)
	h = s.detector.Middleware(s.logger)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.recoverer(h)
	return s.tracer.Middleware(h)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

func (s *Server) invalidateSummaries(kind string) {
	switch kind {
	case core.KindBudget:
		s.budgetGen.Add(1)
		s.budgetSummaries.Purge()
	case core.KindDashboard:
		s.dashboardGen.Add(1)
		s.dashboardSummaries.Purge()
	}
}

// Shutdown stops background cleanup and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
