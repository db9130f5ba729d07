package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kpiboard/internal/core"
	applog "kpiboard/internal/log"
	"kpiboard/internal/middleware/auth"
	"kpiboard/internal/persistence"
	"kpiboard/internal/persistence/memory"
	"kpiboard/internal/services"
	"kpiboard/internal/store"
	"kpiboard/internal/validation"
)

var errDown = errors.New("database is down")

type downRepo struct{}

func (downRepo) FindOrCreate(context.Context, string, []byte) (persistence.Record, error) {
	return persistence.Record{}, errDown
}
func (downRepo) Save(context.Context, string, []byte) (persistence.Record, error) {
	return persistence.Record{}, errDown
}
func (downRepo) Load(context.Context, string) (persistence.Record, bool, error) {
	return persistence.Record{}, false, errDown
}
func (downRepo) Ping(context.Context) error { return errDown }

type testConfig struct {
	primary   persistence.Repository
	fallback  persistence.Repository
	auth      auth.Config
	rateLimit int
}

func newTestServer(t *testing.T, configure ...func(*testConfig)) *Server {
	t.Helper()
	cfg := testConfig{primary: memory.New(), rateLimit: 100}
	for _, fn := range configure {
		fn(&cfg)
	}

	var storeOpts []store.Option
	if cfg.fallback != nil {
		storeOpts = append(storeOpts, store.WithFallback(cfg.fallback))
	}
	logger := applog.New(applog.Config{Output: io.Discard})

	s := NewServer(Options{
		Addr:               ":0",
		Dashboard:          services.NewDocumentService(store.New(store.DashboardSchema(), cfg.primary, storeOpts...), nil, logger.Logger),
		Budget:             services.NewDocumentService(store.New(store.BudgetSchema(), cfg.primary, storeOpts...), nil, logger.Logger),
		Calendar:           core.FiscalCalendar{StartMonth: time.August},
		Auth:               cfg.auth,
		RateLimitPerMinute: cfg.rateLimit,
		Logger:             logger,
	})
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(t *testing.T, s *Server, method, target, body string, prepare ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	for _, fn := range prepare {
		fn(req)
	}
	rr := httptest.NewRecorder()
	s.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

type errorResponse struct {
	Error   string                 `json:"error"`
	Details []validation.Violation `json:"details"`
}

func TestGetDocumentsCreatesDefaults(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/api/dashboard", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	dash := decode[core.DashboardDocument](t, rr)
	if dash.RevenueTarget != 4500000 || len(dash.Goals) != 2 {
		t.Fatalf("unexpected default dashboard %+v", dash)
	}

	budget := decode[core.BudgetDocument](t, do(t, s, http.MethodGet, "/api/budget", ""))
	if budget.FiscalYearLabel != "FY 25-26" || len(budget.Expenses) != 17 {
		t.Fatalf("unexpected default budget %+v", budget)
	}
}

func TestGetServesDefaultWhenStoreFails(t *testing.T) {
	s := newTestServer(t, func(c *testConfig) {
		c.primary = downRepo{}
		c.fallback = downRepo{}
	})

	rr := do(t, s, http.MethodGet, "/api/budget", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if doc := decode[core.BudgetDocument](t, rr); doc.FiscalYearLabel != "FY 25-26" {
		t.Fatalf("expected default budget, got %+v", doc)
	}

	rr = do(t, s, http.MethodPatch, "/api/budget", `{"fiscalYearLabel":"FY 26-27"}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 when nothing can be stored, got %d", rr.Code)
	}
	if got := decode[errorResponse](t, rr); got.Error != "Failed to update data" {
		t.Fatalf("unexpected error body %+v", got)
	}
}

func TestPatchBudgetMergesAndPersists(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodPatch, "/api/budget", `{"expenses":{"rent":{"budget":300000}}}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[writeResult[core.BudgetDocument]](t, rr)
	if !res.OK || !res.Persisted || res.Warning != "" {
		t.Fatalf("unexpected write result %+v", res)
	}
	if rent := res.Data.Expenses["rent"]; rent.Budget != 300000 || rent.PriorYearActual1 != 276000 {
		t.Fatalf("expected merged rent, got %+v", rent)
	}

	got := decode[core.BudgetDocument](t, do(t, s, http.MethodGet, "/api/budget", ""))
	if got.Expenses["rent"].Budget != 300000 {
		t.Fatalf("expected stored patch, got %+v", got.Expenses["rent"])
	}
}

func TestWriteValidationFailure(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		error  string
		path   string
	}{
		{"negative budget", http.MethodPatch, "/api/budget", `{"expenses":{"rent":{"budget":-1}}}`, "Invalid budget payload", "expenses.rent.budget"},
		{"bad goal status", http.MethodPatch, "/api/dashboard", `{"goals":[{"goal":"x","status":"done"}]}`, "Invalid dashboard payload", "goals[0].status"},
		{"put is strict", http.MethodPut, "/api/dashboard", `{"revenueCurrent":1}`, "Invalid dashboard payload", "revenueTarget"},
		{"malformed json", http.MethodPut, "/api/budget", `{`, "Invalid budget payload", "$"},
		{"patch must be object", http.MethodPatch, "/api/dashboard", `[1,2]`, "Invalid dashboard payload", "$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, s, tt.method, tt.target, tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			got := decode[errorResponse](t, rr)
			if got.Error != tt.error {
				t.Fatalf("expected error %q, got %q", tt.error, got.Error)
			}
			found := false
			for _, v := range got.Details {
				if v.Path == tt.path {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation at %s, got %+v", tt.path, got.Details)
			}
		})
	}

	dash := decode[core.DashboardDocument](t, do(t, s, http.MethodGet, "/api/dashboard", ""))
	if dash.RevenueCurrent != 1320000 {
		t.Fatalf("rejected writes must not change the document, got %+v", dash)
	}
}

func TestPutReplacesWholeDocument(t *testing.T) {
	s := newTestServer(t)

	doc := core.DefaultDashboard()
	doc.RevenueCurrent = 2000000
	doc.Goals = nil
	body, _ := json.Marshal(doc)

	rr := do(t, s, http.MethodPut, "/api/dashboard", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decode[core.DashboardDocument](t, do(t, s, http.MethodGet, "/api/dashboard", ""))
	if got.RevenueCurrent != 2000000 || len(got.Goals) != 0 {
		t.Fatalf("expected replaced document, got %+v", got)
	}
}

func TestBodyTooLarge(t *testing.T) {
	s := newTestServer(t)
	rr := do(t, s, http.MethodPut, "/api/budget", strings.Repeat(" ", maxBodyBytes+1))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rr.Code)
	}
}

func TestDegradedWriteWarns(t *testing.T) {
	s := newTestServer(t, func(c *testConfig) { c.primary = downRepo{} })

	rr := do(t, s, http.MethodPatch, "/api/dashboard", `{"revenueCurrent":5}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	res := decode[writeResult[core.DashboardDocument]](t, rr)
	if res.Persisted || res.Warning != notPersistedWarning {
		t.Fatalf("expected non-persisted warning, got %+v", res)
	}
	if res.Data.RevenueCurrent != 5 {
		t.Fatalf("expected fallback store to hold the write, got %+v", res.Data)
	}

	rr = do(t, s, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 while the repository is down, got %d", rr.Code)
	}
}

func TestSummariesAreCachedAndInvalidated(t *testing.T) {
	s := newTestServer(t)

	first := decode[budgetSummaryResponse](t, do(t, s, http.MethodGet, "/api/budget/summary", ""))
	if len(first.Months) != 12 || first.Months[0] != "Aug" || first.Months[11] != "Jul" {
		t.Fatalf("unexpected months %v", first.Months)
	}
	if first.Summary.Actual.Revenue != 0 {
		t.Fatalf("expected no actuals yet, got %v", first.Summary.Actual.Revenue)
	}
	do(t, s, http.MethodGet, "/api/budget/summary", "")
	if hits := s.appMetrics.cacheHits; hits != 1 {
		t.Fatalf("expected one cache hit, got %d", hits)
	}

	patch := `{"revenue":{"commissions":{"monthlyActuals":[100,0,0,0,0,0,0,0,0,0,0,0],"actualsTotal":100}}}`
	if rr := do(t, s, http.MethodPatch, "/api/budget", patch); rr.Code != http.StatusOK {
		t.Fatalf("patch failed: %d %s", rr.Code, rr.Body.String())
	}

	after := decode[budgetSummaryResponse](t, do(t, s, http.MethodGet, "/api/budget/summary", ""))
	if after.Summary.Actual.Revenue != 100 {
		t.Fatalf("expected summary to reflect the write, got %v", after.Summary.Actual.Revenue)
	}

	dash := decode[dashboardSummaryResponse](t, do(t, s, http.MethodGet, "/api/dashboard/summary", ""))
	if dash.Summary.OutsideSpendingTotal != 90000 || dash.Summary.ProfitMargin != 50 {
		t.Fatalf("unexpected dashboard summary %+v", dash.Summary)
	}
}

func TestAuthGate(t *testing.T) {
	s := newTestServer(t, func(c *testConfig) {
		c.auth = auth.Config{User: "admin", Password: "secret"}
	})
	withCreds := func(r *http.Request) { r.SetBasicAuth("admin", "secret") }

	if rr := do(t, s, http.MethodGet, "/api/budget", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are public, got %d", rr.Code)
	}

	rr := do(t, s, http.MethodPatch, "/api/budget", `{"fiscalYearLabel":"FY 26-27"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got != `Basic realm="Secure Area"` {
		t.Fatalf("unexpected challenge %q", got)
	}

	if rr := do(t, s, http.MethodGet, "/admin", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("admin must be protected, got %d", rr.Code)
	}

	if rr := do(t, s, http.MethodPatch, "/api/budget", `{"fiscalYearLabel":"FY 26-27"}`, withCreds); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with credentials, got %d", rr.Code)
	}
	if rr := do(t, s, http.MethodGet, "/admin", "", withCreds); rr.Code != http.StatusOK {
		t.Fatalf("expected admin with credentials, got %d", rr.Code)
	}
}

func TestAdminView(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/admin", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Budget FY 25-26", "Net earnings", "Payroll &amp; Benefits", "4,500,000.00", "durable storage"} {
		if !strings.Contains(body, want) {
			t.Errorf("admin view missing %q", want)
		}
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("admin must not be cached, got %q", cc)
	}

	if rr := do(t, s, http.MethodGet, "/", ""); rr.Code != http.StatusFound || rr.Header().Get("Location") != "/admin" {
		t.Fatalf("expected redirect to /admin, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
}

func TestWriteRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *testConfig) { c.rateLimit = 1 })

	if rr := do(t, s, http.MethodPatch, "/api/dashboard", `{"revenueCurrent":1}`); rr.Code != http.StatusOK {
		t.Fatalf("first write should pass, got %d", rr.Code)
	}
	rr := do(t, s, http.MethodPatch, "/api/dashboard", `{"revenueCurrent":2}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if rr := do(t, s, http.MethodGet, "/api/dashboard", ""); rr.Code != http.StatusOK {
		t.Fatalf("reads are not limited, got %d", rr.Code)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	s := newTestServer(t)

	rr := do(t, s, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK || decode[map[string]any](t, rr)["status"] != "ok" {
		t.Fatalf("unexpected health response %d %s", rr.Code, rr.Body.String())
	}

	rr = do(t, s, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected ready, got %d: %s", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}

	do(t, s, http.MethodPatch, "/api/budget", `{"fiscalYearLabel":"FY 26-27"}`)
	do(t, s, http.MethodPatch, "/api/budget", `{"fiscalYearLabel":""}`)

	body := do(t, s, http.MethodGet, "/metrics", "").Body.String()
	for _, want := range []string{
		`document_writes_total{kind="budget"} 1`,
		`document_validation_failures_total{kind="budget"} 1`,
		`document_store_durable{kind="dashboard"} 1`,
		"# TYPE http_requests_total counter",
		"rate_limit_hits_total 0",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	if rr := do(t, s, http.MethodDelete, "/api/budget", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestRecovererReturns500(t *testing.T) {
	s := newTestServer(t)
	h := s.recoverer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/budget", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

// hookRepo runs beforeFind inside every FindOrCreate, after the stored
// record has been chosen but before it is returned.
type hookRepo struct {
	persistence.Repository
	beforeFind func()
}

func (r *hookRepo) FindOrCreate(ctx context.Context, kind string, defaults []byte) (persistence.Record, error) {
	rec, err := r.Repository.FindOrCreate(ctx, kind, defaults)
	if r.beforeFind != nil {
		r.beforeFind()
	}
	return rec, err
}

func TestSummaryFromReadOverlappingReplaceIsNotCached(t *testing.T) {
	repo := &hookRepo{Repository: memory.New()}
	s := newTestServer(t, func(c *testConfig) { c.primary = repo })

	// a replace completing while the summary read is in flight
	repo.beforeFind = func() { s.invalidateSummaries(core.KindBudget) }
	if rr := do(t, s, http.MethodGet, "/api/budget/summary", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if n := s.budgetSummaries.Size(); n != 0 {
		t.Fatalf("summary of a superseded read was cached (%d entries)", n)
	}

	repo.beforeFind = nil
	do(t, s, http.MethodGet, "/api/budget/summary", "")
	if n := s.budgetSummaries.Size(); n != 1 {
		t.Fatalf("expected the next summary to be cached, got %d entries", n)
	}
}
