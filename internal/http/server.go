// Package http serves the web UI and JSON endpoints.
package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"spendtrack/internal/cache"
	"spendtrack/internal/core"
	applog "spendtrack/internal/log"
	"spendtrack/internal/middleware/ratelimit"
	"spendtrack/internal/middleware/security"
	"spendtrack/internal/middleware/trace"
	"spendtrack/internal/services"
	appweb "spendtrack/web"
)

type Server struct {
	http.Server

	templates *template.Template

	expenses *services.ExpenseService
	shared   *services.SharedExpenseService
	reports  *services.ReportService

	// Readiness probe; nil-able for tests.
	ping func(context.Context) error

	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	// Dashboard aggregates are cheap to rebuild but hit on every page
	// load, so they are cached and cleared on any write.
	overviewCache *cache.LRUCache[core.YearOverview]
	chartCache    *cache.LRUCache[core.ChartData]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware, and templates, returning a
// ready-to-run server.
func NewServer(addr string, expenses *services.ExpenseService, shared *services.SharedExpenseService, reports *services.ReportService, ping func(context.Context) error) *Server {
	mux := http.NewServeMux()

	s := &Server{
		expenses:      expenses,
		shared:        shared,
		reports:       reports,
		ping:          ping,
		rateLimiter:   ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		overviewCache: cache.NewLRUCache[core.YearOverview](100, 5*time.Minute),
		chartCache:    cache.NewLRUCache[core.ChartData](200, 5*time.Minute),
		cacheManager:  cache.NewManager(),
	}
	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.Register(s.chartCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	funcs := template.FuncMap{
		"seq": func(from, to int) []int {
			out := make([]int, 0, to-from+1)
			for i := from; i <= to; i++ {
				out = append(out, i)
			}
			return out
		},
	}
	t, err := template.New("").Funcs(funcs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /dashboard/data", s.handleDashboardData)

	mux.HandleFunc("GET /expenses", s.handleListExpenses)
	mux.HandleFunc("POST /expenses", s.handleCreateExpense)
	mux.HandleFunc("POST /expenses/{id}/delete", s.handleDeleteExpense)

	mux.HandleFunc("GET /shared-expenses", s.handleListShared)
	mux.HandleFunc("POST /shared-expenses", s.handleCreateShared)
	mux.HandleFunc("POST /shared-expenses/{id}/settle", s.handleSettleShared)
	mux.HandleFunc("GET /shared-expenses/balances", s.handleBalances)
	mux.HandleFunc("GET /balances", s.handleBalances)

	mux.HandleFunc("GET /budgets", s.handleListBudgets)
	mux.HandleFunc("POST /budgets", s.handleCreateBudget)
	mux.HandleFunc("POST /budgets/{id}/delete", s.handleDeleteBudget)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(clientIP)
	s.tracer = tracer

	handler := s.limitWrites(mux)
	handler = headers.Middleware(handler)
	handler = tracer.Middleware(handler)
	handler = applog.Middleware(applog.New(applog.Config{Component: applog.ComponentHTTP}))(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// limitWrites rate-limits mutating requests per client IP. Reads are
// unmetered: the dashboard polls.
func (s *Server) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !s.rateLimiter.Allow(clientIP(r)) {
			slog.WarnContext(r.Context(), "Rate limit exceeded",
				"client_ip", clientIP(r), "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the HTTP server and background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Readiness check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// handleMetrics exposes counters in Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", s.tracer.TotalRequests())
	fmt.Fprintf(w, "# HELP cache_entries Current cache entries\n")
	fmt.Fprintf(w, "# TYPE cache_entries gauge\n")
	fmt.Fprintf(w, "cache_entries{type=\"overview\"} %d\n", s.overviewCache.Size())
	fmt.Fprintf(w, "cache_entries{type=\"chart\"} %d\n", s.chartCache.Size())
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

func (s *Server) overviewKey(year, month int) string {
	return strconv.Itoa(year) + "-" + strconv.Itoa(month)
}

// invalidateAggregates drops cached dashboard data. Called on every write
// that changes what the dashboard shows.
func (s *Server) invalidateAggregates() {
	s.overviewCache.Clear()
	s.chartCache.Clear()
}

func (s *Server) getOverview(ctx context.Context, year, month int) (core.YearOverview, error) {
	key := s.overviewKey(year, month)
	if ov, found := s.overviewCache.Get(key); found {
		slog.DebugContext(ctx, "Overview cache hit", "year", year, "month", month)
		return ov, nil
	}

	ov, err := s.reports.Overview(ctx, year, month)
	if err != nil {
		return core.YearOverview{}, err
	}
	s.overviewCache.Set(key, ov)
	return ov, nil
}

func (s *Server) getTrendChart(ctx context.Context, year int) (core.ChartData, error) {
	key := "trend-" + strconv.Itoa(year)
	if c, found := s.chartCache.Get(key); found {
		return c, nil
	}

	c, err := s.reports.TrendChart(ctx, year)
	if err != nil {
		return core.ChartData{}, err
	}
	s.chartCache.Set(key, c)
	return c, nil
}

func (s *Server) getCategoryChart(ctx context.Context, year, month int) (core.ChartData, error) {
	key := "cat-" + s.overviewKey(year, month)
	if c, found := s.chartCache.Get(key); found {
		return c, nil
	}

	c, err := s.reports.CategoryChart(ctx, year, month)
	if err != nil {
		return core.ChartData{}, err
	}
	s.chartCache.Set(key, c)
	return c, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "template", name, "error", err)
		http.Error(w, "render error", http.StatusInternalServerError)
	}
}
