// Package http exposes the expense tracker as a JSON API.
package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"smartexpense/internal/auth"
	"smartexpense/internal/cache"
	"smartexpense/internal/middleware/ratelimit"
	"smartexpense/internal/middleware/security"
	"smartexpense/internal/middleware/trace"
	"smartexpense/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheStats is implemented by caches whose counters are reported on
// /metrics.
type CacheStats interface {
	Stats() cache.Stats
}

// Config tunes the HTTP surface.
type Config struct {
	Addr string

	// CORSOrigins lists the browser origins allowed to call the API.
	CORSOrigins []string

	// AuthRequestsPerMinute bounds register and login calls per client IP.
	AuthRequestsPerMinute int

	TrustedProxies []string
	Headers        security.HeadersConfig

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:                  ":8080",
		CORSOrigins:           []string{"http://localhost:5173"},
		AuthRequestsPerMinute: 10,
		TrustedProxies:        security.DefaultTrustedProxies,
		Headers:               security.DefaultHeadersConfig(),
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          15 * time.Second,
		IdleTimeout:           60 * time.Second,
	}
}

// Deps are the services the handlers call into.
type Deps struct {
	Auth      *auth.Service
	Expenses  *services.ExpenseService
	Budgets   *services.BudgetService
	Dashboard *services.DashboardService
	Store     Pinger

	OverviewCache CacheStats

	Now func() time.Time
}

type Server struct {
	http.Server
	deps Deps
	now  func() time.Time

	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter
	detector *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires middleware and routes into a ready-to-run server. Call
// Shutdown to stop it together with its background goroutines.
func NewServer(cfg Config, deps Deps) (*Server, error) {
	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		Server: http.Server{
			Addr:         cfg.Addr,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		deps:     deps,
		now:      now,
		tracer:   trace.NewMiddleware(detector.ExtractClientIP),
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.AuthRequestsPerMinute}),
		detector: detector,
	}
	s.Handler = s.routes(cfg)
	return s, nil
}

func (s *Server) routes(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(cfg.Headers).Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderUserID, trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	limited := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusTooManyRequests, "Too many requests, try again later")
	})

	r.Route("/api", func(api chi.Router) {
		api.With(limited).Post("/user/register", s.handleRegister)
		api.With(limited).Post("/auth/login", s.handleLogin)
		api.Get("/user/{userID}", s.handleGetUser)
		api.Get("/categories", handleCategories)

		api.Route("/expenses", func(er chi.Router) {
			er.Get("/", s.handleListExpenses)
			er.Post("/", s.handleCreateExpense)
			er.Get("/{id}", s.handleGetExpense)
			er.Put("/{id}", s.handleUpdateExpense)
			er.Delete("/{id}", s.handleDeleteExpense)
		})

		api.Get("/dashboard", s.handleDashboard)
		api.Get("/budget", s.handleGetBudget)
		api.Put("/budget", s.handleSaveBudget)
		api.Get("/budget/status", s.handleBudgetStatus)
	})

	return r
}

// Shutdown stops the rate limiter and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Store.Ping(ctx); err != nil {
			writeError(w, r, fmt.Errorf("store ping: %w", err))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	tm := s.tracer.GetMetrics()
	rm := s.limiter.GetMetrics()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	fmt.Fprintf(w, "http_requests_total %d\n", tm.TotalRequests)
	fmt.Fprintf(w, "http_requests_in_flight %d\n", tm.InFlight)
	fmt.Fprintf(w, "http_client_errors_total %d\n", tm.ClientErrors)
	fmt.Fprintf(w, "http_server_errors_total %d\n", tm.ServerErrors)
	fmt.Fprintf(w, "http_response_time_avg_microseconds %d\n", tm.AverageResponseTime)
	fmt.Fprintf(w, "ratelimit_rejected_total %d\n", rm.Rejected)
	fmt.Fprintf(w, "ratelimit_clients %d\n", rm.ClientCount)
	fmt.Fprintf(w, "security_suspicious_requests_total %d\n", s.detector.SuspiciousRequests())
	if s.deps.OverviewCache != nil {
		cs := s.deps.OverviewCache.Stats()
		fmt.Fprintf(w, "overview_cache_entries %d\n", cs.Size)
		fmt.Fprintf(w, "overview_cache_hits_total %d\n", cs.Hits)
		fmt.Fprintf(w, "overview_cache_misses_total %d\n", cs.Misses)
	}
}
