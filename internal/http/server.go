// Package http exposes the household management API over JSON.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"casa/internal/auth"
	"casa/internal/cache"
	"casa/internal/core"
	"casa/internal/middleware/ratelimit"
	"casa/internal/middleware/security"
	"casa/internal/middleware/trace"
	"casa/internal/services"
	"casa/internal/storage"
)

// Options carries the dependencies for a Server.
type Options struct {
	Addr               string
	Store              *storage.Store
	Authenticator      *auth.PasswordAuthenticator
	Tokens             *auth.JWTManager
	Households         *services.HouseholdService
	Expenses           *services.ExpenseService
	Ledger             *services.LedgerService
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	store         *storage.Store
	authenticator *auth.PasswordAuthenticator
	tokens        *auth.JWTManager
	households    *services.HouseholdService
	expenses      *services.ExpenseService
	ledger        *services.LedgerService

	limiter  *ratelimit.Limiter
	detector *security.Detector
	metrics  *serverMetrics

	// Cached household summaries, invalidated on every write that
	// touches a personal ledger
	summaryCache *cache.LRUCache[*core.MonthlySummary]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	s := &Server{
		store:         opts.Store,
		authenticator: opts.Authenticator,
		tokens:        opts.Tokens,
		households:    opts.Households,
		expenses:      opts.Expenses,
		ledger:        opts.Ledger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: opts.RateLimitPerMinute,
		}),
		detector:     security.NewDetector(),
		metrics:      newServerMetrics(),
		summaryCache: cache.NewLRUCache[*core.MonthlySummary](100, 30*time.Second),
		cacheManager: cache.NewManager(),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(5 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("POST /api/auth/register", s.handleRegister)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	mux.HandleFunc("GET /api/household", s.requireAuth(s.handleCurrentHousehold))
	mux.HandleFunc("POST /api/household", s.requireAuth(s.handleCreateHousehold))
	mux.HandleFunc("POST /api/household/join", s.requireAuth(s.handleJoinHousehold))
	mux.HandleFunc("POST /api/household/leave", s.requireAuth(s.handleLeaveHousehold))
	mux.HandleFunc("DELETE /api/household", s.requireAuth(s.handleDeleteHousehold))

	mux.HandleFunc("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.HandleFunc("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.HandleFunc("POST /api/expenses/{id}/pay", s.requireAuth(s.handlePayExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/personal", s.requireAuth(s.handleListPersonal))
	mux.HandleFunc("POST /api/personal", s.requireAuth(s.handleCreatePersonal))
	mux.HandleFunc("DELETE /api/personal/{id}", s.requireAuth(s.handleDeletePersonal))
	mux.HandleFunc("GET /api/personal/total", s.requireAuth(s.handleMonthlyTotal))
	mux.HandleFunc("GET /api/summary", s.requireAuth(s.handleSummary))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	tracer := trace.NewMiddleware(s.detector.ExtractClientIP, s.metrics.observe)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           tracer.Middleware(headers.Middleware(s.guard(mux))),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// guard applies suspicious-request logging and per-IP rate limiting on
// mutating methods.
func (s *Server) guard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := s.detector.ExtractClientIP(r)

		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request",
				"client_ip", clientIP,
				"method", r.Method,
				"path", r.URL.Path)
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
		default:
			if !s.limiter.Allow(clientIP) {
				s.metrics.rateLimitHits.Inc()
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP,
					"method", r.Method,
					"path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				writeJSON(w, http.StatusTooManyRequests, errorBody{
					Error: "rate limit exceeded",
					Code:  "rate_limited",
				})
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "database unavailable", Code: "not_ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
