package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"notimo/internal/core"
	"notimo/internal/ledger"
	"notimo/internal/log"
	"notimo/internal/middleware/ratelimit"
	"notimo/internal/middleware/security"
	"notimo/internal/middleware/trace"
)

// LedgerService is what the handlers need from the service layer.
type LedgerService interface {
	View(module core.Module) (ledger.View, error)
	Preview(module core.Module, f ledger.FilterState) (ledger.View, error)
	SetFilter(module core.Module, f ledger.FilterState) (ledger.View, error)
	Months(module core.Module) ([]ledger.MonthOption, error)
	Labels(module core.Module) ([]string, error)
	Refresh(ctx context.Context, module core.Module) (ledger.View, error)
	Create(ctx context.Context, d core.Draft) (core.Transaction, ledger.View, error)
	Delete(ctx context.Context, module core.Module, id string) (ledger.View, error)
	ListCategories(ctx context.Context, position core.Position) ([]core.Category, error)
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
}

// Options configures the server. Zero values are usable.
type Options struct {
	Logger *log.Logger
	// Location interprets line item dates in creation payloads.
	Location *time.Location
	// Ready reports backend health for /readyz; nil means always ready.
	Ready func(ctx context.Context) error
	// RateLimit bounds write requests per client.
	RateLimit ratelimit.Config
}

type Server struct {
	http.Server
	svc      LedgerService
	logger   *log.Logger
	loc      *time.Location
	ready    func(ctx context.Context) error
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, svc LedgerService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default(log.ComponentHTTP)
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		loc:      loc,
		ready:    opts.Ready,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/{module}/view", s.handleView)
	mux.HandleFunc("POST /api/{module}/filter", s.handleSetFilter)
	mux.HandleFunc("GET /api/{module}/months", s.handleMonths)
	mux.HandleFunc("GET /api/{module}/labels", s.handleLabels)
	mux.HandleFunc("POST /api/{module}/refresh", s.handleRefresh)
	mux.HandleFunc("DELETE /api/{module}/transactions/{id}", s.handleDeleteTransaction)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	writeJSON(w, r, http.StatusTooManyRequests, ErrorResponse{
		Error:     "rate limit exceeded, please try again later",
		RequestID: trace.GetRequestID(r.Context()),
	})
}
