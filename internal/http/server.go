package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"safepiggy/internal/core"
	"safepiggy/internal/export"
	"safepiggy/internal/log"
	"safepiggy/internal/middleware/ratelimit"
	"safepiggy/internal/middleware/security"
	"safepiggy/internal/middleware/trace"
	"safepiggy/internal/query"
	"safepiggy/internal/services"
)

// ExpenseService is what the handlers need from the service layer.
type ExpenseService interface {
	Create(ctx context.Context, payload map[string]any) (core.Expense, error)
	Get(ctx context.Context, id int64) (core.Expense, error)
	Update(ctx context.Context, id int64, payload map[string]any) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, f query.Filter) (services.ListResult, error)
	MonthlyStats(ctx context.Context) (core.MonthlyStats, error)
	ExportCSV(ctx context.Context, w io.Writer, f query.Filter, format export.Format) (int, error)
	RequestSheetsExport(ctx context.Context, f query.Filter, sheet, requestID string) error
	Ping(ctx context.Context) error
}

var _ ExpenseService = (*services.ExpenseService)(nil)

// Config holds the HTTP settings taken from the application config.
type Config struct {
	Addr               string
	RequestTimeout     time.Duration
	CORSAllowedOrigin  string
	RateLimitPerMinute int
	TrustedProxies     []string
}

type Server struct {
	http.Server
	service        ExpenseService
	logger         *log.Logger
	requestTimeout time.Duration

	detector    *security.Detector
	rateLimiter *ratelimit.Limiter
	tracer      *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, svc ExpenseService, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 7 * time.Second
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "*"
	}

	detector, err := security.NewDetector(cfg.TrustedProxies...)
	if err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	s := &Server{
		service:        svc,
		logger:         logger.WithComponent(log.ComponentHTTP),
		requestTimeout: cfg.RequestTimeout,
		detector:       detector,
		rateLimiter: ratelimit.NewLimiter(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimitPerMinute,
		}),
	}
	s.tracer = trace.NewMiddleware(detector.ExtractClientIP)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("GET /api/expenses/export/csv", s.handleExportCSV)
	mux.HandleFunc("POST /api/expenses/export/sheets", s.handleExportSheets)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PUT /api/expenses/{id}", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses/{id}", s.handleDeleteExpense)
	mux.HandleFunc("GET /api/stats/month", s.handleMonthlyStats)
	mux.HandleFunc("/", s.handleNotFound)

	// Outermost first.
	var handler http.Handler = mux
	handler = s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WithComponent(log.ComponentSecurity).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError().Write(w)
	}, http.MethodPost, http.MethodPut, http.MethodDelete)(handler)
	handler = detector.Middleware(handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigin)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = s.tracer.Middleware(handler)
	handler = log.Middleware(logger)(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}

	return s, nil
}

// Shutdown stops the rate limiter and drains the HTTP server. Only the
// first call does anything.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// Metrics is a snapshot of the middleware counters.
type Metrics struct {
	TotalRequests      int64
	RateLimitHits      int64
	SuspiciousRequests int64
}

func (s *Server) Metrics() Metrics {
	return Metrics{
		TotalRequests:      s.tracer.GetMetrics().TotalRequests,
		RateLimitHits:      s.rateLimiter.GetMetrics().TotalHits,
		SuspiciousRequests: s.detector.GetMetrics().SuspiciousRequests,
	}
}
