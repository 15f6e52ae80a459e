package http

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GMosna/ContabilApp/internal/api"
	"github.com/GMosna/ContabilApp/internal/core"
	"github.com/GMosna/ContabilApp/internal/ledger"
	"github.com/GMosna/ContabilApp/internal/log"
	"github.com/GMosna/ContabilApp/internal/middleware/ratelimit"
	"github.com/GMosna/ContabilApp/internal/middleware/security"
	"github.com/GMosna/ContabilApp/internal/middleware/trace"
	"github.com/GMosna/ContabilApp/internal/services"
	"github.com/GMosna/ContabilApp/internal/state"
)

// loginPath is where pages go when the session is gone.
const loginPath = "/login"

// Finance is the application service behind the API. *services.FinanceService
// implements it.
type Finance interface {
	Session(ctx context.Context) (core.Session, error)
	Login(ctx context.Context, email, password string) (core.Session, error)
	Register(ctx context.Context, in api.RegisterInput) (core.Session, error)
	Logout(ctx context.Context) error

	Dashboard(ctx context.Context) (services.Dashboard, error)
	Charts(ctx context.Context) (services.Charts, error)

	Accounts(ctx context.Context) ([]core.Account, bool, error)
	Account(ctx context.Context, id core.AccountID) (core.Account, error)
	CreateAccount(ctx context.Context, a core.Account) (core.Account, error)
	UpdateAccount(ctx context.Context, a core.Account) (core.Account, error)
	DeleteAccount(ctx context.Context, id core.AccountID) error
	Deposit(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error)
	Withdraw(ctx context.Context, id core.AccountID, amount core.Money) (core.Account, error)
	Movements(ctx context.Context, id core.AccountID) ([]core.Movement, error)

	Transactions(ctx context.Context, f ledger.TransactionFilter) (services.TransactionList, error)
	Transaction(ctx context.Context, id core.TransactionID) (core.Transaction, error)
	CreateTransaction(ctx context.Context, tx core.Transaction) (services.TransactionResult, error)
	UpdateTransaction(ctx context.Context, tx core.Transaction) (services.TransactionResult, error)
	DeleteTransaction(ctx context.Context, id core.TransactionID) (services.TransactionResult, error)
	ClearTransactions(ctx context.Context) (services.TransactionResult, error)

	Categories(ctx context.Context) ([]core.Category, error)
	TransactionTypes(ctx context.Context) ([]core.TransactionType, error)
	UpdateTransactionType(ctx context.Context, tt core.TransactionType) (core.TransactionType, error)
	DeleteTransactionType(ctx context.Context, id core.TransactionTypeID) error

	Health(ctx context.Context) error
}

var _ Finance = (*services.FinanceService)(nil)

// OutboxStatus reports and resets the offline queue. *services.OutboxProcessor
// implements it.
type OutboxStatus interface {
	Stats(ctx context.Context) (state.OutboxStats, error)
	RetryFailed(ctx context.Context) (int64, error)
}

// Config configures the server.
type Config struct {
	Addr               string
	RateLimitPerMinute int
	AllowedOrigins     []string
	Logger             *log.Logger
	// Subscribe registers a callback run after every state change, for the
	// websocket stream. Usually (*state.Store).Subscribe.
	Subscribe func(fn func(version int64))
}

type Server struct {
	http.Server
	finance Finance
	outbox  OutboxStatus
	logger  *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	headers  *security.HeadersMiddleware
	tracer   *trace.Middleware
	hub      *Hub
	upgrader websocket.Upgrader

	started      time.Time
	hubCancel    context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
// outbox may be nil when no queue is configured.
func NewServer(finance Finance, outbox OutboxStatus, cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	headersConfig := security.DefaultHeadersConfig()
	headersConfig.AllowedOrigins = cfg.AllowedOrigins

	s := &Server{
		finance:  finance,
		outbox:   outbox,
		logger:   logger,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute}),
		detector: security.NewDetector(),
		headers:  security.NewHeadersMiddleware(headersConfig),
		hub:      NewHub(logger),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go s.hub.Run(hubCtx)
	if cfg.Subscribe != nil {
		cfg.Subscribe(s.hub.Notify)
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.middleware(s.routes()),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("POST /auth/login", s.handleLogin)
	mux.HandleFunc("POST /auth/register", s.handleRegister)
	mux.HandleFunc("POST /auth/logout", s.handleLogout)
	mux.HandleFunc("GET /auth/session", s.handleSession)

	mux.HandleFunc("GET /api/dashboard", s.authed(s.handleDashboard))
	mux.HandleFunc("GET /api/charts", s.authed(s.handleCharts))

	mux.HandleFunc("GET /api/accounts", s.authed(s.handleListAccounts))
	mux.HandleFunc("POST /api/accounts", s.authed(s.handleCreateAccount))
	mux.HandleFunc("GET /api/accounts/{id}", s.authed(s.handleGetAccount))
	mux.HandleFunc("PUT /api/accounts/{id}", s.authed(s.handleUpdateAccount))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.authed(s.handleDeleteAccount))
	mux.HandleFunc("POST /api/accounts/{id}/deposit", s.authed(s.handleDeposit))
	mux.HandleFunc("POST /api/accounts/{id}/withdraw", s.authed(s.handleWithdraw))
	mux.HandleFunc("GET /api/accounts/{id}/movements", s.authed(s.handleMovements))

	mux.HandleFunc("GET /api/transactions", s.authed(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.authed(s.handleCreateTransaction))
	mux.HandleFunc("DELETE /api/transactions", s.authed(s.handleClearTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.authed(s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.authed(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.authed(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/categories", s.authed(s.handleCategories))
	mux.HandleFunc("GET /api/banks", s.handleBanks)
	mux.HandleFunc("GET /api/transaction-types", s.authed(s.handleTransactionTypes))
	mux.HandleFunc("PUT /api/transaction-types/{id}", s.authed(s.handleUpdateTransactionType))
	mux.HandleFunc("DELETE /api/transaction-types/{id}", s.authed(s.handleDeleteTransactionType))

	mux.HandleFunc("GET /api/outbox", s.authed(s.handleOutboxStats))
	mux.HandleFunc("POST /api/outbox/retry", s.authed(s.handleOutboxRetry))

	mux.HandleFunc("GET /ws", s.authed(s.handleWebSocket))

	return mux
}

// middleware wraps the routes, outermost first: probe detection, tracing,
// request logger, security headers and the rate limit on writes.
func (s *Server) middleware(next http.Handler) http.Handler {
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, mutating, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, s.detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Muitas requisições. Tente novamente em instantes.").Write(w)
	})(next)

	h := s.headers.Middleware(limited)
	h = log.RequestIDMiddleware(trace.RequestID)(h)
	h = log.Middleware(s.logger)(h)
	h = s.tracer.Middleware(h)
	return s.detector.Middleware(h)
}

// authed is the auth gate: without a session the page is sent to the login.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.finance.Session(r.Context()); err != nil {
			UnauthorizedError("Faça login para continuar.").Write(w)
			return
		}
		next(w, r)
	}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	return s.headers.OriginAllowed(origin)
}

// Hub exposes the websocket hub, mostly for tests and metrics.
func (s *Server) Hub() *Hub { return s.hub }

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.hubCancel()
		s.hub.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady probes the backend. The page can still work from cached data
// when it is down, so the body says which dependency failed.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := map[string]any{}

	if err := s.finance.Health(ctx); err != nil {
		checks["backend"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["backend"] = "ok"
	}

	if s.outbox != nil {
		if stats, err := s.outbox.Stats(ctx); err != nil {
			checks["outbox"] = "failed: " + err.Error()
		} else {
			checks["outbox"] = stats
		}
	}

	checks["rate_limiter"] = s.limiter.GetMetrics()
	checks["security"] = s.detector.GetMetrics()
	checks["requests"] = s.tracer.GetMetrics()
	checks["websocket_clients"] = s.hub.Clients()

	NewResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already answered the request.
		s.logger.WarnContext(r.Context(), "WebSocket upgrade failed", log.FieldError, err)
		return
	}
	go s.hub.serve(conn)
}
