package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"expensegroups/internal/auth"
	"expensegroups/internal/core"
	applog "expensegroups/internal/log"
	"expensegroups/internal/middleware/ratelimit"
	"expensegroups/internal/middleware/security"
	"expensegroups/internal/middleware/trace"
	"expensegroups/internal/services"
	appweb "expensegroups/web"
)

// Deps are the collaborators the server routes requests to.
type Deps struct {
	Accounts *services.AccountService
	Expenses *services.ExpenseService
	Groups   *services.GroupService
	Sessions *auth.Service
	// Ready reports whether the backing store can serve requests.
	Ready  func(ctx context.Context) error
	Logger *slog.Logger
}

// Options tune request handling.
type Options struct {
	CookieSecure       bool
	SessionTTL         time.Duration
	Location           *time.Location
	RateLimitPerMinute int
}

type Server struct {
	http.Server

	mux       *http.ServeMux
	templates *template.Template
	metrics   *Metrics
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *applog.Logger

	accounts *services.AccountService
	expenses *services.ExpenseService
	groups   *services.GroupService
	sessions *auth.Service
	ready    func(ctx context.Context) error

	opts Options
}

// NewServer parses the embedded templates, registers the routes and wraps
// them in the middleware chain.
func NewServer(addr string, deps Deps, opts Options) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Ready == nil {
		deps.Ready = func(context.Context) error { return nil }
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		mux:       http.NewServeMux(),
		templates: t,
		metrics:   NewMetrics(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		detector:  security.NewDetector(),
		logger:    applog.FromSlog(deps.Logger, applog.ComponentHTTP),
		accounts:  deps.Accounts,
		expenses:  deps.Expenses,
		groups:    deps.Groups,
		sessions:  deps.Sessions,
		ready:     deps.Ready,
		opts:      opts,
	}
	if err := s.routes(); err != nil {
		s.limiter.Stop()
		return nil, err
	}
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.middleware(s.mux),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() error {
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return err
	}
	s.mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServerFS(static))))

	s.mux.HandleFunc("GET /healthz", handleHealth)
	s.mux.HandleFunc("GET /readyz", s.handleReady)
	s.mux.Handle("GET /metrics", s.metrics.Handler())

	page := func(h http.HandlerFunc) http.Handler { return security.NoStore(h) }

	s.mux.Handle("GET /{$}", page(s.handleRoot))
	s.mux.Handle("GET /login", page(s.redirectIfSignedIn(s.handleLoginPage)))
	s.mux.Handle("POST /login", page(s.redirectIfSignedIn(s.handleLogin)))
	s.mux.Handle("GET /register", page(s.redirectIfSignedIn(s.handleRegisterPage)))
	s.mux.Handle("POST /register", page(s.redirectIfSignedIn(s.handleRegister)))
	s.mux.Handle("POST /logout", page(s.handleLogout))

	s.mux.Handle("GET /landingPage", page(s.requireSession(s.handleLanding)))
	s.mux.Handle("GET /expenseDashboard", page(s.requireSession(s.handleExpenseDashboard)))
	s.mux.Handle("GET /dashboard", page(s.requireSession(s.handleExpenseDashboard)))
	s.mux.Handle("GET /groupDashboard", page(s.requireSession(s.handleGroupDashboard)))
	s.mux.Handle("GET /groupManagement", page(s.requireSession(s.handleGroupDashboard)))

	s.mux.Handle("POST /expenses", page(s.requireSession(s.handleCreateExpense)))
	s.mux.Handle("POST /expenses/update", page(s.requireSession(s.handleUpdateExpense)))
	s.mux.Handle("POST /expenses/delete", page(s.requireSession(s.handleDeleteExpense)))

	s.mux.Handle("POST /groups", page(s.requireSession(s.handleCreateGroup)))
	s.mux.Handle("POST /groups/delete", page(s.requireSession(s.handleDeleteGroup)))
	s.mux.Handle("POST /groups/rename", page(s.requireSession(s.handleRenameGroup)))
	s.mux.Handle("POST /groups/active", page(s.requireSession(s.handleSetActiveGroup)))
	s.mux.Handle("POST /groups/active/clear", page(s.requireSession(s.handleClearActiveGroup)))
	s.mux.Handle("POST /groups/members", page(s.requireSession(s.handleAddMember)))
	s.mux.Handle("POST /groups/members/remove", page(s.requireSession(s.handleRemoveMember)))

	s.mux.Handle("GET /api/me", s.requireAPISession(s.handleAPIMe))
	s.mux.Handle("GET /api/expenses", s.requireAPISession(s.handleAPIExpenses))
	s.mux.Handle("GET /api/groups", s.requireAPISession(s.handleAPIGroups))
	return nil
}

// middleware wraps h, outermost first: request logger, tracing, security
// headers, probe detection, rate limiting, then session loading.
func (s *Server) middleware(h http.Handler) http.Handler {
	h = auth.SessionMiddleware(s.sessions)(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.handleRateLimited)(h)
	h = s.detector.Middleware(s.logger.WithComponent(applog.ComponentSecurity).Logger, s.metrics.Suspicious)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = applog.RequestIDMiddleware(trace.RequestID)(h)
	h = trace.NewMiddleware(s.logger, s.detector.ExtractClientIP, s.observe).Middleware(h)
	h = applog.Middleware(s.logger)(h)
	return h
}

func (s *Server) observe(r *http.Request, status int, elapsed time.Duration) {
	_, pattern := s.mux.Handler(r)
	s.metrics.ObserveRequest(r.Method, pattern, status, elapsed)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.metrics.RateLimited()
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		"client_ip", s.detector.ExtractClientIP(r),
		"path", r.URL.Path)
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Shutdown stops background work and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", "error", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ready"))
}

// errorStatus maps a service error to the status code of the response.
func errorStatus(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
