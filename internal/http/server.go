package http

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"sobres/internal/controller"
	"sobres/internal/log"
	"sobres/internal/middleware/ratelimit"
	"sobres/internal/middleware/security"
	"sobres/internal/middleware/trace"
	"sobres/internal/prefs"
	appweb "sobres/web"
)

// Options tune the server; the zero value is usable.
type Options struct {
	Logger *log.Logger
	// PollInterval is how often open pages refresh their panels.
	PollInterval time.Duration
	// SettleTimeout bounds how long an assignment response waits for the
	// backend before answering with the optimistic figures.
	SettleTimeout time.Duration
	RateLimit     ratelimit.Config
	// Ready reports whether the backend answers; nil means always ready.
	Ready func(context.Context) error
	// Now is the clock used for the default month.
	Now func() time.Time
}

// Server is the budget web UI.
type Server struct {
	*http.Server

	ctrl      *controller.Controller
	prefs     *prefs.Store
	templates *template.Template
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	pollInterval  time.Duration
	settleTimeout time.Duration
	ready         func(context.Context) error
	now           func() time.Time
	started       time.Time

	shutdownOnce sync.Once
}

// NewServer wires the router. It fails only when the embedded templates do
// not parse.
func NewServer(addr string, ctrl *controller.Controller, store *prefs.Store, opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if opts.SettleTimeout <= 0 {
		opts.SettleTimeout = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	t, err := appweb.Templates(templateFuncs())
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		ctrl:          ctrl,
		prefs:         store,
		templates:     t,
		logger:        opts.Logger.WithComponent(log.ComponentHTTP),
		limiter:       ratelimit.NewLimiter(opts.RateLimit),
		detector:      security.NewDetector(opts.Logger),
		pollInterval:  opts.PollInterval,
		settleTimeout: opts.SettleTimeout,
		ready:         opts.Ready,
		now:           opts.Now,
		started:       time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, opts.Logger)

	s.Server = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware)
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, ratelimit.Writes, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "too many changes at once, slow down").Write(w)
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.With(security.StaticAssetMiddleware(86400)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(appweb.Static()))))

	r.Get("/", s.handleBudgetPage)
	r.Get("/ui/budget", s.handleBudgetPanel)
	r.Post("/budget/assign", s.handleAssign)
	r.Post("/categories/{id}/goal", s.handleSaveGoal)

	r.Get("/accounts", s.handleAccountsPage)
	r.Get("/ui/accounts", s.handleAccountsPanel)
	r.Post("/accounts", s.handleCreateAccount)
	r.Post("/accounts/{id}/reconcile", s.handleReconcile)

	r.Get("/transactions", s.handleTransactionsPage)
	r.Get("/ui/transactions", s.handleTransactionsPanel)
	r.Post("/transactions", s.handleCreateTransaction)
	r.Post("/transactions/link", s.handleLinkTransfer)
	r.Post("/transactions/{id}/unlink", s.handleUnlinkTransfer)
	r.Post("/transactions/{id}/category", s.handleSetCategory)
	r.Post("/transfers", s.handleCreateTransfer)

	r.Get("/settings", s.handleSettingsPage)
	r.Post("/settings/locale", s.handleSaveLocale)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusNotFound, "page not found").Write(w)
	})
	return r
}

// render executes name into a buffer so a failing template never sends half a page.
func (s *Server) render(ctx context.Context, name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		s.logger.ErrorContext(ctx, "Template render failed",
			log.FieldOperation, log.OpRender, "template", name, log.FieldError, err)
		return nil, err
	}
	return buf.Bytes(), nil
}

// respond renders name into b and writes it.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	body, err := s.render(r.Context(), name, data)
	if err != nil {
		ErrorResponse(http.StatusInternalServerError, "could not render the page").Write(w)
		return
	}
	b.BodyHTML(body).Write(w)
}

// fail logs err and answers with the matching status and message.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, log.FieldPath, r.URL.Path, log.FieldError, err)
	} else {
		s.logger.WarnContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldPath, r.URL.Path, log.FieldError, err)
	}
	ErrorResponse(status, msg).Write(w)
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
