package http

import (
	"context"
	"errors"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"housefin/internal/config"
	applog "housefin/internal/log"
	"housefin/internal/middleware/ratelimit"
	"housefin/internal/middleware/security"
	"housefin/internal/middleware/trace"
	"housefin/internal/services"
	"housefin/internal/storage"
	appweb "housefin/web"
)

// Options wires the server to its collaborators. Limiter may be nil, which
// disables rate limiting on /login and /token.
type Options struct {
	Addr          string
	Config        *config.Config
	Store         storage.Store
	Accounts      *services.AccountService
	Households    *services.HouseholdService
	Contributions *services.ContributionService
	Limiter       *ratelimit.Limiter
	Logger        *applog.Logger

	// Templates overrides the embedded templates; used by tests.
	Templates fs.FS
}

type Server struct {
	http.Server
	cfg           *config.Config
	templates     map[string]*template.Template
	store         storage.Store
	accounts      *services.AccountService
	households    *services.HouseholdService
	contributions *services.ContributionService
	logger        *applog.Logger

	limiter         *ratelimit.Limiter
	detector        *security.Detector
	traceMiddleware *trace.Middleware
	secureCookies   bool
	startedAt       time.Time

	shutdownHooks []func()
	shutdownOnce  sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil || opts.Store == nil || opts.Accounts == nil ||
		opts.Households == nil || opts.Contributions == nil {
		return nil, errors.New("http server: missing dependency")
	}
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}

	var (
		tmpl map[string]*template.Template
		err  error
	)
	if opts.Templates != nil {
		tmpl, err = parseTemplates(opts.Templates)
	} else {
		tmpl, err = defaultTemplates()
	}
	if err != nil {
		return nil, err
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadTimeout:       opts.Config.ReadTimeout,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      opts.Config.WriteTimeout,
			IdleTimeout:       opts.Config.IdleTimeout,
			MaxHeaderBytes:    1 << 16, // 64KB
		},
		cfg:             opts.Config,
		templates:       tmpl,
		store:           opts.Store,
		accounts:        opts.Accounts,
		households:      opts.Households,
		contributions:   opts.Contributions,
		logger:          logger.WithComponent(applog.ComponentHTTP),
		limiter:         opts.Limiter,
		detector:        detector,
		traceMiddleware: trace.NewMiddleware(logger, detector.ExtractClientIP),
		secureCookies:   opts.Config.IsProduction(),
		startedAt:       time.Now(),
	}
	s.Handler = s.routes()
	return s, nil
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(s.traceMiddleware.Middleware)
	r.Use(middleware.Recoverer)
	r.Use(s.detector.Middleware)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(middleware.StripSlashes)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, errNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").Write(w)
	})

	r.Get("/healthz", s.handleLiveness)
	r.Get("/readyz", s.handleReady)
	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.With(security.StaticAssetMiddleware(3600)).Handle("/static/*", static)
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err.Error())
	}

	limited := func(next http.Handler) http.Handler { return next }
	if s.limiter != nil {
		limited = s.limiter.Middleware(s.detector.ExtractClientIP, s.tooManyAttempts)
	}

	// Public pages
	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.optionalUser)

		r.Get("/", s.handleIndex)
		r.Get("/login", s.handleLoginPage)
		r.With(limited).Post("/login", s.handleLogin)
		r.Get("/register", s.handleRegisterPage)
		r.Post("/register", s.handleRegister)
		r.Post("/logout", s.handleLogout)
		r.With(limited).Post("/token", s.handleToken)
	})

	// Authenticated pages and API
	r.Group(func(r chi.Router) {
		r.Use(security.NoStore)
		r.Use(s.requireUser)

		r.Get("/dashboard", s.handleDashboard)
		r.Post("/add-contribution", s.handleAddContribution)
		r.Get("/contributions", s.handleContributions)
		r.Get("/monthly-contributions", s.handleMonthlyContributions)
		r.Get("/profile", s.handleProfile)
		r.Post("/update-profile", s.handleUpdateProfile)
		r.Post("/homes", s.handleCreateHome)
		r.Post("/homes/join", s.handleJoinHome)
		r.Post("/homes/leave", s.handleLeaveHome)
		r.Post("/homes/remove-member", s.handleRemoveMember)
		r.Get("/analytics", s.handleAnalytics)

		r.Route("/api", func(r chi.Router) {
			r.Get("/dashboard", s.handleAPIDashboard)
			r.Get("/contributions", s.handleAPIContributions)
			r.Get("/analytics", s.handleAPIAnalytics)
			r.Get("/me", s.handleAPIMe)
		})
	})

	return r
}

// OnShutdown registers fn to run when the server shuts down.
func (s *Server) OnShutdown(fn func()) {
	s.shutdownHooks = append(s.shutdownHooks, fn)
}

// Shutdown gracefully shuts down the server and runs the shutdown hooks.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
		for _, fn := range s.shutdownHooks {
			fn()
		}
	})
	return shutdownErr
}

func (s *Server) tooManyAttempts(w http.ResponseWriter, r *http.Request) {
	const msg = "Too many attempts. Please wait a minute and try again."
	if wantsJSON(r) || r.URL.Path == "/token" {
		ErrorResponse(http.StatusTooManyRequests, msg).Write(w)
		return
	}
	s.render(w, r, http.StatusTooManyRequests, "login.html", loginPage{
		Page: Page{Title: "Log in", Error: msg},
	})
}
