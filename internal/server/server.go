package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/reckon-app/apiserver/config"
	"github.com/reckon-app/apiserver/internal/db"
	"github.com/reckon-app/apiserver/internal/handlers"
	"github.com/reckon-app/apiserver/internal/logging"
	"github.com/reckon-app/apiserver/internal/mq"
	"github.com/reckon-app/apiserver/internal/security"
	"github.com/reckon-app/apiserver/internal/services"
	"github.com/reckon-app/apiserver/internal/storage"
	"github.com/reckon-app/apiserver/internal/store"
)

const requestTimeout = 60 * time.Second

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	events     *mq.MQ
	storage    *storage.Storage
	log        logging.Logger
}

// Dependencies are the collaborators New builds the router from. Events and
// Reports may be nil to disable publishing and report export.
type Dependencies struct {
	DB      *sql.DB
	Users   *store.UserRepository
	Events  *mq.MQ
	Reports *storage.Storage
}

// New connects every configured backend and builds the server.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	dbConn, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	events, err := mq.Open(ctx, cfg.Events)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		if events != nil {
			_ = events.Close()
		}
		_ = dbConn.Close()
		return nil, err
	}

	srv, err := NewWithDependencies(cfg, log, Dependencies{
		DB:      dbConn,
		Users:   store.NewUserRepository(dbConn),
		Events:  events,
		Reports: objects,
	})
	if err != nil {
		_ = srv.closeBackends()
		return nil, err
	}

	log.Info(ctx, "server configured",
		"environment", cfg.Environment,
		"events_backend", cfg.Events.Backend,
		"storage_backend", cfg.Storage.Backend,
	)
	return srv, nil
}

// NewWithDependencies builds the server around already connected backends.
func NewWithDependencies(cfg config.Config, log logging.Logger, deps Dependencies) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{
		db:      deps.DB,
		events:  deps.Events,
		storage: deps.Reports,
		log:     log,
	}

	codec, err := security.NewTokenCodec(security.TokenConfig{
		Secret:     []byte(cfg.Auth.SecretKey),
		Algorithm:  cfg.Auth.Algorithm,
		DefaultTTL: cfg.Auth.AccessTokenTTL(),
	})
	if err != nil {
		return s, err
	}
	hasher := security.NewPasswordHasher(cfg.Auth.BcryptCost)

	// Interface values stay nil when a backend is disabled.
	var checks handlers.HealthChecks
	var publisher services.EventPublisher
	if deps.Events != nil {
		publisher = mq.NewEventPublisher(deps.Events, cfg.Events.Topic)
		checks.Events = deps.Events
	}
	var reports services.ReportStore
	if deps.Reports != nil {
		reports = deps.Reports
		checks.Storage = deps.Reports
	}
	var pool services.PoolStatter
	if deps.DB != nil {
		pool = deps.DB
		checks.DB = deps.DB
	}

	userService := services.NewUserService(deps.Users, hasher, publisher, log.With("component", "users"))
	authService := services.NewAuthService(deps.Users, hasher, codec, cfg.Auth.AccessTokenTTL(), log.With("component", "auth"))
	adminService := services.NewAdminService(deps.Users, pool, reports, services.SystemInfo{
		Environment: cfg.Environment,
		Version:     cfg.Version,
		StartedAt:   time.Now(),
	})
	access := handlers.NewAccessMiddleware(services.NewAccessResolver(deps.Users, codec), log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		handlers.RequestLogger(log),
		middleware.Timeout(requestTimeout),
	)
	handlers.HealthRouter(router, handlers.NewHealthHandler(checks, cfg.Environment, cfg.Version, log))
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authService, log)
	})
	router.Route("/users", func(r chi.Router) {
		handlers.UserRouter(r, userService, access, log)
	})
	router.Route("/admin", func(r chi.Router) {
		handlers.AdminRouter(r, adminService, access, log)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	s.router = router
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: requestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "http server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the backends.
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error
	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if err := s.closeBackends(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Server) closeBackends() error {
	var errs []error
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close events: %w", err))
		}
	}
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	return errors.Join(errs...)
}
