package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gradebook/apiserver/config"
	"github.com/gradebook/apiserver/internal/events"
	"github.com/gradebook/apiserver/internal/handlers"
	"github.com/gradebook/apiserver/internal/logging"
	"github.com/gradebook/apiserver/internal/mirror"
	"github.com/gradebook/apiserver/internal/services"
	"github.com/gradebook/apiserver/internal/session"
	"github.com/gradebook/apiserver/internal/store"
)

const (
	Version = "1.0.0"
	DocsURL = "https://github.com/gradebook/apiserver#readme"
)

// App holds the wired services over one persistence root.
type App struct {
	Users    *services.UserService
	Classes  *services.ClassService
	Mirror   *mirror.Mirror
	Sessions *session.Store
	Events   *events.Bus
}

// NewApp opens the data directory and the event bus, builds the services
// and restores the persisted state into memory.
func NewApp(ctx context.Context, cfg config.Config, log logging.Logger) (*App, error) {
	m, err := mirror.New(cfg.DataDir, log)
	if err != nil {
		return nil, err
	}

	bus, err := events.Open(ctx, cfg.MQ, log)
	if err != nil {
		return nil, err
	}

	sessions := session.NewStore()
	deps := services.Deps{
		DB:       store.New(),
		Sessions: sessions,
		Mirror:   m,
		Events:   bus,
		Policy:   cfg.Policy,
		Log:      log,
	}
	app := &App{
		Users:    services.NewUserService(deps, cfg.AdminUsers),
		Classes:  services.NewClassService(deps),
		Mirror:   m,
		Sessions: sessions,
		Events:   bus,
	}

	if _, err := app.Users.Restore(ctx); err != nil {
		_ = bus.Close()
		return nil, err
	}
	return app, nil
}

// Close releases the event bus.
func (a *App) Close() error {
	return a.Events.Close()
}

// NewRouter mounts every route of the API.
func NewRouter(cfg config.Config, app *App, log logging.Logger) *chi.Mux {
	authn := handlers.NewAuthenticator(app.Users, log)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
		cors.Handler(corsOptions(cfg)),
	)

	router.Get("/", handlers.Banner(Version, DocsURL))
	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, app.Users, authn, log)
	})
	router.Route("/items", func(r chi.Router) {
		handlers.ItemRouter(r, app.Classes, authn, log)
	})
	return router
}

func corsOptions(cfg config.Config) cors.Options {
	opts := cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}
	if cfg.AllowsAnyOrigin() {
		opts.AllowedOrigins = []string{"*"}
		return opts
	}
	opts.AllowedOrigins = cfg.AllowedOrigins
	opts.AllowCredentials = true
	return opts
}

// Server wraps the HTTP server and router.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	app        *App
	log        logging.Logger
}

// New constructs a Server with its middleware and state loaded from disk.
func New(ctx context.Context, cfg config.Config, log logging.Logger) (*Server, error) {
	app, err := NewApp(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	router := NewRouter(cfg, app, log)

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		app:        app,
		log:        log,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.log.Info(context.Background(), "server listening", "addr", s.httpServer.Addr, "data_dir", s.app.Mirror.Root())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests, then closes the event bus.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if closeErr := s.app.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("close events: %w", closeErr))
	}
	return err
}
