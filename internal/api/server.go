package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/seantiz/keeper/internal/asset"
	"github.com/seantiz/keeper/internal/cloudconfig"
	"github.com/seantiz/keeper/internal/deviceconfig"
	"github.com/seantiz/keeper/internal/engine"
	"github.com/seantiz/keeper/internal/screenshot"
	"github.com/seantiz/keeper/internal/store"
)

const (
	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second
	writeTimeout      = 30 * time.Second
)

// Services are the application services the handlers forward to.
type Services struct {
	Assets       *asset.Service
	Screenshots  *screenshot.Service
	Cloud        *cloudconfig.Service
	DeviceConfig *deviceconfig.Store
	Engine       *engine.Engine
}

// Server wraps the chi router and application dependencies.
type Server struct {
	router   *chi.Mux
	store    store.Store
	assets   *asset.Service
	shots    *screenshot.Service
	cloud    *cloudconfig.Service
	device   *deviceconfig.Store
	engine   *engine.Engine
	settings map[string]asset.Kind
	logger   *slog.Logger
	addr     string
}

// NewServer creates and configures a new HTTP server.
func NewServer(addr string, s store.Store, svc Services, logger *slog.Logger) *Server {
	srv := &Server{
		router: chi.NewRouter(),
		store:  s,
		assets: svc.Assets,
		shots:  svc.Screenshots,
		cloud:  svc.Cloud,
		device: svc.DeviceConfig,
		engine: svc.Engine,
		logger: logger,
		addr:   addr,
	}
	if svc.Assets != nil {
		srv.settings = svc.Assets.SettingsKinds()
	}

	srv.router.Use(middleware.RequestID)
	srv.router.Use(middleware.Recoverer)
	srv.router.Use(srv.loggingMiddleware)
	srv.router.Use(instrument)
	srv.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	srv.routes()

	return srv
}

// routes registers all HTTP routes on the router.
func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Handle("/metrics", exposition)

	s.router.Get("/v1/stats", s.handleGetStats)

	s.router.Route("/v1/assets", func(r chi.Router) {
		r.Get("/", s.handleListAssets)
		r.Post("/", s.handleCreateAsset)
		r.Route("/{key}", func(r chi.Router) {
			r.Get("/", s.handleGetAsset)
			r.Delete("/", s.handleDeleteAsset)
			r.Post("/pause", s.handlePauseAsset)
			r.Post("/resume", s.handleResumeAsset)
			r.Post("/archive", s.handleArchiveAsset)

			r.Get("/points", s.handleListPoints)
			r.Post("/points", s.handleCreatePoint)
			r.Delete("/points/{epoch}", s.handleDeletePoint)

			r.Get("/screenshots", s.handleMatchScreenshots)
			r.Post("/screenshots", s.handleRecordScreenshot)
			r.Post("/screenshots/prune", s.handlePruneScreenshots)

			r.Get("/settings/{kind}", s.handleGetSettings)
			r.Put("/settings/{kind}", s.handlePutSettings)
		})
	})

	if s.cloud != nil {
		s.router.Route("/v1/cloud-config", func(r chi.Router) {
			r.Get("/", s.handleCloudStatus)
			r.Post("/pull", s.handleCloudPull)
			r.Post("/push", s.handleCloudPush)
		})
	}

	s.router.Route("/v1/device-config", func(r chi.Router) {
		r.Get("/", s.handleListDeviceConfig)
		r.Get("/{key}", s.handleGetDeviceConfig)
		r.Put("/{key}", s.handlePutDeviceConfig)
		r.Delete("/{key}", s.handleDeleteDeviceConfig)
	})

	s.router.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", s.handleCreateJob)
		r.Get("/", s.handleListJobs)
		r.Get("/kinds", s.handleListJobKinds)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/logs", s.handleStreamLogs)
		r.Get("/{id}/logs/history", s.handleGetLogHistory)
		r.Delete("/{id}", s.handleCancelJob)
	})
}

// Router returns the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Run starts the HTTP server and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
		WriteTimeout:      writeTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", s.addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// loggingMiddleware logs each request using the structured logger.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
