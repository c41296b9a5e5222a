package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"prohori/internal/api/handlers/http/admin"
	"prohori/internal/api/handlers/http/auth"
	"prohori/internal/api/handlers/http/public"
	"prohori/internal/api/handlers/http/system"
	"prohori/internal/config"
	"prohori/internal/domain"
	"prohori/internal/metrics"
	"prohori/internal/middleware"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

// Handlers groups everything the router mounts.
type Handlers struct {
	Public *public.Handler
	Admin  *admin.Handler
	Auth   *auth.Handler
	System *system.Handler
	// Sessions resolves bearer tokens for the admin and user routes.
	Sessions middleware.Authenticator
}

// NewServer builds the router. ctx bounds the rate limiter sweepers.
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger, h Handlers) *Server {
	return &Server{
		logger: logger,
		router: InitRouter(ctx, cfg, h, logger),
		cfg:    *cfg,
	}
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func InitRouter(ctx context.Context, cfg *config.Config, h Handlers, logger *slog.Logger) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(cfg.CORS.Origins))

	requireAdmin := middleware.RequireRole(h.Sessions, cfg.APIKey, domain.RoleAdmin, logger)
	adminLimit := middleware.Limit(ctx, cfg.Http.AdminRateRPS, cfg.Http.AdminRateBurst, cfg.Http.RateTTL, logger)

	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/health", h.System.SystemHealth)

		api.Group(func(pr chi.Router) {
			pr.Use(middleware.Limit(ctx, cfg.Http.RateRPS, cfg.Http.RateBurst, cfg.Http.RateTTL, logger))

			pr.Route("/crimes", func(cr chi.Router) {
				cr.Post("/", h.Public.CrimeCreate)
				cr.Get("/", h.Public.CrimeList)
				cr.Get("/nearby", h.Public.CrimeNearby)
				cr.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", h.Public.CrimeGet)
					ir.Patch("/resolve", h.Public.CrimeResolve)
					ir.With(adminLimit, requireAdmin).Delete("/", h.Admin.CrimeDelete)
				})
			})

			pr.Route("/sos", func(sr chi.Router) {
				sr.Post("/", h.Public.SosCreate)
				sr.Get("/", h.Public.SosList)
				sr.Get("/{id}", h.Public.SosGet)
				sr.Patch("/{id}/handle", h.Public.SosHandle)
			})

			pr.Route("/lostfound", func(lr chi.Router) {
				lr.Post("/", h.Public.LostFoundCreate)
				lr.Get("/", h.Public.LostFoundList)
				lr.Get("/{id}", h.Public.LostFoundGet)
				lr.Patch("/{id}/resolve", h.Public.LostFoundResolve)
			})

			pr.Get("/incidents/{id}", h.Public.IncidentGet)
			pr.Get("/blobs/{ref}", h.Public.BlobGet)

			pr.Route("/users", func(ur chi.Router) {
				ur.Use(middleware.Session(h.Sessions, logger))
				ur.Post("/register", h.Auth.Register)
				ur.Post("/login", h.Auth.Login)
				ur.Post("/logout", h.Auth.Logout)
			})
		})

		api.Route("/admin", func(ar chi.Router) {
			ar.Use(adminLimit)
			ar.Use(requireAdmin)
			ar.Get("/counts", h.Admin.AdminCounts)
		})
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
