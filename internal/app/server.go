package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hireloop/hireloop/internal/api/handlers"
	appMiddleware "github.com/hireloop/hireloop/internal/api/middlewares"
	"github.com/hireloop/hireloop/internal/config"
	"github.com/hireloop/hireloop/internal/core"
	"github.com/hireloop/hireloop/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds and wires all routes. The webhook route sits outside the
// sanitization middleware so the signature verifier sees the provider's exact
// bytes.
func NewServer(
	cfg *config.Config,
	db core.DbClient,
	intake *services.IntakeService,
	analysis *services.AnalysisService,
	sessions *services.SessionService,
	tracker *services.ConversationService,
	logger *zap.Logger,
) *Server {
	intakeHandler := handlers.NewIntakeHandler(intake, analysis, db, logger)
	sessionHandler := handlers.NewSessionHandler(sessions, logger)
	webhookHandler := handlers.NewWebhookHandler(cfg.WebhookSecret, tracker, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(api chi.Router) {
		// raw-byte route, no body rewriting
		api.Post("/webhooks/messaging", webhookHandler.Receive)

		api.Group(func(business chi.Router) {
			business.Use(appMiddleware.Sanitize)

			business.Post("/applications", intakeHandler.SubmitApplication)
			business.Get("/applications/{id}", intakeHandler.GetApplication)
			business.Post("/applications/{id}/reanalyze", intakeHandler.Reanalyze)

			business.Post("/sessions", sessionHandler.CreateSession)
			business.Post("/sessions/refresh", sessionHandler.RefreshCredential)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, logger: logger}
}

// Start runs the HTTP server until it is shut down.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}
