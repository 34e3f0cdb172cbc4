package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/interview-engine/internal/catalog"
	"github.com/terra-clan/interview-engine/internal/config"
	"github.com/terra-clan/interview-engine/internal/interview"
	"github.com/terra-clan/interview-engine/internal/mail"
	"github.com/terra-clan/interview-engine/internal/models"
	"github.com/terra-clan/interview-engine/internal/progress"
	"github.com/terra-clan/interview-engine/internal/recommend"
	"github.com/terra-clan/interview-engine/internal/services"
	"github.com/terra-clan/interview-engine/internal/storage"
	"github.com/terra-clan/interview-engine/internal/submission"
)

// Deps are the components the HTTP layer delegates to
type Deps struct {
	Responses    storage.ResponseStore
	Clients      storage.ClientStore
	Catalog      *catalog.Loader
	Tracker      *progress.Tracker
	Gateway      *submission.Gateway
	Interviewer  *interview.Interviewer
	Conversation *interview.Conversation
	Assembler    *recommend.Assembler
	Mail         *mail.Service
	Registry     *services.Registry
	Limiter      Limiter
}

// Server represents the HTTP API server
type Server struct {
	config         *config.Config
	router         *chi.Mux
	deps           Deps
	authMiddleware *AuthMiddleware
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Registry == nil {
		deps.Registry = services.NewRegistry()
	}
	if deps.Limiter == nil {
		deps.Limiter = NewRateLimiter()
	}

	s := &Server{
		config:         cfg,
		deps:           deps,
		authMiddleware: NewAuthMiddleware(deps.Clients, cfg.Auth.Enabled),
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		// Websocket conversations outlive the request timeout
		r.With(s.rateLimit()).Get("/progress/{type}/{taskId}/ws", s.handleConversationWS)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout()))

			// Candidate-facing routes
			r.Group(func(r chi.Router) {
				r.Use(s.rateLimit())

				r.Post("/save-response", s.handleSaveResponse)
				r.Post("/behavioral-ai", s.handleBehavioralAI)

				r.Get("/stages", s.handleListStages)
				r.Get("/stages/{type}", s.handleGetStage)

				r.Get("/progress", s.handleProgressOverview)
				r.Get("/progress/{type}/{taskId}", s.handleGetProgress)
				r.Delete("/progress/{type}/{taskId}", s.handleResetProgress)
				r.Post("/progress/{type}/{taskId}/start", s.handleStartTask)
				r.Put("/progress/{type}/{taskId}/draft", s.handleSaveDraft)
				r.Post("/progress/{type}/{taskId}/turns", s.handleCandidateTurn)
			})

			// Company-facing routes
			r.Group(func(r chi.Router) {
				r.Use(s.authMiddleware.Authenticate)

				r.With(s.authMiddleware.RequirePermission(models.PermResponsesRead)).Get("/get-responses", s.handleGetResponses)
				r.With(s.authMiddleware.RequirePermission(models.PermResponsesRead)).Get("/export-responses", s.handleExportResponses)
				r.With(s.authMiddleware.RequirePermission(models.PermRecommendationsWrite)).Post("/recommend-candidate", s.handleRecommend)
				r.With(s.authMiddleware.RequirePermission(models.PermEmailsSend)).Post("/send-decision-email", s.handleSendDecisionEmail)
				r.With(s.authMiddleware.RequirePermission(models.PermEmailsSend)).Post("/send-interview-email", s.handleSendInterviewEmail)
			})
		})
	})

	s.router = r
}

func (s *Server) requestTimeout() time.Duration {
	if s.config.Server.RequestTimeout > 0 {
		return s.config.Server.RequestTimeout
	}
	return 90 * time.Second
}

// rateLimit limits candidate-facing routes per client IP
func (s *Server) rateLimit() func(http.Handler) http.Handler {
	rl := s.config.RateLimit
	if !rl.Enabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimit(s.deps.Limiter, func(r *http.Request) string {
		return "ratelimit:" + ClientIP(r)
	}, rl.Requests, rl.Window)
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
