package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/homzhub/ticket-engine/internal/catalog"
	"github.com/homzhub/ticket-engine/internal/config"
	"github.com/homzhub/ticket-engine/internal/events"
	"github.com/homzhub/ticket-engine/internal/lease"
	"github.com/homzhub/ticket-engine/internal/quote"
	"github.com/homzhub/ticket-engine/internal/storage"
	"github.com/homzhub/ticket-engine/internal/ticket"
)

// Server represents the HTTP API server
type Server struct {
	config         config.ServerConfig
	router         *chi.Mux
	tickets        *ticket.Service
	quotes         *quote.Workflow
	leases         *lease.Service
	catalog        *catalog.Catalog
	repo           storage.Repository
	hub            *events.Hub
	authMiddleware *AuthMiddleware
	jwtSecret      string
	tokenTTL       time.Duration
}

// NewServer creates a new API server
func NewServer(
	cfg config.ServerConfig,
	authCfg config.AuthConfig,
	tickets *ticket.Service,
	quotes *quote.Workflow,
	leases *lease.Service,
	cat *catalog.Catalog,
	repo storage.Repository,
	hub *events.Hub,
) *Server {
	s := &Server{
		config:         cfg,
		tickets:        tickets,
		quotes:         quotes,
		leases:         leases,
		catalog:        cat,
		repo:           repo,
		hub:            hub,
		authMiddleware: NewAuthMiddleware(repo, authCfg.JWTSecret),
		jwtSecret:      authCfg.JWTSecret,
		tokenTTL:       authCfg.TokenTTL,
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
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(httprate.LimitByIP(300, time.Minute))

	allowedOrigins := []string{"*"}
	if s.config.Origin != "" {
		allowedOrigins = []string{s.config.Origin}
	}

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check (outside versioned API - public)
	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)

	// Login is the only unauthenticated API endpoint
	r.Post("/api/v1/auth/login", s.handleLogin)

	// API v1 routes (protected by authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware.Authenticate)

		r.Get("/auth/me", s.handleMe)

		// Catalog
		r.Route("/catalog", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("catalog:read")).Get("/", s.handleListCategories)
			r.With(s.authMiddleware.RequirePermission("catalog:read")).Get("/{id}", s.handleGetCategory)
		})

		// Tickets
		r.Route("/tickets", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("tickets:read")).Get("/", s.handleListTickets)
			r.With(s.authMiddleware.RequirePermission("tickets:write")).Post("/", s.handleCreateTicket)
			r.With(s.authMiddleware.RequirePermission("tickets:read")).Get("/events", s.handleEventsWS)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("tickets:read")).Get("/", s.handleGetTicket)
				r.With(s.authMiddleware.RequirePermission("tickets:write")).Patch("/", s.handleTicketAction)
				r.With(s.authMiddleware.RequirePermission("tickets:read")).Get("/reviews", s.handleListReviews)

				// Quote submission wizard
				r.With(s.authMiddleware.RequirePermission("quotes:read")).Get("/quote-categories", s.handleQuoteSession)
				r.Route("/quotes", func(r chi.Router) {
					r.Use(s.authMiddleware.RequirePermission("quotes:write"))
					r.Put("/slots/{group}/{number}/price", s.handleSetPrice)
					r.Post("/slots/{group}/{number}/document", s.handleAttachDocument)
					r.Delete("/slots/{group}/{number}/document", s.handleRemoveDocument)
					r.Post("/advance", s.handleAdvance)
				})
				r.With(s.authMiddleware.RequirePermission("quotes:write")).
					Post("/quote-requests/{quoteRequestID}/quotes", s.handleSubmitQuotes)
				r.With(s.authMiddleware.RequirePermission("quotes:read")).
					Get("/quote-requests/{quoteRequestID}/quotes", s.handleGetSubmission)
			})
		})

		// Lease units
		r.Route("/lease-units", func(r chi.Router) {
			r.With(s.authMiddleware.RequirePermission("leases:read")).Get("/", s.handleListLeaseUnits)
			r.With(s.authMiddleware.RequirePermission("leases:write")).Post("/", s.handleCreateLeaseUnit)

			r.Route("/{id}", func(r chi.Router) {
				r.With(s.authMiddleware.RequirePermission("leases:read")).Get("/", s.handleGetLeaseUnit)
				r.With(s.authMiddleware.RequirePermission("leases:write")).Post("/spaces", s.handleAddSpace)
				r.With(s.authMiddleware.RequirePermission("leases:write")).Put("/term", s.handleSubmitTerm)
			})
		})
	})

	s.router = r
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
