package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/freecoach/internal/service"
)

// Server holds dependencies for HTTP handlers.
type Server struct {
	svc    *service.Service
	log    *slog.Logger
	apiKey string
	router chi.Router
}

// New creates a new Server with all routes configured.
func New(svc *service.Service, apiKey string, log *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		log:    log,
		apiKey: apiKey,
		router: chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(Identity)

		r.Get("/me", s.handleMe)
		r.Get("/templates", s.handleTemplates)
		r.Post("/rank", s.handleRank)
		r.Post("/plan", s.handlePlan)
		r.Get("/signals", s.handleSignals)
		r.Get("/sessions", s.handleListSessions)
		r.Get("/recovery/events", s.handleRecoveryEvents)
		r.Post("/coach", s.handleCoach)

		// Writes (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/sessions", s.handleLogSession)
			r.Post("/recovery/check", s.handleRecoveryCheck)
			r.Post("/recovery/events/{id}/accept", s.handleRecoveryAccept)
		})
	})
}

// SetMCP mounts the MCP streamable-HTTP endpoint at /mcp behind the API key.
func (s *Server) SetMCP(h http.Handler) {
	s.router.Group(func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Handle("/mcp", h)
	})
}
