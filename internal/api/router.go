package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"github.com/savegress/investdash/internal/config"
	"github.com/savegress/investdash/internal/dashboard"
	"github.com/savegress/investdash/internal/logger"
)

// Server represents the API server
type Server struct {
	config   *config.Config
	router   chi.Router
	handlers *Handlers
	log      zerolog.Logger
}

// NewServer creates a new API server
func NewServer(cfg *config.Config, registry *dashboard.Registry, hub *Hub, log zerolog.Logger) *Server {
	s := &Server{
		config:   cfg,
		router:   chi.NewRouter(),
		handlers: NewHandlers(registry, hub, log),
		log:      log,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	origins := s.config.Server.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(logger.RequestLogger(s.log))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handlers.HealthCheck)

	s.router.Route("/api/v1/investdash", func(r chi.Router) {
		r.Use(AuthMiddleware(s.config.Server.JWTSecret))

		// Session state
		r.Get("/snapshot", s.handlers.GetSnapshot)
		r.Post("/refresh", s.handlers.Refresh)
		r.Put("/date", s.handlers.SetDate)
		r.Put("/timeline", s.handlers.SetTimeline)
		r.Post("/logout", s.handlers.Logout)
		r.Get("/ws", s.handlers.ServeWS)

		// Spend
		r.Route("/spend", func(r chi.Router) {
			r.Get("/", s.handlers.GetSpend)
			r.Get("/change", s.handlers.GetSpendChange)
			r.Get("/trend", s.handlers.GetSpendTrend)
		})

		// Revenue
		r.Get("/revenue/weekly", s.handlers.GetWeeklyRevenue)

		// Distribution
		r.Route("/distribution", func(r chi.Router) {
			r.Get("/", s.handlers.GetDistribution)
			r.Post("/legend/{name}/toggle", s.handlers.ToggleLegend)
		})
	})
}

// Router returns the chi router
func (s *Server) Router() http.Handler {
	return s.router
}
