// Package web exposes the order dataset and import operations over HTTP
// for the dashboard frontend.
package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/pedidos/internal/config"
	"github.com/sells-group/pedidos/internal/importer"
	"github.com/sells-group/pedidos/internal/store"
)

// Server is the HTTP server for the pedidos dashboard API.
type Server struct {
	cfg      config.ServerConfig
	store    store.Store
	importer *importer.Importer
	uploads  *rate.Limiter
	router   *chi.Mux
}

// NewServer creates a Server with routing and middleware configured.
func NewServer(cfg config.ServerConfig, st store.Store, imp *importer.Importer) *Server {
	burst := cfg.UploadBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		importer: imp,
		// Imports are rare, operator-triggered full replacements; throttle
		// the upload route so a misbehaving client cannot queue them up.
		uploads: rate.NewLimiter(rate.Every(time.Second), burst),
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger)
	s.router.Use(middleware.Recoverer)

	origins := s.cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/upload", s.handleUpload)
		r.Get("/pedidos", s.handleListPedidos)
		r.Get("/stats", s.handleStats)
		r.Get("/check-data", s.handleCheckData)
		r.Get("/imports", s.handleListImports)
	})
}

// Router returns the configured handler for mounting on an http.Server.
func (s *Server) Router() http.Handler {
	return s.router
}
