// Package server exposes the memory hierarchy over HTTP.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/patchwork-labs/stratum/internal/engine"
)

// Server is the stratum HTTP API server.
type Server struct {
	sys     *engine.System
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over a running System.
func New(sys *engine.System, version string) *Server {
	s := &Server{
		sys:     sys,
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/memories", s.handleStore)
		r.Get("/memories/{id}", s.handleGet)
		r.Delete("/memories/{id}", s.handleRemove)
		r.Get("/search", s.handleSearch)
		r.Post("/consolidate", s.handleConsolidate)
		r.Get("/stats", s.handleStats)
	})

	s.router = r
}
