// Package api exposes searches, their results and fetch usage over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"streeteasy_scraper/config"
	"streeteasy_scraper/scraper"
	"streeteasy_scraper/storage"
)

type Server struct {
	httpServer *http.Server
}

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"https://*", "http://*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Route("/searches", func(r chi.Router) {
			r.Post("/", h.StartSearch)
			r.Get("/", h.ListSearches)
			r.Get("/{id}", h.GetSearch)
			r.Delete("/{id}", h.CancelSearch)
			r.Get("/{id}/listings", h.SearchListings)
			r.Get("/{id}/listings.csv", h.SearchListingsCSV)
			r.Get("/{id}/charts", h.SearchCharts)
		})

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", h.ListRuns)
			r.Get("/{runID}", h.GetRun)
			r.Get("/{runID}/listings", h.RunListings)
		})

		r.Get("/presets", h.ListPresets)
		r.Post("/presets/{presetID}/run", h.RunPreset)
		r.Post("/schedule/pause", h.PauseSchedule)
		r.Post("/schedule/resume", h.ResumeSchedule)

		r.Get("/catalog", h.GetCatalog)
		r.Get("/usage", h.GetUsage)
		r.Post("/usage/reset", h.ResetUsage)
	})

	return r
}

// NewServer builds the HTTP server. exported may be nil when Postgres is not
// configured.
func NewServer(cfg *config.Config, orch *scraper.Orchestrator, jobs *JobManager, store *storage.SQLiteStore, exported ListingCounter) *Server {
	h := NewHandlers(orch, jobs, store, cfg.Catalog, cfg.CreditBudget)
	if exported != nil {
		h.SetListingCounter(exported)
	}
	return &Server{
		httpServer: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      NewRouter(h),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until Stop is called.
func (s *Server) Start() error {
	log.Printf("HTTP API listening on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("could not start server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	log.Println("Stopping HTTP API...")
	return s.httpServer.Shutdown(ctx)
}
