package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"streeteasy_scraper/analytics"
	"streeteasy_scraper/config"
	"streeteasy_scraper/export"
	"streeteasy_scraper/models"
	"streeteasy_scraper/scraper"
	"streeteasy_scraper/storage"
)

type Handlers struct {
	orch    *scraper.Orchestrator
	jobs    *JobManager
	store   *storage.SQLiteStore
	catalog *config.Catalog
	budget  int

	exported ListingCounter
}

// ListingCounter reports how many listings the Postgres sink holds.
type ListingCounter interface {
	CountListings(ctx context.Context) (int, error)
}

// NewHandlers wires the API. store may be nil, in which case run history
// endpoints answer 503 and usage is computed from in-memory jobs.
func NewHandlers(orch *scraper.Orchestrator, jobs *JobManager, store *storage.SQLiteStore, catalog *config.Catalog, budget int) *Handlers {
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &Handlers{
		orch:    orch,
		jobs:    jobs,
		store:   store,
		catalog: catalog,
		budget:  budget,
	}
}

// SearchRequest starts a search. Either PresetID or Query is required; a
// Query given alongside a preset replaces the preset's query.
type SearchRequest struct {
	PresetID string              `json:"preset_id"`
	Borough  string              `json:"borough"`
	Query    *models.SearchQuery `json:"query"`
	APIKey   string              `json:"api_key"`
	Export   *models.ExportFlags `json:"export"`
}

// SetListingCounter adds the exported listing count to /health.
func (h *Handlers) SetListingCounter(c ListingCounter) {
	h.exported = c
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status": "ok",
		"paused": h.orch.IsPaused(),
		"jobs":   len(h.jobs.List()),
	}
	if h.exported != nil {
		n, err := h.exported.CountListings(r.Context())
		if err != nil {
			log.Printf("Health: counting exported listings: %v", err)
			resp["postgres"] = "unavailable"
		} else {
			resp["postgres"] = "ok"
			resp["exported_listings"] = n
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}

func (h *Handlers) StartSearch(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv := scraper.Invocation{Credential: req.APIKey, Borough: req.Borough}
	if req.PresetID != "" {
		p, ok := h.orch.Preset(req.PresetID)
		if !ok {
			h.respondError(w, http.StatusNotFound, "unknown preset")
			return
		}
		inv.PresetID = p.ID
		inv.Query = p.Query
		inv.Export = p.Export
		if inv.Borough == "" {
			inv.Borough = p.Borough
		}
	} else if req.Query == nil {
		h.respondError(w, http.StatusBadRequest, "either preset_id or query is required")
		return
	}
	if req.Query != nil {
		inv.Query = *req.Query
	}
	if req.Export != nil {
		inv.Export = *req.Export
	}

	if err := validateQuery(inv.Query); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.respondJSON(w, http.StatusAccepted, h.jobs.Start(inv))
}

func validateQuery(q models.SearchQuery) error {
	switch {
	case q.MaxPrice < 0:
		return errors.New("max_price must not be negative")
	case q.MinSqFt < 0:
		return errors.New("min_sqft must not be negative")
	case q.MaxTaxes < 0:
		return errors.New("max_taxes must not be negative")
	case q.MaxFees < 0:
		return errors.New("max_fees must not be negative")
	case q.MaxPages < 0:
		return errors.New("max_pages must not be negative")
	}
	return nil
}

func (h *Handlers) ListSearches(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, h.jobs.List())
}

func (h *Handlers) GetSearch(w http.ResponseWriter, r *http.Request) {
	job, err := h.jobs.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, job)
}

func (h *Handlers) CancelSearch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.jobs.Cancel(id); err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	job, _ := h.jobs.Wait(r.Context(), id)
	h.respondJSON(w, http.StatusOK, job)
}

// jobListings writes an error and returns ok=false unless the job exists
// and has finished.
func (h *Handlers) jobListings(w http.ResponseWriter, r *http.Request) ([]models.Listing, bool) {
	listings, done, err := h.jobs.Listings(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusNotFound, err.Error())
		return nil, false
	}
	if !done {
		h.respondError(w, http.StatusConflict, "search still running")
		return nil, false
	}
	return listings, true
}

func (h *Handlers) SearchListings(w http.ResponseWriter, r *http.Request) {
	criteria, err := parseCriteria(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	listings, ok := h.jobListings(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, filtered(listings, criteria))
}

func (h *Handlers) SearchListingsCSV(w http.ResponseWriter, r *http.Request) {
	listings, ok := h.jobListings(w, r)
	if !ok {
		return
	}
	job, _ := h.jobs.Get(chi.URLParam(r, "id"))
	analytics.SortByListingDate(listings)

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(job.Borough)))
	if err := export.WriteCSV(w, listings); err != nil {
		log.Printf("CSV download failed: %v", err)
	}
}

func (h *Handlers) SearchCharts(w http.ResponseWriter, r *http.Request) {
	listings, ok := h.jobListings(w, r)
	if !ok {
		return
	}
	h.respondJSON(w, http.StatusOK, analytics.Build(listings))
}

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := h.store.RecentRuns(limit)
	if err != nil {
		log.Printf("Error listing runs: %v", err)
		h.respondError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []models.SearchRun{}
	}
	h.respondJSON(w, http.StatusOK, runs)
}

func (h *Handlers) runID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "runID"), 10, 64)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid run id")
		return 0, false
	}
	return id, true
}

func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	run, err := h.store.GetRun(id)
	if err != nil {
		log.Printf("Error loading run %d: %v", id, err)
		h.respondError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		h.respondError(w, http.StatusNotFound, "run not found")
		return
	}
	logs, err := h.store.GetLogs(id)
	if err != nil {
		log.Printf("Error loading logs for run %d: %v", id, err)
	}
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"run":  run,
		"logs": logs,
	})
}

func (h *Handlers) RunListings(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	id, ok := h.runID(w, r)
	if !ok {
		return
	}
	criteria, err := parseCriteria(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	listings, err := h.store.GetListings(id)
	if err != nil {
		log.Printf("Error loading listings for run %d: %v", id, err)
		h.respondError(w, http.StatusInternalServerError, "failed to load listings")
		return
	}
	h.respondJSON(w, http.StatusOK, filtered(listings, criteria))
}

type presetView struct {
	*models.SearchPreset
	LastRun *time.Time `json:"last_run,omitempty"`
}

// ListPresets includes each preset's last recorded run when history is kept.
func (h *Handlers) ListPresets(w http.ResponseWriter, r *http.Request) {
	presets := h.orch.Presets()
	out := make([]presetView, 0, len(presets))
	for _, p := range presets {
		v := presetView{SearchPreset: p}
		if h.store != nil {
			last, err := h.store.LastRunTime(p.ID)
			if err != nil {
				log.Printf("Error reading last run of %s: %v", p.ID, err)
			} else if !last.IsZero() {
				v.LastRun = &last
			}
		}
		out = append(out, v)
	}
	h.respondJSON(w, http.StatusOK, out)
}

func (h *Handlers) RunPreset(w http.ResponseWriter, r *http.Request) {
	p, ok := h.orch.Preset(chi.URLParam(r, "presetID"))
	if !ok {
		h.respondError(w, http.StatusNotFound, "unknown preset")
		return
	}
	h.respondJSON(w, http.StatusAccepted, h.jobs.Start(scraper.Invocation{
		PresetID: p.ID,
		Borough:  p.Borough,
		Query:    p.Query,
		Export:   p.Export,
	}))
}

func (h *Handlers) PauseSchedule(w http.ResponseWriter, r *http.Request) {
	h.orch.Pause()
	h.respondJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (h *Handlers) ResumeSchedule(w http.ResponseWriter, r *http.Request) {
	h.orch.Resume()
	h.respondJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (h *Handlers) GetCatalog(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"neighborhoods":  h.catalog.Neighborhoods(),
		"property_types": h.catalog.PropertyTypes,
	})
}

func (h *Handlers) GetUsage(w http.ResponseWriter, r *http.Request) {
	totals, err := h.usage()
	if err != nil {
		log.Printf("Error computing usage: %v", err)
		h.respondError(w, http.StatusInternalServerError, "failed to compute usage")
		return
	}
	h.respondJSON(w, http.StatusOK, totals)
}

func (h *Handlers) ResetUsage(w http.ResponseWriter, r *http.Request) {
	h.jobs.ResetUsage()
	if h.store != nil {
		if err := h.store.ResetUsage(); err != nil {
			log.Printf("Error resetting usage: %v", err)
			h.respondError(w, http.StatusInternalServerError, "failed to reset usage")
			return
		}
	}
	h.GetUsage(w, r)
}

func (h *Handlers) usage() (*models.UsageTotals, error) {
	if h.store != nil {
		return h.store.UsageTotals(h.budget)
	}
	runs, u := h.jobs.Usage()
	remaining := h.budget - u.Credits
	if remaining < 0 {
		remaining = 0
	}
	return &models.UsageTotals{
		Runs:      runs,
		Calls:     u.Calls,
		Credits:   u.Credits,
		Budget:    h.budget,
		Remaining: remaining,
	}, nil
}

func (h *Handlers) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		h.respondError(w, http.StatusServiceUnavailable, "run history is disabled")
		return false
	}
	return true
}

func parseCriteria(r *http.Request) (analytics.Criteria, error) {
	q := r.URL.Query()
	c := analytics.Criteria{Neighborhood: q.Get("neighborhood")}
	fields := []struct {
		name string
		dst  *int
	}{
		{"max_price", &c.MaxPrice},
		{"min_sqft", &c.MinSqFt},
		{"max_taxes", &c.MaxTaxes},
		{"max_fees", &c.MaxFees},
	}
	for _, f := range fields {
		v := q.Get(f.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return c, fmt.Errorf("invalid %s", f.name)
		}
		*f.dst = n
	}
	return c, nil
}

// filtered applies c and orders newest first.
func filtered(listings []models.Listing, c analytics.Criteria) []models.Listing {
	out := analytics.Filter(listings, c)
	analytics.SortByListingDate(out)
	return out
}

func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
