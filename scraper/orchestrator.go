package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"time"

	"streeteasy_scraper/export"
	"streeteasy_scraper/models"
	"streeteasy_scraper/storage"
)

// ListingExporter receives a finished run's listings.
type ListingExporter interface {
	ExportListings(ctx context.Context, runID int64, listings []models.Listing) (int, error)
}

// Uploader stores exported files.
type Uploader interface {
	Upload(ctx context.Context, key string, data io.Reader, contentType string) error
	PublicURL(key string) string
}

const exportTimeout = 2 * time.Minute

// Invocation describes one search to run.
type Invocation struct {
	PresetID   string
	Borough    string
	Query      models.SearchQuery
	Credential string
	Export     models.ExportFlags
}

// Orchestrator runs searches and records them: run history and logs go to
// SQLite, and listings are exported when the invocation asks for it. Every
// collaborator except the runner is optional.
type Orchestrator struct {
	runner            *Runner
	store             *storage.SQLiteStore
	pg                ListingExporter
	uploader          Uploader
	defaultCredential string

	mu      sync.Mutex
	presets map[string]*models.SearchPreset
	paused  bool
}

func NewOrchestrator(runner *Runner, store *storage.SQLiteStore, defaultCredential string) *Orchestrator {
	return &Orchestrator{
		runner:            runner,
		store:             store,
		defaultCredential: defaultCredential,
		presets:           make(map[string]*models.SearchPreset),
	}
}

// SetExporters injects the optional Postgres and S3 sinks. Either may be nil.
func (o *Orchestrator) SetExporters(pg ListingExporter, uploader Uploader) {
	o.pg = pg
	o.uploader = uploader
}

func (o *Orchestrator) SetPresets(presets []*models.SearchPreset) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.presets = make(map[string]*models.SearchPreset, len(presets))
	for _, p := range presets {
		o.presets[p.ID] = p
	}
}

// Presets returns the loaded presets sorted by ID.
func (o *Orchestrator) Presets() []*models.SearchPreset {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*models.SearchPreset, 0, len(o.presets))
	for _, p := range o.presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (o *Orchestrator) Preset(id string) (*models.SearchPreset, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	p, ok := o.presets[id]
	return p, ok
}

func (o *Orchestrator) Pause() {
	o.mu.Lock()
	o.paused = true
	o.mu.Unlock()
	log.Println("Scheduled searches paused")
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
	log.Println("Scheduled searches resumed")
}

func (o *Orchestrator) IsPaused() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.paused
}

// RunAll runs every preset in ID order. Scheduled runs skip while paused.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.IsPaused() {
		log.Println("Searches are paused, skipping run")
		return nil
	}
	for _, p := range o.Presets() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, _, err := o.RunPreset(ctx, p.ID); err != nil {
			log.Printf("Error running preset %s: %v", p.ID, err)
		}
	}
	return nil
}

// RunPreset runs a saved search. The returned error is only set when the
// preset is unknown; search failures are reported through the Result.
func (o *Orchestrator) RunPreset(ctx context.Context, id string) (*models.SearchRun, *Result, error) {
	p, ok := o.Preset(id)
	if !ok {
		return nil, nil, fmt.Errorf("unknown preset: %s", id)
	}
	run, res := o.Run(ctx, Invocation{
		PresetID: p.ID,
		Borough:  p.Borough,
		Query:    p.Query,
		Export:   p.Export,
	}, nil)
	return run, res, nil
}

// Run executes inv and records it. Partial results are still saved and
// exported when the search ends early.
func (o *Orchestrator) Run(ctx context.Context, inv Invocation, progress Progress) (*models.SearchRun, *Result) {
	credential := inv.Credential
	if credential == "" {
		credential = o.defaultCredential
	}

	queryJSON, _ := json.Marshal(inv.Query)
	run := &models.SearchRun{
		PresetID:  inv.PresetID,
		Query:     queryJSON,
		SearchURL: o.runner.SearchURL(inv.Query),
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if o.store != nil {
		if _, err := o.store.CreateRun(run); err != nil {
			log.Printf("Warning: failed to record run: %v", err)
		}
	}
	o.log(run, models.LogLevelInfo, fmt.Sprintf("Starting search: %s", run.SearchURL))

	res := o.runner.RunSearch(ctx, inv.Query, credential, progress)

	now := time.Now()
	run.FinishedAt = &now
	run.Status = res.Status
	run.PagesFetched = res.PagesFetched
	run.ListingsFound = len(res.Listings)
	run.ListingsEnriched = res.Enriched
	run.APICalls = res.Usage.Calls
	run.APICredits = res.Usage.Credits
	if res.Err != nil {
		run.ErrorMessage = res.Err.Error()
	}

	// persistence outlives a cancelled search
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), exportTimeout)
	defer cancel()

	if o.store != nil && run.ID != 0 {
		if err := o.store.FinishRun(run); err != nil {
			log.Printf("Warning: failed to finish run %d: %v", run.ID, err)
		}
		if err := o.store.SaveListings(run.ID, res.Listings); err != nil {
			o.log(run, models.LogLevelError, fmt.Sprintf("Saving listings failed: %v", err))
		}
	}

	level := models.LogLevelInfo
	if run.Status.EndedEarly() {
		level = models.LogLevelWarn
	}
	o.log(run, level, fmt.Sprintf("Finished %s: %d listings, %d pages, %d enriched, %d calls, %d credits",
		run.Status, run.ListingsFound, run.PagesFetched, run.ListingsEnriched, run.APICalls, run.APICredits))
	if res.Err != nil {
		o.log(run, models.LogLevelError, res.Err.Error())
	}

	if len(res.Listings) > 0 {
		o.export(saveCtx, run, inv, res.Listings)
	}
	return run, res
}

func (o *Orchestrator) export(ctx context.Context, run *models.SearchRun, inv Invocation, listings []models.Listing) {
	if inv.Export.Postgres && o.pg != nil {
		n, err := o.pg.ExportListings(ctx, run.ID, listings)
		if err != nil {
			o.log(run, models.LogLevelError, fmt.Sprintf("Postgres export failed: %v", err))
		} else {
			o.log(run, models.LogLevelInfo, fmt.Sprintf("Exported %d listings to Postgres", n))
		}
	}

	if inv.Export.S3 && o.uploader != nil {
		var buf bytes.Buffer
		if err := export.WriteCSV(&buf, listings); err != nil {
			o.log(run, models.LogLevelError, fmt.Sprintf("CSV export failed: %v", err))
			return
		}
		key := storage.ExportKey(run.ID, export.FileName(inv.Borough))
		if err := o.uploader.Upload(ctx, key, &buf, "text/csv"); err != nil {
			o.log(run, models.LogLevelError, fmt.Sprintf("S3 upload failed: %v", err))
			return
		}
		o.log(run, models.LogLevelInfo, fmt.Sprintf("Uploaded CSV to %s", o.uploader.PublicURL(key)))
	}
}

func (o *Orchestrator) log(run *models.SearchRun, level models.LogLevel, message string) {
	log.Printf("[%s] %s: %s", level, label(run.PresetID), message)
	if o.store == nil || run.ID == 0 {
		return
	}
	runID := run.ID
	if err := o.store.Log(&runID, level, message, run.PresetID); err != nil {
		log.Printf("Warning: failed to write run log: %v", err)
	}
}

func label(presetID string) string {
	if presetID == "" {
		return "adhoc"
	}
	return presetID
}
