package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/robfig/cron/v3"

	"streeteasy_scraper/models"
	"streeteasy_scraper/scraper"
)

// PresetRunner runs saved searches.
type PresetRunner interface {
	Presets() []*models.SearchPreset
	RunPreset(ctx context.Context, id string) (*models.SearchRun, *scraper.Result, error)
	IsPaused() bool
}

// Scheduler fires saved searches on cron schedules. A preset's own cron
// expression wins; presets without one use the global expression, if any.
type Scheduler struct {
	runner     PresetRunner
	globalCron string
	cron       *cron.Cron

	mu        sync.Mutex
	running   map[string]bool
	scheduled map[string]string
}

func New(runner PresetRunner, globalCron string) *Scheduler {
	return &Scheduler{
		runner:     runner,
		globalCron: globalCron,
		cron:       cron.New(),
		running:    make(map[string]bool),
		scheduled:  make(map[string]string),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	for _, p := range s.runner.Presets() {
		spec := p.Cron
		if spec == "" {
			spec = s.globalCron
		}
		if spec == "" {
			continue
		}

		id := p.ID
		if _, err := s.cron.AddFunc(spec, func() { s.fire(ctx, id) }); err != nil {
			return fmt.Errorf("invalid cron expression for preset %s: %w", id, err)
		}
		s.mu.Lock()
		s.scheduled[id] = spec
		s.mu.Unlock()
		log.Printf("Scheduled preset %s: %s", id, spec)
	}

	if len(s.Scheduled()) == 0 {
		log.Println("No schedule configured, searches only run on request")
		return nil
	}
	s.cron.Start()
	return nil
}

// Scheduled returns preset IDs mapped to their effective cron expression.
func (s *Scheduler) Scheduled() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.scheduled))
	for id, spec := range s.scheduled {
		out[id] = spec
	}
	return out
}

// fire runs one preset unless searches are paused or the previous run of
// the same preset is still going.
func (s *Scheduler) fire(ctx context.Context, id string) {
	if ctx.Err() != nil {
		return
	}
	if s.runner.IsPaused() {
		log.Printf("Searches paused, skipping scheduled run of %s", id)
		return
	}

	s.mu.Lock()
	if s.running[id] {
		s.mu.Unlock()
		log.Printf("Preset %s still running, skipping", id)
		return
	}
	s.running[id] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, id)
		s.mu.Unlock()
	}()

	log.Printf("Scheduled run of %s", id)
	run, res, err := s.runner.RunPreset(ctx, id)
	if err != nil {
		log.Printf("Scheduled run error for %s: %v", id, err)
		return
	}
	log.Printf("Scheduled run of %s finished (run %d): %s, %d listings", id, run.ID, res.Status, len(res.Listings))
}

// Stop stops the cron and waits for in-flight runs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
