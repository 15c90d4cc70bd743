package api

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"streeteasy_scraper/fetch"
	"streeteasy_scraper/models"
	"streeteasy_scraper/scraper"
)

var ErrJobNotFound = errors.New("job not found")

// Progress is enrichment progress: detail pages done out of total.
type Progress struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Job is a snapshot of one search invocation started through the API.
type Job struct {
	ID         string             `json:"id"`
	PresetID   string             `json:"preset_id,omitempty"`
	Borough    string             `json:"borough,omitempty"`
	Query      models.SearchQuery `json:"query"`
	Status     models.RunStatus   `json:"status"`
	Progress   Progress           `json:"progress"`
	Usage      fetch.Usage        `json:"usage"`
	RunID      int64              `json:"run_id,omitempty"`
	SearchURL  string             `json:"search_url"`
	Listings   int                `json:"listings"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}

type job struct {
	mu       sync.Mutex
	view     Job
	listings []models.Listing
	cancel   context.CancelFunc
	done     chan struct{}
}

func (j *job) snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.view
}

func (j *job) Report(completed, total int) {
	j.mu.Lock()
	j.view.Progress = Progress{Completed: completed, Total: total}
	j.mu.Unlock()
}

// Runs is what the job manager needs from the orchestrator.
type Runs interface {
	Run(ctx context.Context, inv scraper.Invocation, progress scraper.Progress) (*models.SearchRun, *scraper.Result)
}

// JobManager runs searches in the background, one goroutine per job. Each
// job can be cancelled independently.
type JobManager struct {
	runs Runs
	base context.Context

	mu      sync.RWMutex
	jobs    map[string]*job
	resetAt time.Time
}

// NewJobManager ties job lifetimes to ctx: cancelling it cancels every
// running job.
func NewJobManager(ctx context.Context, runs Runs) *JobManager {
	return &JobManager{
		runs: runs,
		base: ctx,
		jobs: make(map[string]*job),
	}
}

// Start launches inv and returns immediately.
func (m *JobManager) Start(inv scraper.Invocation) Job {
	ctx, cancel := context.WithCancel(m.base)
	j := &job{
		view: Job{
			ID:        uuid.New().String(),
			PresetID:  inv.PresetID,
			Borough:   inv.Borough,
			Query:     inv.Query,
			Status:    models.RunStatusRunning,
			StartedAt: time.Now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.jobs[j.view.ID] = j
	m.mu.Unlock()

	log.Printf("Job %s: started", j.view.ID)
	go m.run(ctx, j, inv)
	return j.snapshot()
}

func (m *JobManager) run(ctx context.Context, j *job, inv scraper.Invocation) {
	defer close(j.done)
	defer j.cancel()

	run, res := m.runs.Run(ctx, inv, j)

	now := time.Now()
	j.mu.Lock()
	j.view.Status = res.Status
	j.view.Usage = res.Usage
	j.view.SearchURL = res.SearchURL
	j.view.Listings = len(res.Listings)
	j.view.FinishedAt = &now
	if run != nil {
		j.view.RunID = run.ID
	}
	if res.Err != nil {
		j.view.Error = res.Err.Error()
	}
	j.listings = res.Listings
	j.mu.Unlock()

	log.Printf("Job %s: %s with %d listings", j.view.ID, res.Status, len(res.Listings))
}

func (m *JobManager) lookup(id string) (*job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j, nil
}

func (m *JobManager) Get(id string) (Job, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Job{}, err
	}
	return j.snapshot(), nil
}

// List returns every job, newest first.
func (m *JobManager) List() []Job {
	m.mu.RLock()
	out := make([]Job, 0, len(m.jobs))
	for _, j := range m.jobs {
		out = append(out, j.snapshot())
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

// Cancel stops a running job. Whatever it gathered stays available.
func (m *JobManager) Cancel(id string) error {
	j, err := m.lookup(id)
	if err != nil {
		return err
	}
	j.cancel()
	return nil
}

// Listings returns a finished job's listings. ok is false while it runs.
func (m *JobManager) Listings(id string) ([]models.Listing, bool, error) {
	j, err := m.lookup(id)
	if err != nil {
		return nil, false, err
	}
	select {
	case <-j.done:
	default:
		return nil, false, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]models.Listing(nil), j.listings...), true, nil
}

// Wait blocks until the job finishes or ctx is done.
func (m *JobManager) Wait(ctx context.Context, id string) (Job, error) {
	j, err := m.lookup(id)
	if err != nil {
		return Job{}, err
	}
	select {
	case <-j.done:
		return j.snapshot(), nil
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Usage sums fetch usage over jobs started since the last ResetUsage.
func (m *JobManager) Usage() (runs int, total fetch.Usage) {
	m.mu.RLock()
	since := m.resetAt
	m.mu.RUnlock()
	for _, j := range m.List() {
		if j.StartedAt.Before(since) {
			continue
		}
		runs++
		total.Add(j.Usage)
	}
	return runs, total
}

func (m *JobManager) ResetUsage() {
	m.mu.Lock()
	m.resetAt = time.Now()
	m.mu.Unlock()
}
