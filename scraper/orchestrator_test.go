package scraper

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streeteasy_scraper/fetch"
	"streeteasy_scraper/models"
	"streeteasy_scraper/storage"
)

type recordingExporter struct {
	runID    int64
	listings []models.Listing
}

func (e *recordingExporter) ExportListings(_ context.Context, runID int64, listings []models.Listing) (int, error) {
	e.runID = runID
	e.listings = listings
	return len(listings), nil
}

type recordingUploader struct {
	mu   sync.Mutex
	keys []string
	body string
}

func (u *recordingUploader) Upload(_ context.Context, key string, data io.Reader, contentType string) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	u.body = string(b)
	return nil
}

func (u *recordingUploader) PublicURL(key string) string { return "https://cdn.test/" + key }

func newTestOrchestrator(t *testing.T, f *fakeFetcher) (*Orchestrator, *storage.SQLiteStore) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewOrchestrator(newTestRunner(f, nil), store, "default-key"), store
}

func TestOrchestratorRecordsRun(t *testing.T) {
	f := (&fakeFetcher{}).
		on("page=1", loadFixture(t, "search_page.html"), nil).
		on("page=2", loadFixture(t, "search_page_empty.html"), nil)
	o, store := newTestOrchestrator(t, f)

	run, res := o.Run(context.Background(), Invocation{Query: models.SearchQuery{MaxPages: 3}}, nil)
	require.NotNil(t, run)
	require.NotZero(t, run.ID)
	assert.Equal(t, models.RunStatusCompleted, res.Status)

	saved, err := store.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, models.RunStatusCompleted, saved.Status)
	assert.Equal(t, 3, saved.ListingsFound)
	assert.Equal(t, 2, saved.PagesFetched)
	assert.Equal(t, 2, saved.APICalls)
	assert.NotNil(t, saved.FinishedAt)

	listings, err := store.GetListings(run.ID)
	require.NoError(t, err)
	assert.Len(t, listings, 3)

	logs, err := store.GetLogs(run.ID)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(logs), 2)

	usage, err := store.UsageTotals(1000)
	require.NoError(t, err)
	assert.Equal(t, 2, usage.Credits)
}

func TestOrchestratorRecordsForbiddenRun(t *testing.T) {
	f := (&fakeFetcher{}).on("page=1", nil, &fetch.HTTPError{Code: 403, Credits: 0})
	o, store := newTestOrchestrator(t, f)

	run, res := o.Run(context.Background(), Invocation{Query: models.SearchQuery{}}, nil)
	assert.Equal(t, models.RunStatusForbidden, res.Status)

	saved, err := store.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusForbidden, saved.Status)
	assert.Contains(t, saved.ErrorMessage, "403")
	assert.Equal(t, 1, saved.APICalls)
}

func TestOrchestratorUsesDefaultCredential(t *testing.T) {
	f := (&fakeFetcher{}).on("page=1", loadFixture(t, "search_page_empty.html"), nil)
	var got []string
	runner := NewRunner(func(c string) fetch.Fetcher {
		got = append(got, c)
		return f
	}, Options{})
	o := NewOrchestrator(runner, nil, "default-key")

	o.Run(context.Background(), Invocation{}, nil)
	o.Run(context.Background(), Invocation{Credential: "override"}, nil)
	assert.Equal(t, []string{"default-key", "override"}, got)
}

func TestOrchestratorExportsPerFlags(t *testing.T) {
	f := (&fakeFetcher{}).
		on("page=1", loadFixture(t, "search_page.html"), nil).
		on("page=2", loadFixture(t, "search_page_empty.html"), nil)
	o, _ := newTestOrchestrator(t, f)
	pg := &recordingExporter{}
	up := &recordingUploader{}
	o.SetExporters(pg, up)

	o.SetPresets([]*models.SearchPreset{{
		ID:      "bk",
		Borough: "Brooklyn",
		Export:  models.ExportFlags{Postgres: true, S3: true},
		Query:   models.SearchQuery{MaxPages: 2},
	}})

	run, res, err := o.RunPreset(context.Background(), "bk")
	require.NoError(t, err)
	require.Len(t, res.Listings, 3)

	assert.Equal(t, run.ID, pg.runID)
	assert.Len(t, pg.listings, 3)
	require.Len(t, up.keys, 1)
	assert.Equal(t, storage.ExportKey(run.ID, "streeteasy_brooklyn_listings.csv"), up.keys[0])
	assert.Contains(t, up.body, "34 N 7th St #4C")
}

func TestOrchestratorSkipsExportWithoutFlags(t *testing.T) {
	f := (&fakeFetcher{}).
		on("page=1", loadFixture(t, "search_page.html"), nil).
		on("page=2", loadFixture(t, "search_page_empty.html"), nil)
	o, _ := newTestOrchestrator(t, f)
	pg := &recordingExporter{}
	up := &recordingUploader{}
	o.SetExporters(pg, up)

	o.Run(context.Background(), Invocation{Query: models.SearchQuery{MaxPages: 2}}, nil)
	assert.Nil(t, pg.listings)
	assert.Empty(t, up.keys)
}

func TestOrchestratorUnknownPreset(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeFetcher{})
	_, _, err := o.RunPreset(context.Background(), "nope")
	assert.Error(t, err)
}

func TestOrchestratorPausedSkipsRunAll(t *testing.T) {
	f := &fakeFetcher{}
	o, _ := newTestOrchestrator(t, f)
	o.SetPresets([]*models.SearchPreset{{ID: "a"}, {ID: "b"}})

	o.Pause()
	require.NoError(t, o.RunAll(context.Background()))
	assert.Empty(t, f.calls)

	o.Resume()
	require.NoError(t, o.RunAll(context.Background()))
	assert.Len(t, f.calls, 2, "one 404 page per preset")
}

func TestOrchestratorPresetsSorted(t *testing.T) {
	o, _ := newTestOrchestrator(t, &fakeFetcher{})
	o.SetPresets([]*models.SearchPreset{{ID: "z"}, {ID: "a"}, {ID: "m"}})
	var ids []string
	for _, p := range o.Presets() {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"a", "m", "z"}, ids)
}
