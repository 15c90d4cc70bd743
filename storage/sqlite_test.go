package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streeteasy_scraper/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func finishedRun(t *testing.T, store *SQLiteStore, presetID string, calls, credits int, status models.RunStatus) *models.SearchRun {
	t.Helper()
	query, _ := json.Marshal(models.SearchQuery{MaxPrice: 900000})
	run := &models.SearchRun{
		PresetID:  presetID,
		Query:     query,
		SearchURL: "https://streeteasy.com/for-sale/nyc/area:101?sort_by=listed_desc",
		StartedAt: time.Now().UTC(),
		Status:    models.RunStatusRunning,
	}
	_, err := store.CreateRun(run)
	require.NoError(t, err)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Status = status
	run.PagesFetched = calls
	run.ListingsFound = 3
	run.APICalls = calls
	run.APICredits = credits
	require.NoError(t, store.FinishRun(run))
	return run
}

func TestRunLifecycle(t *testing.T) {
	store := newTestStore(t)
	run := finishedRun(t, store, "brooklyn-condos", 2, 2, models.RunStatusCompleted)
	require.NotZero(t, run.ID)

	got, err := store.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "brooklyn-condos", got.PresetID)
	assert.Equal(t, models.RunStatusCompleted, got.Status)
	assert.Equal(t, 2, got.APICalls)
	assert.Equal(t, 3, got.ListingsFound)
	assert.NotNil(t, got.FinishedAt)
	assert.JSONEq(t, string(run.Query), string(got.Query))

	missing, err := store.GetRun(9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRecentRuns(t *testing.T) {
	store := newTestStore(t)
	finishedRun(t, store, "a", 1, 1, models.RunStatusCompleted)
	finishedRun(t, store, "b", 1, 1, models.RunStatusForbidden)

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].PresetID)
	assert.Equal(t, models.RunStatusForbidden, runs[0].Status)
}

func TestUsageTotalsAndReset(t *testing.T) {
	store := newTestStore(t)
	finishedRun(t, store, "a", 3, 3, models.RunStatusCompleted)
	finishedRun(t, store, "b", 2, 10, models.RunStatusCompleted)

	totals, err := store.UsageTotals(1000)
	require.NoError(t, err)
	assert.Equal(t, models.UsageTotals{Runs: 2, Calls: 5, Credits: 13, Budget: 1000, Remaining: 987}, *totals)

	require.NoError(t, store.ResetUsage())
	finishedRun(t, store, "c", 1, 1, models.RunStatusCompleted)

	totals, err = store.UsageTotals(1000)
	require.NoError(t, err)
	assert.Equal(t, 1, totals.Runs)
	assert.Equal(t, 1, totals.Credits)

	runs, err := store.RecentRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 3, "reset keeps history")
}

func TestUsageRemainingNeverNegative(t *testing.T) {
	store := newTestStore(t)
	finishedRun(t, store, "a", 1, 50, models.RunStatusCompleted)

	totals, err := store.UsageTotals(10)
	require.NoError(t, err)
	assert.Equal(t, 0, totals.Remaining)
}

func TestSaveAndGetListings(t *testing.T) {
	store := newTestStore(t)
	run := finishedRun(t, store, "a", 1, 1, models.RunStatusCompleted)
	listed := time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)

	listings := []models.Listing{
		{URL: "https://streeteasy.com/sale/1", Address: "1 A St", Price: models.IntPtr(100), ListingDate: &listed},
		{Address: "2 B St"},
	}
	require.NoError(t, store.SaveListings(run.ID, listings))
	require.NoError(t, store.SaveListings(run.ID, listings), "saving twice replaces")

	got, err := store.GetListings(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1 A St", got[0].Address)
	assert.Equal(t, 100, *got[0].Price)
	assert.True(t, listed.Equal(*got[0].ListingDate))
	assert.Nil(t, got[1].Price)
}

func TestLogs(t *testing.T) {
	store := newTestStore(t)
	run := finishedRun(t, store, "a", 1, 1, models.RunStatusCompleted)

	require.NoError(t, store.Log(&run.ID, models.LogLevelInfo, "page 1: 3 listings", "a"))
	require.NoError(t, store.Log(&run.ID, models.LogLevelWarn, "detail fetch failed", "a"))
	require.NoError(t, store.Log(nil, models.LogLevelError, "unrelated", ""))

	logs, err := store.GetLogs(run.ID)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, models.LogLevelWarn, logs[1].Level)
	assert.Equal(t, run.ID, *logs[0].RunID)
}

func TestLastRunTime(t *testing.T) {
	store := newTestStore(t)

	zero, err := store.LastRunTime("none")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	finishedRun(t, store, "a", 1, 1, models.RunStatusCompleted)
	last, err := store.LastRunTime("a")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), last, time.Minute)
}
