package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"streeteasy_scraper/models"
)

// SQLiteStore keeps the operational record: search runs, their logs and
// listings, and the API usage ledger.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS search_runs (
		id INTEGER PRIMARY KEY,
		preset_id TEXT,
		query JSON,
		search_url TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_fetched INTEGER DEFAULT 0,
		listings_found INTEGER DEFAULT 0,
		listings_enriched INTEGER DEFAULT 0,
		api_calls INTEGER DEFAULT 0,
		api_credits INTEGER DEFAULT 0,
		error_message TEXT,
		usage_counted BOOLEAN DEFAULT TRUE
	);

	CREATE TABLE IF NOT EXISTS run_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		preset_id TEXT
	);

	CREATE TABLE IF NOT EXISTS run_listings (
		id INTEGER PRIMARY KEY,
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		data JSON NOT NULL,
		FOREIGN KEY (run_id) REFERENCES search_runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON search_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_preset ON search_runs(preset_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_run ON run_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_run_listings_run ON run_listings(run_id, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.SearchRun) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO search_runs (preset_id, query, search_url, started_at, status)
		VALUES (?, ?, ?, ?, ?)`,
		run.PresetID, string(run.Query), run.SearchURL, run.StartedAt, run.Status)
	if err != nil {
		return 0, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	run.ID = id
	return id, nil
}

func (s *SQLiteStore) FinishRun(run *models.SearchRun) error {
	_, err := s.db.Exec(`
		UPDATE search_runs SET finished_at = ?, status = ?, pages_fetched = ?, listings_found = ?,
			listings_enriched = ?, api_calls = ?, api_credits = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesFetched, run.ListingsFound,
		run.ListingsEnriched, run.APICalls, run.APICredits, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, presetID string) error {
	_, err := s.db.Exec(`
		INSERT INTO run_logs (run_id, timestamp, level, message, preset_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, presetID)
	return err
}

func (s *SQLiteStore) GetRun(id int64) (*models.SearchRun, error) {
	row := s.db.QueryRow(`
		SELECT id, preset_id, query, search_url, started_at, finished_at, status, pages_fetched,
			listings_found, listings_enriched, api_calls, api_credits, error_message
		FROM search_runs WHERE id = ?`, id)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.SearchRun, error) {
	rows, err := s.db.Query(`
		SELECT id, preset_id, query, search_url, started_at, finished_at, status, pages_fetched,
			listings_found, listings_enriched, api_calls, api_credits, error_message
		FROM search_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.SearchRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.SearchRun, error) {
	var run models.SearchRun
	var presetID, query, searchURL, errMsg sql.NullString
	var finishedAt sql.NullTime
	if err := row.Scan(&run.ID, &presetID, &query, &searchURL, &run.StartedAt, &finishedAt, &run.Status,
		&run.PagesFetched, &run.ListingsFound, &run.ListingsEnriched, &run.APICalls, &run.APICredits, &errMsg); err != nil {
		return nil, err
	}
	run.PresetID = presetID.String
	if query.Valid && query.String != "" {
		run.Query = json.RawMessage(query.String)
	}
	run.SearchURL = searchURL.String
	run.ErrorMessage = errMsg.String
	if finishedAt.Valid {
		t := finishedAt.Time
		run.FinishedAt = &t
	}
	return &run, nil
}

// SaveListings replaces the stored listings of a run.
func (s *SQLiteStore) SaveListings(runID int64, listings []models.Listing) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM run_listings WHERE run_id = ?`, runID); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO run_listings (run_id, position, data) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, l := range listings {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("marshal listing %d: %w", i, err)
		}
		if _, err := stmt.Exec(runID, i, string(data)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetListings(runID int64) ([]models.Listing, error) {
	rows, err := s.db.Query(`SELECT data FROM run_listings WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []models.Listing
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var l models.Listing
		if err := json.Unmarshal([]byte(data), &l); err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *SQLiteStore) GetLogs(runID int64) ([]models.RunLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, preset_id
		FROM run_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.RunLog
	for rows.Next() {
		var l models.RunLog
		var rid sql.NullInt64
		var presetID sql.NullString
		if err := rows.Scan(&l.ID, &rid, &l.Timestamp, &l.Level, &l.Message, &presetID); err != nil {
			return nil, err
		}
		if rid.Valid {
			v := rid.Int64
			l.RunID = &v
		}
		l.PresetID = presetID.String
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

// UsageTotals sums calls and credits since the last reset.
func (s *SQLiteStore) UsageTotals(budget int) (*models.UsageTotals, error) {
	totals := &models.UsageTotals{Budget: budget}
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(api_calls), 0), COALESCE(SUM(api_credits), 0)
		FROM search_runs WHERE usage_counted = TRUE`).Scan(&totals.Runs, &totals.Calls, &totals.Credits)
	if err != nil {
		return nil, err
	}
	totals.Remaining = budget - totals.Credits
	if totals.Remaining < 0 {
		totals.Remaining = 0
	}
	return totals, nil
}

// ResetUsage zeroes the usage counters. Run history is kept.
func (s *SQLiteStore) ResetUsage() error {
	_, err := s.db.Exec(`UPDATE search_runs SET usage_counted = FALSE WHERE usage_counted = TRUE`)
	return err
}

func (s *SQLiteStore) LastRunTime(presetID string) (time.Time, error) {
	var t sql.NullTime
	err := s.db.QueryRow(`
		SELECT started_at FROM search_runs WHERE preset_id = ?
		ORDER BY started_at DESC LIMIT 1`, presetID).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return t.Time, nil
}
