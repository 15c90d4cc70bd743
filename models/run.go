package models

import (
	"encoding/json"
	"time"
)

// RunStatus is the terminal status of a search invocation.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusForbidden RunStatus = "ended_early_forbidden"
	RunStatusError     RunStatus = "ended_early_error"
	RunStatusCancelled RunStatus = "cancelled"
)

// EndedEarly reports whether the run stopped before running out of pages.
func (s RunStatus) EndedEarly() bool {
	return s == RunStatusForbidden || s == RunStatusError || s == RunStatusCancelled
}

type SearchRun struct {
	ID               int64           `json:"id" db:"id"`
	PresetID         string          `json:"preset_id" db:"preset_id"`
	Query            json.RawMessage `json:"query" db:"query"`
	SearchURL        string          `json:"search_url" db:"search_url"`
	StartedAt        time.Time       `json:"started_at" db:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at" db:"finished_at"`
	Status           RunStatus       `json:"status" db:"status"`
	PagesFetched     int             `json:"pages_fetched" db:"pages_fetched"`
	ListingsFound    int             `json:"listings_found" db:"listings_found"`
	ListingsEnriched int             `json:"listings_enriched" db:"listings_enriched"`
	APICalls         int             `json:"api_calls" db:"api_calls"`
	APICredits       int             `json:"api_credits" db:"api_credits"`
	ErrorMessage     string          `json:"error_message" db:"error_message"`
}

// UsageTotals aggregates fetch usage across recorded runs.
type UsageTotals struct {
	Runs      int `json:"runs"`
	Calls     int `json:"calls"`
	Credits   int `json:"credits"`
	Budget    int `json:"budget"`
	Remaining int `json:"remaining"`
}
