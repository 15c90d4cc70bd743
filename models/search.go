package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// SearchQuery is the filter set for one search invocation. Zero numeric
// values mean "no limit".
type SearchQuery struct {
	MaxPrice      int      `json:"max_price" yaml:"max_price"`
	MinSqFt       int      `json:"min_sqft" yaml:"min_sqft"`
	MaxTaxes      int      `json:"max_taxes" yaml:"max_taxes"`
	MaxFees       int      `json:"max_fees" yaml:"max_fees"`
	PropertyType  string   `json:"property_type" yaml:"property_type"`
	Neighborhoods []string `json:"neighborhoods" yaml:"neighborhoods"`
	AreaIDs       []int    `json:"area_ids" yaml:"area_ids"`
	MaxPages      int      `json:"max_pages" yaml:"max_pages"`
	EnrichDetails bool     `json:"enrich_details" yaml:"enrich_details"`
}

const DefaultMaxPages = 5

// Pages returns the page limit, falling back to DefaultMaxPages.
func (q SearchQuery) Pages() int {
	if q.MaxPages <= 0 {
		return DefaultMaxPages
	}
	return q.MaxPages
}

// Key returns a stable digest of the full query. Neighborhood and area order
// does not change the key.
func (q SearchQuery) Key() string {
	c := q
	c.Neighborhoods = append([]string(nil), q.Neighborhoods...)
	for i, n := range c.Neighborhoods {
		c.Neighborhoods[i] = strings.ToLower(strings.TrimSpace(n))
	}
	sort.Strings(c.Neighborhoods)
	c.AreaIDs = append([]int(nil), q.AreaIDs...)
	sort.Ints(c.AreaIDs)
	c.PropertyType = strings.ToLower(strings.TrimSpace(c.PropertyType))

	data, _ := json.Marshal(c)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:16])
}

// SearchPreset is a saved search loaded from config/searches.
type SearchPreset struct {
	ID      string      `yaml:"id" json:"id"`
	Name    string      `yaml:"name" json:"name"`
	Borough string      `yaml:"borough" json:"borough"`
	Cron    string      `yaml:"cron" json:"cron"`
	Export  ExportFlags `yaml:"export" json:"export"`
	Query   SearchQuery `yaml:"query" json:"query"`
}

type ExportFlags struct {
	Postgres bool `yaml:"postgres" json:"postgres"`
	S3       bool `yaml:"s3" json:"s3"`
}
