package scraper

import (
	"fmt"
	"strconv"
	"strings"

	"streeteasy_scraper/config"
	"streeteasy_scraper/models"
)

const (
	DefaultSearchBaseURL = "https://streeteasy.com/for-sale/nyc"
	fallbackAreaID       = 101
)

// URLBuilder renders a SearchQuery in the site's pipe-separated filter
// syntax.
type URLBuilder struct {
	base    string
	catalog *config.Catalog
}

func NewURLBuilder(base string, catalog *config.Catalog) *URLBuilder {
	if base == "" {
		base = DefaultSearchBaseURL
	}
	if catalog == nil {
		catalog = config.DefaultCatalog()
	}
	return &URLBuilder{base: strings.TrimRight(base, "/"), catalog: catalog}
}

var defaultURLBuilder = NewURLBuilder(DefaultSearchBaseURL, nil)

// BuildSearchURL uses the default base URL and catalog.
func BuildSearchURL(q models.SearchQuery) string {
	return defaultURLBuilder.Build(q)
}

// Build returns the first-page search URL for q, sorted newest first.
func (b *URLBuilder) Build(q models.SearchQuery) string {
	var filters []string

	if code := b.catalog.TypeCode(q.PropertyType); code != "" {
		filters = append(filters, "type:"+code)
	}
	if q.MaxPrice > 0 {
		filters = append(filters, fmt.Sprintf("price:-%d", q.MaxPrice))
	}
	if q.MinSqFt > 0 {
		filters = append(filters, fmt.Sprintf("sqft>=%d", q.MinSqFt))
	}

	ids := b.AreaIDs(q)
	if len(ids) == 0 {
		ids = []int{fallbackAreaID}
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = strconv.Itoa(id)
	}
	filters = append(filters, "area:"+strings.Join(idStrs, ","))

	if q.MaxFees > 0 {
		filters = append(filters, fmt.Sprintf("maintenance<=%d", q.MaxFees))
	}
	if q.MaxTaxes > 0 {
		filters = append(filters, fmt.Sprintf("taxes<=%d", q.MaxTaxes))
	}

	return b.base + "/" + strings.Join(filters, "|") + "?sort_by=listed_desc"
}

// AreaIDs resolves the query's neighborhoods and raw ids. Unknown names are
// dropped. No selection at all means every known area.
func (b *URLBuilder) AreaIDs(q models.SearchQuery) []int {
	if len(q.Neighborhoods) == 0 && len(q.AreaIDs) == 0 {
		return b.catalog.AllAreaIDs()
	}

	seen := make(map[int]bool)
	var ids []int
	add := func(id int) {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, name := range q.Neighborhoods {
		if id, ok := b.catalog.AreaID(name); ok {
			add(id)
		}
	}
	for _, id := range q.AreaIDs {
		add(id)
	}
	return ids
}

// PageURL appends the page parameter to a search URL.
func PageURL(searchURL string, page int) string {
	if strings.Contains(searchURL, "?") {
		return fmt.Sprintf("%s&page=%d", searchURL, page)
	}
	return fmt.Sprintf("%s?page=%d", searchURL, page)
}
