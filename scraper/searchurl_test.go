package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streeteasy_scraper/config"
	"streeteasy_scraper/models"
)

func TestBuildSearchURL(t *testing.T) {
	tests := []struct {
		name  string
		query models.SearchQuery
		want  string
	}{
		{
			name: "all filters",
			query: models.SearchQuery{
				MaxPrice:      1200000,
				MinSqFt:       700,
				MaxTaxes:      1500,
				MaxFees:       1200,
				PropertyType:  "condo",
				Neighborhoods: []string{"Williamsburg", "Park Slope"},
			},
			want: "https://streeteasy.com/for-sale/nyc/type:D1|price:-1200000|sqft>=700|area:100,101|maintenance<=1200|taxes<=1500?sort_by=listed_desc",
		},
		{
			name:  "no selection uses every known area",
			query: models.SearchQuery{PropertyType: "coop"},
			want:  "https://streeteasy.com/for-sale/nyc/type:P1|area:100,101,300?sort_by=listed_desc",
		},
		{
			name:  "unknown names fall back to default area",
			query: models.SearchQuery{Neighborhoods: []string{"Atlantis"}},
			want:  "https://streeteasy.com/for-sale/nyc/area:101?sort_by=listed_desc",
		},
		{
			name:  "raw area ids merged after names",
			query: models.SearchQuery{Neighborhoods: []string{"upper east side"}, AreaIDs: []int{303, 300}},
			want:  "https://streeteasy.com/for-sale/nyc/area:300,303?sort_by=listed_desc",
		},
		{
			name:  "unknown property type omitted",
			query: models.SearchQuery{PropertyType: "castle", MaxPrice: 500000, AreaIDs: []int{102}},
			want:  "https://streeteasy.com/for-sale/nyc/price:-500000|area:102?sort_by=listed_desc",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildSearchURL(tt.query))
		})
	}
}

func TestBuildSearchURL_SameKeySameURL(t *testing.T) {
	padded := models.SearchQuery{Neighborhoods: []string{" Williamsburg "}, PropertyType: " Condo"}
	plain := models.SearchQuery{Neighborhoods: []string{"williamsburg"}, PropertyType: "condo"}

	assert.Equal(t, plain.Key(), padded.Key())
	assert.Equal(t, BuildSearchURL(plain), BuildSearchURL(padded))
	assert.Contains(t, BuildSearchURL(padded), "area:100")
}

func TestURLBuilder_EmptyCatalog(t *testing.T) {
	b := NewURLBuilder("https://example.com/sales/", &config.Catalog{})
	assert.Equal(t, "https://example.com/sales/area:101?sort_by=listed_desc", b.Build(models.SearchQuery{}))
}

func TestPageURL(t *testing.T) {
	assert.Equal(t, "https://x.test/s?sort_by=listed_desc&page=2", PageURL("https://x.test/s?sort_by=listed_desc", 2))
	assert.Equal(t, "https://x.test/s?page=1", PageURL("https://x.test/s", 1))
}
