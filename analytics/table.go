package analytics

import (
	"sort"
	"strings"

	"streeteasy_scraper/models"
)

// Criteria narrows the results table. Zero values disable a filter. A
// listing missing the filtered field is kept.
type Criteria struct {
	Neighborhood string
	MaxPrice     int
	MinSqFt      int
	MaxTaxes     int
	MaxFees      int
}

func (c Criteria) match(l *models.Listing) bool {
	if c.Neighborhood != "" && !strings.EqualFold(strings.TrimSpace(l.Neighborhood), strings.TrimSpace(c.Neighborhood)) {
		return false
	}
	if c.MaxPrice > 0 && l.Price != nil && *l.Price > c.MaxPrice {
		return false
	}
	if c.MinSqFt > 0 && l.SqFt != nil && *l.SqFt < c.MinSqFt {
		return false
	}
	if c.MaxTaxes > 0 && l.Taxes != nil && *l.Taxes > c.MaxTaxes {
		return false
	}
	if c.MaxFees > 0 && l.Fees != nil && *l.Fees > c.MaxFees {
		return false
	}
	return true
}

// Filter returns the listings matching c, in their original order.
func Filter(listings []models.Listing, c Criteria) []models.Listing {
	out := make([]models.Listing, 0, len(listings))
	for i := range listings {
		if c.match(&listings[i]) {
			out = append(out, listings[i])
		}
	}
	return out
}

// SortByListingDate orders listings newest first. Listings without a date
// go last, keeping their relative order.
func SortByListingDate(listings []models.Listing) {
	sort.SliceStable(listings, func(i, j int) bool {
		a, b := listings[i].ListingDate, listings[j].ListingDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
