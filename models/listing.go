package models

import "time"

// Listing is one for-sale listing scraped from a search results page and,
// optionally, its own detail page. Absent values are nil, never zero.
type Listing struct {
	Address      string     `json:"address" db:"address"`
	Neighborhood string     `json:"neighborhood" db:"neighborhood"`
	Price        *int       `json:"price" db:"price"`
	SqFt         *int       `json:"sqft" db:"sqft"`
	Taxes        *int       `json:"taxes" db:"taxes"` // monthly
	Fees         *int       `json:"fees" db:"fees"`   // monthly common charges / maintenance
	ListingDate  *time.Time `json:"listing_date" db:"listing_date"`
	DaysOnMarket *int       `json:"days_on_market" db:"days_on_market"`
	URL          string     `json:"url" db:"url"`
}

// Identifiable reports whether the listing can be told apart from others.
// Listings with neither a URL nor an address are dropped.
func (l *Listing) Identifiable() bool {
	return l.URL != "" || l.Address != ""
}

// ListingDetails holds what a detail page contributed. Only non-nil fields
// are merged into a Listing.
type ListingDetails struct {
	SqFt         *int
	Taxes        *int
	Fees         *int
	ListingDate  *time.Time
	DaysOnMarket *int
}

// Empty reports whether the detail page yielded nothing.
func (d ListingDetails) Empty() bool {
	return d.SqFt == nil && d.Taxes == nil && d.Fees == nil && d.ListingDate == nil && d.DaysOnMarket == nil
}

// Merge copies every present detail field onto the listing. Absent fields
// never overwrite card data.
func (l *Listing) Merge(d ListingDetails) {
	if d.SqFt != nil {
		l.SqFt = d.SqFt
	}
	if d.Taxes != nil {
		l.Taxes = d.Taxes
	}
	if d.Fees != nil {
		l.Fees = d.Fees
	}
	if d.ListingDate != nil {
		l.ListingDate = d.ListingDate
	}
	if d.DaysOnMarket != nil {
		l.DaysOnMarket = d.DaysOnMarket
	}
}

func IntPtr(v int) *int {
	return &v
}
