package scraper

import (
	"bytes"
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"streeteasy_scraper/cache"
	"streeteasy_scraper/models"
)

var (
	factSectionRe = regexp.MustCompile(`(?i)detail|info|stat|fact`)

	listingDateRules = []Rule{
		rule(`Sales?\s+start\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`),
		rule(`Listed\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`),
		rule(`List(?:ing)?\s+date\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`),
		rule(`(?:On\s+market|Listed)\s+(?:since|on)\s*:?\s*(\d{1,2}/\d{1,2}/\d{4})`),
	}

	daysOnMarketRules = []Rule{
		rule(`Days?\s+on\s+market\s*:?\s*(\d+)\s*days?`),
		rule(`(\d+)\s*days?\s+on\s+market`),
		rule(`Listed\s+for\s+(\d+)\s*days?`),
		rule(`On\s+market\s+for\s+(\d+)\s*days?`),
	}
)

// ParseDetails extracts the detail-page fields from a listing page. The
// listing date is taken directly when stated, otherwise derived from days on
// market as of now.
func ParseDetails(markup []byte, now time.Time) models.ListingDetails {
	var d models.ListingDetails

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return d
	}

	text := detailText(doc)

	if date, ok := extractListingDate(text); ok {
		d.ListingDate = &date
	} else if days, ok := extractDaysOnMarket(text); ok {
		if date, ok := DateFromDaysAt(days, now); ok {
			d.ListingDate = &date
			d.DaysOnMarket = models.IntPtr(days)
		}
	}

	if v, ok := Extract(DetailSqFt, text); ok {
		d.SqFt = models.IntPtr(v)
	}
	if v, ok := Extract(DetailTaxes, text); ok {
		d.Taxes = models.IntPtr(v)
	}
	if v, ok := Extract(DetailFees, text); ok {
		d.Fees = models.IntPtr(v)
	}
	return d
}

// detailText is the whole page text followed by the text of every fact-like
// section, which widens the search surface for the cascades.
func detailText(doc *goquery.Document) string {
	text := flatten(doc.Selection, " ")

	sections := doc.Find("div, section, dl, ul").FilterFunction(classMatches(factSectionRe))
	if sections.Length() == 0 {
		return text
	}
	parts := make([]string, 0, sections.Length())
	sections.Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, flatten(s, " "))
	})
	return text + " " + strings.Join(parts, " ")
}

func extractListingDate(text string) (time.Time, bool) {
	for _, r := range listingDateRules {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if date, ok := ParseDate(m[r.Group]); ok {
			return date, true
		}
	}
	return time.Time{}, false
}

func extractDaysOnMarket(text string) (int, bool) {
	for _, r := range daysOnMarketRules {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if days, err := strconv.Atoi(m[r.Group]); err == nil {
			return days, true
		}
	}
	return 0, false
}

// Enricher fetches listing pages for one search invocation.
type Enricher struct {
	pages *pageSource
	now   func() time.Time
}

// Enrich fetches url and parses its detail fields. Any failure yields empty
// details.
func (e *Enricher) Enrich(ctx context.Context, url string) models.ListingDetails {
	body, err := e.pages.get(ctx, cache.DetailKey(url), url, e.pages.detailPacer)
	if err != nil {
		slog.Debug("detail fetch failed", "url", url, "error", err)
		return models.ListingDetails{}
	}
	return ParseDetails(body, e.now())
}
