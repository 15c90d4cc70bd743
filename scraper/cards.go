package scraper

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"streeteasy_scraper/models"
)

const DefaultSiteBaseURL = "https://streeteasy.com"

type cardSelector struct {
	tag   string
	class *regexp.Regexp
}

// Tried in order; the first selector with any match wins.
var cardSelectors = []cardSelector{
	{tag: "div", class: regexp.MustCompile(`(?i)listingCard`)},
	{tag: "article", class: regexp.MustCompile(`(?i)listing|card`)},
}

var (
	saleHrefRe      = regexp.MustCompile(`/sale/\d+`)
	buildingHrefRe  = regexp.MustCompile(`/building/`)
	addressLinkRe   = regexp.MustCompile(`(?i)address|title|listingCard`)
	addressHeadRe   = regexp.MustCompile(`(?i)address|title`)
	neighborhoodRe  = regexp.MustCompile(`(?i)ListingDescription-module__title`)
	neighborhoodTxt = regexp.MustCompile(`(?i)\bin\s+(.*)`)
	priceClassRe    = regexp.MustCompile(`(?i)price`)
	dollarAmountRe  = regexp.MustCompile(`\$\s*[\d,]+`)
)

// Parser turns search result markup into partial listings.
type Parser struct {
	siteBase string
}

func NewParser(siteBase string) *Parser {
	if siteBase == "" {
		siteBase = DefaultSiteBaseURL
	}
	return &Parser{siteBase: strings.TrimRight(siteBase, "/")}
}

var defaultParser = NewParser(DefaultSiteBaseURL)

// ParseCards parses a results page against the default site base.
func ParseCards(markup []byte) ([]models.Listing, error) {
	return defaultParser.ParseCards(markup)
}

// ParseCards returns one listing per identifiable card in document order.
// A page with no cards yields an empty slice.
func (p *Parser) ParseCards(markup []byte) ([]models.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	cards := findCards(doc)
	if cards == nil {
		return []models.Listing{}, nil
	}

	listings := make([]models.Listing, 0, cards.Length())
	cards.Each(func(i int, card *goquery.Selection) {
		listing, err := p.parseCard(card)
		if err != nil {
			slog.Debug("skipping card", "index", i, "error", err)
			return
		}
		if listing.Identifiable() {
			listings = append(listings, listing)
		}
	})
	return listings, nil
}

func findCards(doc *goquery.Document) *goquery.Selection {
	for _, sel := range cardSelectors {
		cards := doc.Find(sel.tag).FilterFunction(classMatches(sel.class))
		if cards.Length() > 0 {
			return cards
		}
	}
	return nil
}

func (p *Parser) parseCard(card *goquery.Selection) (listing models.Listing, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("card panic: %v", r)
		}
	}()

	listing.URL = p.cardURL(card)
	listing.Address = cardAddress(card)
	listing.Neighborhood = cardNeighborhood(card)

	text := flatten(card, "|")
	if price, ok := cardPrice(card, text); ok {
		listing.Price = models.IntPtr(price)
	}
	if v, ok := Extract(CardSqFt, text); ok {
		listing.SqFt = models.IntPtr(v)
	}
	if v, ok := Extract(CardTaxes, text); ok {
		listing.Taxes = models.IntPtr(v)
	}
	if v, ok := Extract(CardFees, text); ok {
		listing.Fees = models.IntPtr(v)
	}
	return listing, nil
}

func (p *Parser) cardURL(card *goquery.Selection) string {
	links := card.Find("a[href]")
	link := links.FilterFunction(hrefMatches(saleHrefRe)).First()
	if link.Length() == 0 {
		link = links.FilterFunction(hrefMatches(buildingHrefRe)).First()
	}
	if link.Length() == 0 {
		link = links.First()
	}

	href := strings.TrimSpace(link.AttrOr("href", ""))
	if href == "" {
		return ""
	}
	return p.absolute(href)
}

func (p *Parser) absolute(href string) string {
	if strings.HasPrefix(href, "/") {
		return p.siteBase + href
	}
	return href
}

func cardAddress(card *goquery.Selection) string {
	el := card.Find("a").FilterFunction(classMatches(addressLinkRe)).First()
	if el.Length() == 0 {
		el = card.Find("h3, h4, h5").FilterFunction(classMatches(addressHeadRe)).First()
	}
	if el.Length() == 0 {
		el = card.Find("address").First()
	}
	if el.Length() == 0 {
		return ""
	}
	return flatten(el, "")
}

// cardNeighborhood takes the text after a standalone word "in" in the card's
// title paragraph. The word boundary keeps "Cabin in Astoria" from matching
// inside "Cabin".
func cardNeighborhood(card *goquery.Selection) string {
	el := card.Find("p").FilterFunction(classMatches(neighborhoodRe)).First()
	if el.Length() == 0 {
		return ""
	}
	m := neighborhoodTxt.FindStringSubmatch(flatten(el, " "))
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func cardPrice(card *goquery.Selection, cardText string) (int, bool) {
	el := card.Find("span, div").FilterFunction(classMatches(priceClassRe)).First()
	if el.Length() > 0 {
		return Extract(CardPrice, flatten(el, " "))
	}
	amount := dollarAmountRe.FindString(cardText)
	if amount == "" {
		return 0, false
	}
	return ParseNumber(amount)
}
