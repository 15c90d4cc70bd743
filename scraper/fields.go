package scraper

import (
	"regexp"
	"strconv"
	"strings"
)

// FieldKind selects the rule cascade used by Extract. Card kinds are tuned
// for search result cards; detail kinds for a listing's own page.
type FieldKind int

const (
	CardPrice FieldKind = iota
	CardSqFt
	CardTaxes
	CardFees
	DetailSqFt
	DetailTaxes
	DetailFees
)

func (k FieldKind) String() string {
	switch k {
	case CardPrice:
		return "card_price"
	case CardSqFt:
		return "card_sqft"
	case CardTaxes:
		return "card_taxes"
	case CardFees:
		return "card_fees"
	case DetailSqFt:
		return "detail_sqft"
	case DetailTaxes:
		return "detail_taxes"
	case DetailFees:
		return "detail_fees"
	}
	return "unknown"
}

// Rule is one pattern in a cascade. Group is the capture group holding the
// number.
type Rule struct {
	Pattern *regexp.Regexp
	Group   int
}

func rule(pattern string) Rule {
	return Rule{Pattern: regexp.MustCompile(`(?i)` + pattern), Group: 1}
}

// Cascade is an ordered rule list with an optional inclusive plausibility
// range.
type Cascade struct {
	Rules   []Rule
	Bounded bool
	Min     int
	Max     int
}

func (c Cascade) plausible(v int) bool {
	return !c.Bounded || (v >= c.Min && v <= c.Max)
}

var cascades = map[FieldKind]Cascade{
	CardPrice: {Rules: []Rule{
		rule(`\$\s*([\d,]+)`),
		rule(`([\d,]+)`),
	}},
	CardSqFt: {Rules: []Rule{
		rule(`(\d[\d,]*)\s*sq\.?\s*ft`),
		rule(`(\d[\d,]*)\s*sqft`),
		rule(`(\d[\d,]*)\s*SF`),
	}},
	CardTaxes: {Rules: []Rule{
		rule(`taxes?\s*[:\-]?\s*\$?([\d,]+)(?:/mo|/month)?`),
		rule(`\$?([\d,]+)\s*(?:/mo|/month)?\s*taxes?`),
	}},
	CardFees: {Rules: []Rule{
		rule(`common charges?\s*[:\-]?\s*\$?([\d,]+)(?:/mo)?`),
		rule(`maint(?:enance)?\s*[:\-]?\s*\$?([\d,]+)(?:/mo)?`),
	}},
	DetailSqFt: {Bounded: true, Min: 200, Max: 10000, Rules: []Rule{
		rule(`(\d[\d,]+)\s*sq\.?\s*f(?:ee)?t`),
		rule(`(\d[\d,]+)\s*sqft`),
		rule(`(\d[\d,]+)\s*SF\b`),
		rule(`(?:interior|size)\s*:?\s*(\d[\d,]+)`),
		rule(`approx\.?\s*(\d[\d,]+)\s*sq`),
		rule(`(\d[\d,]+)\s*square\s*feet`),
		rule(`total\s*:?\s*(\d[\d,]+)\s*sq`),
		rule(`area\s*:?\s*(\d[\d,]+)\s*sq`),
		rule(`(\d[\d,]+)\s*ft\x{00B2}`),
	}},
	DetailTaxes: {Bounded: true, Min: 1, Max: 49999, Rules: []Rule{
		rule(`monthly\s*taxes?\s*:?\s*\$?([\d,]+)`),
		rule(`taxes?\s*\(?monthly\)?\s*:?\s*\$?([\d,]+)`),
		rule(`taxes?\s*:?\s*\$?([\d,]+)\s*/?mo`),
		rule(`taxes?\s*:?\s*\$?([\d,]+)\s*per\s*month`),
		rule(`\$?([\d,]+)\s*/?mo\s*taxes?`),
		rule(`property\s*tax\s*:?\s*\$?([\d,]+)`),
		rule(`tax\s*:?\s*\$?([\d,]+)\s*monthly`),
	}},
	DetailFees: {Bounded: true, Min: 1, Max: 19999, Rules: []Rule{
		rule(`common\s*charges?\s*:?\s*\$?([\d,]+)`),
		rule(`maintenance\s*:?\s*\$?([\d,]+)`),
		rule(`HOA\s*(?:fees?)?\s*:?\s*\$?([\d,]+)`),
		rule(`monthly\s*(?:common\s*)?charges?\s*:?\s*\$?([\d,]+)`),
		rule(`\$?([\d,]+)\s*/?mo\s*(?:common|maint|CC)`),
		rule(`CC\s*:?\s*\$?([\d,]+)`),
		rule(`common\s*:?\s*\$?([\d,]+)\s*/?mo`),
		rule(`maint\.?\s*:?\s*\$?([\d,]+)\s*/?mo`),
	}},
}

// CascadeFor exposes the rule table for a kind.
func CascadeFor(kind FieldKind) Cascade {
	return cascades[kind]
}

// Extract runs the cascade for kind over text. Only the first match of each
// rule is considered; an implausible value moves on to the next rule.
func Extract(kind FieldKind, text string) (int, bool) {
	c, ok := cascades[kind]
	if !ok || text == "" {
		return 0, false
	}
	for _, r := range c.Rules {
		m := r.Pattern.FindStringSubmatch(text)
		if m == nil || r.Group >= len(m) {
			continue
		}
		v, ok := ParseNumber(m[r.Group])
		if !ok || !c.plausible(v) {
			continue
		}
		return v, true
	}
	return 0, false
}

var (
	digitRun       = regexp.MustCompile(`\d+`)
	numberReplacer = strings.NewReplacer("$", "", ",", "", "/month", "", "/mo", "")
)

// ParseNumber strips currency and unit noise and reads the first digit run.
func ParseNumber(text string) (int, bool) {
	cleaned := strings.TrimSpace(numberReplacer.Replace(text))
	run := digitRun.FindString(cleaned)
	if run == "" {
		return 0, false
	}
	v, err := strconv.Atoi(run)
	if err != nil {
		return 0, false
	}
	return v, true
}
