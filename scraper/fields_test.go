package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name   string
		kind   FieldKind
		text   string
		want   int
		wantOK bool
	}{
		{"detail sqft too small", DetailSqFt, "3 sqft", 0, false},
		{"detail sqft two digits rejected", DetailSqFt, "Balcony 30 sqft", 0, false},
		{"detail sqft with separator", DetailSqFt, "1,200 sq ft", 1200, true},
		{"detail sqft square feet", DetailSqFt, "roughly 980 square feet", 980, true},
		{"detail sqft too large", DetailSqFt, "Lot 12,000 sq ft", 0, false},
		{"detail sqft falls through to interior", DetailSqFt, "Terrace 40 sq ft Interior: 1,100", 1100, true},
		{"detail sqft superscript", DetailSqFt, "750 ft²", 750, true},
		{"detail taxes monthly", DetailTaxes, "Monthly taxes: $1,050", 1050, true},
		{"detail taxes implausible", DetailTaxes, "Taxes: $60,000/mo", 0, false},
		{"detail taxes zero rejected", DetailTaxes, "Monthly taxes: $0", 0, false},
		{"detail taxes property tax", DetailTaxes, "Taxes: $60,000/mo Property tax: $620", 620, true},
		{"detail fees common charges", DetailFees, "Common Charges: $875", 875, true},
		{"detail fees hoa", DetailFees, "HOA fee $320", 320, true},
		{"detail fees upper bound", DetailFees, "Maintenance: $20,000", 0, false},
		{"card sqft unbounded", CardSqFt, "3 sqft", 3, true},
		{"card sqft SF", CardSqFt, "950 SF", 950, true},
		{"card taxes", CardTaxes, "Taxes: $650/mo", 650, true},
		{"card taxes trailing label", CardTaxes, "$480/mo taxes", 480, true},
		{"card fees maintenance", CardFees, "Maint - $1,200/mo", 1200, true},
		{"card price", CardPrice, "$1,150,000", 1150000, true},
		{"card price without symbol", CardPrice, "Price 899,000", 899000, true},
		{"no match", CardFees, "2 beds 1 bath", 0, false},
		{"empty text", DetailSqFt, "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Extract(tt.kind, tt.text)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCascadeRulesIndividually(t *testing.T) {
	samples := map[FieldKind][]string{
		DetailSqFt: {
			"1,200 sq ft",
			"1,200 sqft",
			"1,200 SF.",
			"Size: 1,200",
			"approx. 1,200 sq",
			"1,200 square feet",
			"Total: 1,200 sq",
			"area 1,200 sq",
			"1,200 ft²",
		},
		DetailTaxes: {
			"Monthly taxes: $1,200",
			"Taxes (monthly): $1,200",
			"Taxes: $1,200/mo",
			"Taxes $1,200 per month",
			"$1,200/mo taxes",
			"Property tax: $1,200",
			"Tax: 1,200 monthly",
		},
		DetailFees: {
			"Common charges: $1,200",
			"Maintenance: $1,200",
			"HOA fees: $1,200",
			"Monthly charges: $1,200",
			"$1,200/mo common",
			"CC: $1,200",
			"Common: $1,200/mo",
			"Maint. $1,200/mo",
		},
	}

	for kind, texts := range samples {
		rules := CascadeFor(kind).Rules
		assert.Len(t, texts, len(rules), "one sample per %s rule", kind)
		for i, text := range texts {
			m := rules[i].Pattern.FindStringSubmatch(text)
			if assert.NotNil(t, m, "%s rule %d should match %q", kind, i, text) {
				v, ok := ParseNumber(m[rules[i].Group])
				assert.True(t, ok)
				assert.Equal(t, 1200, v, "%s rule %d", kind, i)
			}
		}
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"$1,234", 1234, true},
		{"850/mo", 850, true},
		{"1,100/month", 1100, true},
		{"  42 units 7", 42, true},
		{"none", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseNumber(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
