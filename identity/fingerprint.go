package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"streeteasy_scraper/models"
)

var (
	streetReplacements = []struct{ full, abbrev string }{
		{"street", "st"},
		{"avenue", "ave"},
		{"boulevard", "blvd"},
		{"place", "pl"},
		{"road", "rd"},
		{"drive", "dr"},
		{"lane", "ln"},
		{"court", "ct"},
		{"terrace", "ter"},
		{"parkway", "pkwy"},
		{"square", "sq"},
		{"north", "n"},
		{"south", "s"},
		{"east", "e"},
		{"west", "w"},
		{"apartment", "apt"},
		{"unit", "apt"},
		{"floor", "fl"},
	}
	multiSpaceRegex = regexp.MustCompile(`\s+`)
	nonAlnumRegex   = regexp.MustCompile(`[^a-z0-9\s]`)
	wordRegex       = regexp.MustCompile(`[a-z]+`)
	ordinalRegex    = regexp.MustCompile(`\b(\d+)(st|nd|rd|th)\b`)
)

// Fingerprint is a stable key for a listing across runs: its URL when known,
// otherwise its normalized address.
func Fingerprint(listing *models.Listing) string {
	input := "url|" + strings.TrimSpace(listing.URL)
	if listing.URL == "" {
		input = "addr|" + NormalizeAddress(listing.Address)
	}
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:16])
}

// NormalizeAddress lowercases, drops punctuation and abbreviates street
// words so "34 North 7th Street, #4C" and "34 N 7th St 4c" compare equal.
func NormalizeAddress(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	addr = nonAlnumRegex.ReplaceAllString(addr, " ")
	addr = ordinalRegex.ReplaceAllString(addr, "$1")
	addr = wordRegex.ReplaceAllStringFunc(addr, func(word string) string {
		for _, r := range streetReplacements {
			if word == r.full {
				return r.abbrev
			}
		}
		return word
	})
	addr = multiSpaceRegex.ReplaceAllString(addr, " ")
	return strings.TrimSpace(addr)
}
