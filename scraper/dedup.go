package scraper

import "streeteasy_scraper/models"

// Dedup keeps the first listing seen for each URL, or for each address when
// a listing has no URL. Order is preserved.
func Dedup(listings []models.Listing) []models.Listing {
	seenURLs := make(map[string]struct{})
	seenAddresses := make(map[string]struct{})
	unique := make([]models.Listing, 0, len(listings))

	for _, l := range listings {
		switch {
		case l.URL != "":
			if _, ok := seenURLs[l.URL]; ok {
				continue
			}
			seenURLs[l.URL] = struct{}{}
		case l.Address != "":
			if _, ok := seenAddresses[l.Address]; ok {
				continue
			}
			seenAddresses[l.Address] = struct{}{}
		default:
			continue
		}
		unique = append(unique, l)
	}
	return unique
}
