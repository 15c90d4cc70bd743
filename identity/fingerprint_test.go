package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"streeteasy_scraper/models"
)

func TestNormalizeAddress(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"34 North 7th Street, #4C", "34 n 7 st 4c"},
		{"34 N 7th St 4c", "34 n 7 st 4c"},
		{"  500 West 43rd Street Apartment 12B ", "500 w 43 st apt 12b"},
		{"225 5th Avenue Unit 2", "225 5 ave apt 2"},
		{"1 Eastern Parkway", "1 eastern pkwy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeAddress(tt.in), tt.in)
	}
}

func TestFingerprint(t *testing.T) {
	a := &models.Listing{URL: "https://streeteasy.com/sale/1", Address: "1 A St"}
	b := &models.Listing{URL: "https://streeteasy.com/sale/1", Address: "One A Street"}
	assert.Equal(t, Fingerprint(a), Fingerprint(b), "url wins over address")

	c := &models.Listing{Address: "34 North 7th Street"}
	d := &models.Listing{Address: "34 N 7th St"}
	assert.Equal(t, Fingerprint(c), Fingerprint(d))

	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
	assert.Len(t, Fingerprint(a), 32)
}
