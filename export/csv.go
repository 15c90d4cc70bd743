package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"streeteasy_scraper/models"
)

var header = []string{
	"address", "neighborhood", "price", "sqft", "taxes", "fees", "listing_date", "days_on_market", "url",
}

var unsafeName = regexp.MustCompile(`[^a-z0-9]+`)

// FileName is the download name for a borough's export.
func FileName(borough string) string {
	b := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(borough), "_"), "_")
	if b == "" {
		b = "nyc"
	}
	return fmt.Sprintf("streeteasy_%s_listings.csv", b)
}

// WriteCSV writes listings with a header row. Absent values are empty cells.
func WriteCSV(w io.Writer, listings []models.Listing) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("csv: write header: %w", err)
	}

	for _, l := range listings {
		row := []string{
			l.Address,
			l.Neighborhood,
			intCell(l.Price),
			intCell(l.SqFt),
			intCell(l.Taxes),
			intCell(l.Fees),
			"",
			intCell(l.DaysOnMarket),
			l.URL,
		}
		if l.ListingDate != nil {
			row[6] = l.ListingDate.Format("2006-01-02")
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFile writes the CSV to path, creating parent directories.
func WriteFile(path string, listings []models.Listing) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("csv: create output dir: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csv: create file %q: %w", path, err)
	}
	if err := WriteCSV(f, listings); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
