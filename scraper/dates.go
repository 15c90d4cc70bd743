package scraper

import (
	"strings"
	"time"
)

// Accepted listing date formats, tried in order against the whole string.
var dateLayouts = []string{
	"1/2/2006",
	"1-2-2006",
	"2006-1-2",
	"January 2, 2006",
	"Jan 2, 2006",
}

// ParseDate returns the calendar date (UTC midnight) text denotes.
func ParseDate(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func DateFromDays(days int) (time.Time, bool) {
	return DateFromDaysAt(days, time.Now())
}

// DateFromDaysAt is the listing date for a listing days on market as of now.
func DateFromDaysAt(days int, now time.Time) (time.Time, bool) {
	if days < 0 {
		return time.Time{}, false
	}
	return today(now).AddDate(0, 0, -days), true
}

func DaysFromDate(date time.Time) int {
	return DaysFromDateAt(date, time.Now())
}

// DaysFromDateAt counts whole calendar days from date to now. Future dates
// give a negative count.
func DaysFromDateAt(date time.Time, now time.Time) int {
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return int((today(now).Unix() - start.Unix()) / 86400)
}
