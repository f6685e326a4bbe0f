package ledger

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Layouts the parser's date normalization is known to produce, tried in
// order. The yearless layouts use fallbackYear.
var (
	datedLayouts = []string{
		"2 Jan 2006",
		"02 Jan 2006",
		"2 January 2006",
		"02 January 2006",
		"02/01/2006",
		"2/1/2006",
		"2006-01-02",
	}
	yearlessLayouts = []string{
		"2 Jan",
		"02 Jan",
		"2 January",
		"02 January",
		"02/01",
	}
)

// ParseTransactionDate normalizes a free-form day/month-name string into
// a calendar date. Strings that carry their own year are honored; for
// the rest, fallbackYear is assumed — typically the year of the
// statement period, not one derived from the transaction text itself.
func ParseTransactionDate(s string, fallbackYear int) (civil.Date, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return civil.Date{}, fmt.Errorf("empty date")
	}

	for _, layout := range datedLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return civil.DateOf(t), nil
		}
	}

	if fallbackYear <= 0 {
		fallbackYear = time.Now().Year()
	}
	for _, layout := range yearlessLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return civil.Date{Year: fallbackYear, Month: t.Month(), Day: t.Day()}, nil
		}
	}

	return civil.Date{}, fmt.Errorf("unrecognized date format %q", s)
}

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// YearFromPeriod pulls a statement year out of a free-form statement
// period string ("1 Feb 2019 - 28 Feb 2019"). The last year mentioned
// wins, so a period spanning a year boundary uses the closing year.
// Returns fallback when the period reveals no year.
func YearFromPeriod(period string, fallback int) int {
	matches := yearPattern.FindAllString(period, -1)
	if len(matches) == 0 {
		return fallback
	}
	year := 0
	fmt.Sscanf(matches[len(matches)-1], "%d", &year)
	if year == 0 {
		return fallback
	}
	return year
}
