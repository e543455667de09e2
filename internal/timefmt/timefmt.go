package timefmt

import (
	"strings"
	"time"
)

// DisplayLayout renders as e.g. "Nov 1, 2026 6:05 AM". Go layouts are
// locale independent.
const DisplayLayout = "Jan 2, 2006 3:04 PM"

const InvalidDate = "Invalid Date"

var layouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05-0700", // Without colon
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// Parse reads an ISO-like timestamp. The wall clock is kept as written: a
// "local_departure" of 06:05Z is the local time at the airport.
func Parse(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &time.ParseError{
		Value:   s,
		Message: ": unable to parse time string",
	}
}

func Format(s string) string {
	t, err := Parse(s)
	if err != nil {
		return InvalidDate
	}
	return t.Format(DisplayLayout)
}
