package helpers

import (
	"strings"
	"time"
)

var flexibleDateLayouts = []string{
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
	"02.01.06",
	"02.01",
}

// ParseFlexibleDate tries the date formats people type into free-form deadline fields.
// A day.month value without a year is placed in the year of now.
func ParseFlexibleDate(input string, now time.Time) (time.Time, bool) {
	s := strings.TrimSpace(input)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range flexibleDateLayouts {
		t, err := time.ParseInLocation(layout, s, now.Location())
		if err != nil {
			continue
		}
		if layout == "02.01" {
			t = t.AddDate(now.Year(), 0, 0)
		}
		return t, true
	}
	return time.Time{}, false
}

// DeadlinePassed reports whether a free-form deadline parses to a day that ended before now.
func DeadlinePassed(deadline string, now time.Time) bool {
	t, ok := ParseFlexibleDate(deadline, now)
	if !ok {
		return false
	}
	if t.Hour() == 0 && t.Minute() == 0 {
		t = t.AddDate(0, 0, 1)
	}
	return now.After(t)
}
