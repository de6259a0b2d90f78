// Package timeutil holds the date helpers used by the order flow: picker
// bounds, the LINE datetime picker string format and display formatting.
package timeutil

import (
	"fmt"
	"strings"
	"time"
)

// PickerLayout is the datetime format accepted by the LINE datetime picker
// for its initial/min/max fields.
const PickerLayout = "2006-01-02t15:04"

// DisplayLayout is used for every human-facing timestamp.
const DisplayLayout = "2006/01/02 15:04"

// AddHours returns t shifted by the given number of hours.
func AddHours(t time.Time, hours int) time.Time {
	return t.Add(time.Duration(hours) * time.Hour)
}

// AddMonths returns t shifted by the given number of calendar months.
// Overflowing days roll into the next month (Jan 31 + 1 month = Mar 3 or 2).
func AddMonths(t time.Time, months int) time.Time {
	return t.AddDate(0, months, 0)
}

// FormatPickerDate renders t in PickerLayout. Seconds are dropped, so the
// result is t floor-truncated to the minute.
func FormatPickerDate(t time.Time) string {
	return t.Format(PickerLayout)
}

// ParsePickerDate parses a value produced by the datetime picker (either in
// PickerLayout, with an upper-case T, or date-only) as wall time in loc.
func ParsePickerDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s = strings.TrimSpace(s)
	for _, layout := range []string{PickerLayout, "2006-01-02T15:04", "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised picker datetime %q", s)
}

// Humanize converts t to loc and formats it for display. The zero time
// renders as an empty string.
func Humanize(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DisplayLayout)
}
