package models

import "time"

// DateFormat is the ISO-8601 layout used for trade days.
const DateFormat = "2006-01-02"

// Day returns the canonical representation of t's calendar day: midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a canonical day.
func ParseDay(s string) (time.Time, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, err
	}
	return Day(t), nil
}
