package contracts

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used by every artifact
const DateLayout = "2006-01-02"

// Bar is one day's closing price for a provider symbol
// ⭐ SSOT: 시계열 원자 단위
type Bar struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// Time parses the bar date in UTC
func (b Bar) Time() (time.Time, error) {
	return ParseDate(b.Date)
}

// ParseDate parses a YYYY-MM-DD date in UTC
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats t as YYYY-MM-DD in UTC
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// AddDays shifts a YYYY-MM-DD date by n calendar days
func AddDays(date string, n int) (string, error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", err
	}
	return FormatDate(t.AddDate(0, 0, n)), nil
}

// DaysBetween returns the calendar days from a to b (b - a)
func DaysBetween(a, b string) (int, error) {
	ta, err := ParseDate(a)
	if err != nil {
		return 0, err
	}
	tb, err := ParseDate(b)
	if err != nil {
		return 0, err
	}
	return int(tb.Sub(ta).Hours() / 24), nil
}

// IsWeekend reports whether the date falls on Saturday or Sunday (UTC)
func IsWeekend(date string) bool {
	t, err := ParseDate(date)
	if err != nil {
		return false
	}
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
