/*
Package dateutil - date parsing and day-distance arithmetic

Grounded on business_day_calculator.go's style of precomputed lookup tables
and AddDate-based iteration, extended to cover the multi-format dates an
LLM extraction can return and the spreadsheet serial dates a tabular store
round-trips.
*/
package dateutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var layouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	time.RFC3339,
}

var spanishMonths = [...]string{
	"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio",
	"Julio", "Agosto", "Septiembre", "Octubre", "Noviembre", "Diciembre",
}

// MonthNameEs returns the Spanish name of a 1-indexed month.
func MonthNameEs(month time.Month) string {
	if month < 1 || int(month) > len(spanishMonths) {
		return ""
	}
	return spanishMonths[month-1]
}

// ParseDate parses a date string against the multi-format set this system
// accepts from LLM extraction (ISO, Argentine DD/MM/YYYY, and variants).
func ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	// Spreadsheet serial date (days since 1899-12-30), as returned when a
	// tabular store cell was read back as a number rather than a string.
	if n, err := strconv.Atoi(raw); err == nil {
		return SerialToDate(n), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date format: %q", raw)
}

// excelEpoch is the day Excel/Sheets treat as serial day 0.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// SerialToDate converts a spreadsheet serial day number to a time.Time.
func SerialToDate(serial int) time.Time {
	return excelEpoch.AddDate(0, 0, serial)
}

// DateToSerial converts a time.Time to its spreadsheet serial day number.
func DateToSerial(t time.Time) int {
	days := t.Truncate(24 * time.Hour).Sub(excelEpoch).Hours() / 24
	return int(days + 0.5)
}

// DayDistance returns the signed number of whole days from a to b
// (b - a), truncated to calendar-day granularity.
func DayDistance(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(bd.Sub(ad).Hours() / 24)
}

// WithinWindow reports whether b falls within [a+minDays, a+maxDays].
func WithinWindow(a, b time.Time, minDays, maxDays int) bool {
	d := DayDistance(a, b)
	return d >= minDays && d <= maxDays
}
