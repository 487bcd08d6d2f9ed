package calendar

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of every business date.
const DateLayout = "2006-01-02"

// Domain errors.
var (
	ErrInvalidDate  = errors.New("date must be formatted YYYY-MM-DD")
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	ErrInvalidYear  = errors.New("year must be between 1970 and 9999")
)

// ParseDate parses a business date key into a civil date.
// The result is midnight UTC and only its year/month/day/weekday are meaningful;
// it must never be converted into another zone.
// PRE: s is a YYYY-MM-DD string
// POST: Returns the civil date or ErrInvalidDate
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t, nil
}

// FormatDate renders a civil date as a date key.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Today returns the date key of now as observed in the business timezone.
// PRE: loc is non-nil
// POST: Returns YYYY-MM-DD in loc
func Today(now time.Time, loc *time.Location) string {
	return now.In(loc).Format(DateLayout)
}

// MonthBounds returns the first and last date keys of a month.
// PRE: none
// POST: Returns keys such that first <= d <= last for every day d of the month
func MonthBounds(year, month int) (first, last string, err error) {
	if year < 1970 || year > 9999 {
		return "", "", ErrInvalidYear
	}
	if month < 1 || month > 12 {
		return "", "", ErrInvalidMonth
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return FormatDate(start), FormatDate(end), nil
}

// InRange reports whether date lies in [from, to].
// Date keys order lexically, so no parsing is needed.
func InRange(date, from, to string) bool {
	return date >= from && date <= to
}

// LongDate renders a date key for humans, e.g. "Monday, 04 March 2024".
// Unparseable input is returned unchanged.
func LongDate(date string) string {
	t, err := ParseDate(date)
	if err != nil {
		return date
	}
	return t.Format("Monday, 02 January 2006")
}
