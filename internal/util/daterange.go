package util

import (
	"fmt"
	"time"

	"backtester/internal/domain"
)

// DateLayout is the calendar-date format used on the command line, in
// config files and in reports.
const DateLayout = "2006-01-02"

// NormalizeRange truncates start and end to whole UTC days and extends end
// to the last instant of its day so the range is inclusive. A range whose
// start falls after its end is a configuration error.
func NormalizeRange(start, end time.Time) (time.Time, time.Time, error) {
	s := truncateDay(start)
	e := truncateDay(end)
	if s.After(e) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: start date %s is after end date %s",
			domain.ErrConfiguration, s.Format(DateLayout), e.Format(DateLayout))
	}
	return s, e.Add(24*time.Hour - time.Nanosecond), nil
}

// ResolveRange fills in missing dates and normalizes the result. A zero end
// means now's day; a zero start means one year before end.
func ResolveRange(start, end, now time.Time) (time.Time, time.Time, error) {
	if end.IsZero() {
		end = now
	}
	if start.IsZero() {
		start = end.AddDate(-1, 0, 0)
	}
	return NormalizeRange(start, end)
}

// ParseOptionalDate is ParseDate, except that an empty string yields the
// zero time.
func ParseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return ParseDate(s)
}

// ParseDate parses a YYYY-MM-DD date in UTC.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid date %q (want YYYY-MM-DD)", domain.ErrConfiguration, s)
	}
	return t, nil
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
