package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const firstHalfLastDay = 15

// DateRange is an inclusive pair of calendar dates, both at UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether the calendar date of t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	d := civilDate(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// PeriodCodeFor maps a date to its semi-monthly code, YYYY-MM-A for days 1-15 and
// YYYY-MM-B for the rest of the month. The calendar fields of t are used as-is.
func PeriodCodeFor(t time.Time) string {
	half := "A"
	if t.Day() > firstHalfLastDay {
		half = "B"
	}
	return fmt.Sprintf("%04d-%02d-%s", t.Year(), int(t.Month()), half)
}

// DateRangeFor returns the inclusive calendar range covered by a period code.
func DateRangeFor(code string) (DateRange, error) {
	year, month, half, err := ParsePeriodCode(code)
	if err != nil {
		return DateRange{}, err
	}
	if half == "A" {
		return DateRange{
			Start: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(year, month, firstHalfLastDay, 0, 0, 0, 0, time.UTC),
		}, nil
	}
	return DateRange{
		Start: time.Date(year, month, firstHalfLastDay+1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC),
	}, nil
}

// ParsePeriodCode splits a code into its year, month and half ("A" or "B").
func ParsePeriodCode(code string) (int, time.Month, string, error) {
	parts := strings.Split(code, "-")
	if len(parts) != 3 || len(parts[0]) != 4 || len(parts[1]) != 2 {
		return 0, 0, "", fmt.Errorf("invalid period code %q", code)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return 0, 0, "", fmt.Errorf("invalid period code %q: bad year", code)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return 0, 0, "", fmt.Errorf("invalid period code %q: bad month", code)
	}
	if parts[2] != "A" && parts[2] != "B" {
		return 0, 0, "", fmt.Errorf("invalid period code %q: half must be A or B", code)
	}
	return year, time.Month(month), parts[2], nil
}

// civilDate truncates t to its calendar date at UTC midnight, keeping the
// year/month/day as seen in t's own location.
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysBetween counts whole calendar days from a to b.
func daysBetween(a, b time.Time) int {
	return int(civilDate(b).Sub(civilDate(a)).Hours() / 24)
}

// AddBusinessDays moves t forward by n weekdays, skipping Saturdays and Sundays.
func AddBusinessDays(t time.Time, n int) time.Time {
	out := t
	for added := 0; added < n; {
		out = out.AddDate(0, 0, 1)
		if wd := out.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return out
}
