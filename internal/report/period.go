package report

import (
	"errors"
	"fmt"
	"time"

	"timesheet/internal/model"
)

// ErrInvalidRange rejects a custom period whose start date is after its end
// date. It is checked before any entries are fetched.
var ErrInvalidRange = errors.New("start date must not be after end date")

// Period is an inclusive calendar date range.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) Label() string {
	return fmt.Sprintf("%s to %s", p.Start.Format("Jan 2, 2006"), p.End.Format("Jan 2, 2006"))
}

// Resolve computes the inclusive date range for a report request. Weekly
// periods run Monday through Sunday of the week containing today; monthly
// periods cover today's calendar month; custom periods take the given dates
// verbatim.
func Resolve(kind model.PeriodKind, today time.Time, customStart, customEnd time.Time) (Period, error) {
	today = midnight(today)

	switch kind {
	case model.PeriodWeekly:
		offset := (int(today.Weekday()) + 6) % 7 // Monday=0
		start := today.AddDate(0, 0, -offset)
		return Period{Start: start, End: start.AddDate(0, 0, 6)}, nil

	case model.PeriodMonthly:
		start := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		end := start.AddDate(0, 1, 0).AddDate(0, 0, -1)
		return Period{Start: start, End: end}, nil

	case model.PeriodCustom:
		start := midnight(customStart)
		end := midnight(customEnd)
		if end.Before(start) {
			return Period{}, ErrInvalidRange
		}
		return Period{Start: start, End: end}, nil
	}

	return Period{}, fmt.Errorf("unknown period kind %q", kind)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
