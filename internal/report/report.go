// Package report turns a user's time entries into summary or detailed
// activity reports. Aggregation is a pure function of the entries passed in;
// callers fetch and filter entries before calling Generate.
package report

import (
	"fmt"
	"sort"
	"time"

	"timesheet/internal/model"
)

// Title is the heading used by the page and both export encoders.
const Title = "Work Activity Report"

// Hours returns the elapsed hours between two times of day. A range that ends
// numerically before it starts crosses midnight and still yields a positive
// duration; equal times yield 0. Either side missing yields 0 so that a
// malformed entry degrades instead of aborting a report.
func Hours(start, end *time.Time) float64 {
	if start == nil || end == nil {
		return 0
	}

	s := time.Date(2000, time.January, 1, start.Hour(), start.Minute(), start.Second(), 0, time.UTC)
	e := time.Date(2000, time.January, 1, end.Hour(), end.Minute(), end.Second(), 0, time.UTC)
	if e.Before(s) {
		e = e.Add(24 * time.Hour)
	}
	return e.Sub(s).Hours()
}

type summaryKey struct {
	activityID int64
	code       string
	name       string
}

type accumulator struct {
	fundsSourceName string
	totalHours      float64
	entries         int
}

// Generate builds a report from pre-filtered entries. Summary reports group by
// activity and are sorted by activity code; detailed reports list every entry
// sorted by date then activity code. An empty input produces an empty report,
// not an error.
func Generate(entries []model.TimeEntry, typ model.ReportType, p Period) model.Report {
	rep := model.Report{
		Title:        Title,
		PeriodDetail: p.Label(),
		Type:         typ,
		TotalEntries: len(entries),
	}

	for _, entry := range entries {
		rep.TotalHours += Hours(entry.Start, entry.End)
	}
	if rep.TotalEntries > 0 {
		rep.AverageHours = rep.TotalHours / float64(rep.TotalEntries)
	}

	if typ == model.ReportDetailed {
		rep.DetailRows = detailRows(entries)
		return rep
	}
	rep.SummaryRows = summaryRows(entries)
	return rep
}

func summaryRows(entries []model.TimeEntry) []model.SummaryRow {
	groups := make(map[summaryKey]*accumulator)
	for _, entry := range entries {
		key := summaryKey{
			activityID: entry.ActivityID,
			code:       entry.Activity.Code,
			name:       entry.Activity.Name,
		}
		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{}
			groups[key] = acc
		}
		if entry.FundsSource != nil {
			acc.fundsSourceName = entry.FundsSource.Name
		}
		acc.totalHours += Hours(entry.Start, entry.End)
		acc.entries++
	}

	rows := make([]model.SummaryRow, 0, len(groups))
	for key, acc := range groups {
		row := model.SummaryRow{
			ActivityCode:    key.code,
			ActivityName:    key.name,
			FundsSourceName: acc.fundsSourceName,
			TotalHours:      acc.totalHours,
			Entries:         acc.entries,
		}
		if acc.entries > 0 {
			row.AverageHours = acc.totalHours / float64(acc.entries)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ActivityCode != rows[j].ActivityCode {
			return rows[i].ActivityCode < rows[j].ActivityCode
		}
		return rows[i].ActivityName < rows[j].ActivityName
	})
	return rows
}

func detailRows(entries []model.TimeEntry) []model.DetailRow {
	rows := make([]model.DetailRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, model.DetailRow{Entry: entry, Hours: Hours(entry.Start, entry.End)})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		di, dj := rows[i].Entry.Date, rows[j].Entry.Date
		if !di.Equal(dj) {
			return di.Before(dj)
		}
		return rows[i].Entry.Activity.Code < rows[j].Entry.Activity.Code
	})
	return rows
}

// Clock formats a time of day as zero-padded 24-hour HH:MM, or an empty
// string when the time is absent.
func Clock(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("15:04")
}

// FormatHours renders an hour value the way every report surface shows it.
func FormatHours(hours float64) string {
	return fmt.Sprintf("%.2f", hours)
}
