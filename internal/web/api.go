package web

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"timesheet/internal/model"
	"timesheet/internal/report"
)

type apiEntry struct {
	ID          int64    `json:"id"`
	Date        string   `json:"date"`
	Activity    apiName  `json:"activity"`
	StartTime   *string  `json:"start_time"`
	EndTime     *string  `json:"end_time"`
	WorkedHours float64  `json:"worked_hours"`
	Description string   `json:"description"`
	FundsSource *apiName `json:"fundssource"`
	Submitted   bool     `json:"submitted"`
}

type apiName struct {
	Name string `json:"name"`
}

// apiEntriesHandler serves the month's entries for the signed-in user as
// JSON. Defaults to the current month when year/month are absent.
func (s *Server) apiEntriesHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	entries, err := s.monthEntries(r, user)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	payload := make([]apiEntry, 0, len(entries))
	for _, entry := range entries {
		item := apiEntry{
			ID:          entry.ID,
			Date:        entry.Date.Format("2006-01-02"),
			Activity:    apiName{Name: entry.Activity.Name},
			StartTime:   clockPtr(entry.Start),
			EndTime:     clockPtr(entry.End),
			WorkedHours: report.Hours(entry.Start, entry.End),
			Description: entry.Description,
			Submitted:   entry.Submitted,
		}
		if entry.FundsSource != nil {
			item.FundsSource = &apiName{Name: entry.FundsSource.Name}
		}
		payload = append(payload, item)
	}
	writeJSON(w, payload)
}

type calendarEvent struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Start         string        `json:"start"`
	ClassName     string        `json:"className"`
	ExtendedProps calendarProps `json:"extendedProps"`
}

type calendarProps struct {
	Activity    string  `json:"activity"`
	Hours       float64 `json:"hours"`
	Description string  `json:"description"`
}

// apiCalendarHandler serves the month's entries as calendar events with an
// hour-banded class name for display coloring.
func (s *Server) apiCalendarHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	entries, err := s.monthEntries(r, user)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	events := make([]calendarEvent, 0, len(entries))
	for _, entry := range entries {
		hours := report.Hours(entry.Start, entry.End)
		activity := fmt.Sprintf("%s - %s", entry.Activity.Code, entry.Activity.Name)
		events = append(events, calendarEvent{
			ID:        fmt.Sprintf("timesheet_%d", entry.ID),
			Title:     fmt.Sprintf("%s (%.1fh)", activity, hours),
			Start:     entry.Date.Format("2006-01-02"),
			ClassName: hoursClassName(hours),
			ExtendedProps: calendarProps{
				Activity:    activity,
				Hours:       hours,
				Description: entry.Description,
			},
		})
	}
	writeJSON(w, events)
}

func hoursClassName(hours float64) string {
	switch {
	case hours >= 8:
		return "timesheet-event-bar high-hours"
	case hours >= 4:
		return "timesheet-event-bar medium-hours"
	default:
		return "timesheet-event-bar low-hours"
	}
}

func (s *Server) monthEntries(r *http.Request, user model.User) ([]model.TimeEntry, error) {
	now := time.Now()
	year, month := now.Year(), int(now.Month())

	if value := r.URL.Query().Get("year"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid year %q", value)
		}
		year = parsed
	}
	if value := r.URL.Query().Get("month"); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 || parsed > 12 {
			return nil, fmt.Errorf("invalid month %q", value)
		}
		month = parsed
	}

	reference := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	period, err := report.Resolve(model.PeriodMonthly, reference, time.Time{}, time.Time{})
	if err != nil {
		return nil, err
	}
	return s.store.ListEntriesForRange(r.Context(), user.ID, period.Start, period.End, false)
}

func clockPtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := t.Format("15:04")
	return &value
}
