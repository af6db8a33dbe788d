package web

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"timesheet/internal/auth"
	"timesheet/internal/db"
	"timesheet/internal/model"
	"timesheet/internal/report"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	loginTemplate           = template.Must(template.ParseFS(templateFS, "templates/login.tmpl"))
	entriesTemplate         = template.Must(template.ParseFS(templateFS, "templates/entries.tmpl"))
	reportFormTemplate      = template.Must(template.ParseFS(templateFS, "templates/report_form.tmpl"))
	reportResultsTemplate   = template.Must(template.ParseFS(templateFS, "templates/report_results.tmpl"))
	adminUsersTemplate      = template.Must(template.ParseFS(templateFS, "templates/admin_users.tmpl"))
	adminActivitiesTemplate = template.Must(template.ParseFS(templateFS, "templates/admin_activities.tmpl"))
	adminFundsTemplate      = template.Must(template.ParseFS(templateFS, "templates/admin_funds.tmpl"))
)

const entriesPageSize = 20

type Server struct {
	store    *db.Store
	sessions *auth.Sessions
	signer   *auth.TokenSigner
}

func NewServer(store *db.Store, sessions *auth.Sessions, signer *auth.TokenSigner) *Server {
	return &Server{store: store, sessions: sessions, signer: signer}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", s.loginHandler)
	mux.HandleFunc("/logout", s.logoutHandler)
	mux.HandleFunc("/", s.requireUser(s.entriesHandler))
	mux.HandleFunc("/entries", s.requireUser(s.createEntryHandler))
	mux.HandleFunc("/entries/", s.requireUser(s.entryActionHandler))
	mux.HandleFunc("/api/entries", s.requireUser(s.apiEntriesHandler))
	mux.HandleFunc("/api/calendar", s.requireUser(s.apiCalendarHandler))
	mux.HandleFunc("/reports", s.requireUser(s.reportsHandler))
	mux.HandleFunc("/reports/results", s.requireUser(s.reportResultsHandler))
	mux.HandleFunc("/reports/export/pdf", s.requireUser(s.exportPDFHandler))
	mux.HandleFunc("/reports/export/xlsx", s.requireUser(s.exportXLSXHandler))
	mux.HandleFunc("/admin/users", s.requireAdmin(s.adminUsersHandler))
	mux.HandleFunc("/admin/users/", s.requireAdmin(s.adminUserActionHandler))
	mux.HandleFunc("/admin/activities", s.requireAdmin(s.adminActivitiesHandler))
	mux.HandleFunc("/admin/activities/import", s.requireAdmin(s.adminActivitiesImportHandler))
	mux.HandleFunc("/admin/activities/", s.requireAdmin(s.adminActivityActionHandler))
	mux.HandleFunc("/admin/funds", s.requireAdmin(s.adminFundsHandler))
	mux.HandleFunc("/admin/funds/", s.requireAdmin(s.adminFundsActionHandler))
	return mux
}

type handlerFunc func(w http.ResponseWriter, r *http.Request, user model.User)

func (s *Server) requireUser(next handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.sessions.UserID(r)
		if !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		user, err := s.store.GetUser(r.Context(), id)
		if err != nil || !user.Approved {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r, user)
	}
}

func (s *Server) requireAdmin(next handlerFunc) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request, user model.User) {
		if user.Role != model.RoleAdmin {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next(w, r, user)
	})
}

func (s *Server) loginHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		renderTemplate(w, loginTemplate, struct{ Error string }{})
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	password := r.FormValue("password")

	user, err := s.store.GetUserByEmail(r.Context(), email)
	if err != nil || !auth.CheckPassword(user.PasswordHash, password) {
		w.WriteHeader(http.StatusUnauthorized)
		renderTemplate(w, loginTemplate, struct{ Error string }{Error: "Invalid email or password."})
		return
	}
	if !user.Approved {
		w.WriteHeader(http.StatusForbidden)
		renderTemplate(w, loginTemplate, struct{ Error string }{Error: "Your account has not been approved yet."})
		return
	}

	if err := s.sessions.SignIn(w, r, user.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) logoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(w, r); err != nil {
		log.Printf("sign out: %v", err)
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

type entryRow struct {
	Entry model.TimeEntry
	Hours float64
	Start string
	End   string
	Funds string
}

func (s *Server) entriesHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	entries, err := s.store.ListEntries(r.Context(), user.ID, entriesPageSize, (page-1)*entriesPageSize)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	total, err := s.store.CountEntries(r.Context(), user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	activities, err := s.store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	fundsSources, err := s.store.ListFundsSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	rows := make([]entryRow, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, buildEntryRow(entry))
	}

	totalPages := (total + entriesPageSize - 1) / entriesPageSize
	if totalPages < 1 {
		totalPages = 1
	}

	data := struct {
		User         model.User
		Rows         []entryRow
		Activities   []model.Activity
		FundsSources []model.FundsSource
		Page         int
		TotalPages   int
		PrevPage     int
		NextPage     int
		Error        string
	}{
		User: user, Rows: rows, Activities: activities, FundsSources: fundsSources,
		Page: page, TotalPages: totalPages, PrevPage: page - 1, NextPage: page + 1,
		Error: r.URL.Query().Get("error"),
	}
	renderTemplate(w, entriesTemplate, data)
}

func buildEntryRow(entry model.TimeEntry) entryRow {
	row := entryRow{
		Entry: entry,
		Hours: report.Hours(entry.Start, entry.End),
		Start: report.Clock(entry.Start),
		End:   report.Clock(entry.End),
	}
	if entry.FundsSource != nil {
		row.Funds = entry.FundsSource.Name
	}
	return row
}

func (s *Server) createEntryHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	input, err := entryInputFromForm(r, user.ID)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	if _, err := s.store.CreateEntry(r.Context(), input); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// entryActionHandler dispatches /entries/{id}/{update|delete|submit}.
func (s *Server) entryActionHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, action, err := parseAction(r.URL.Path, "/entries/")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	entry, err := s.store.GetEntry(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if entry.UserID != user.ID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	switch action {
	case "update":
		if entry.Submitted {
			writeError(w, http.StatusUnprocessableEntity, errors.New("submitted entries cannot be edited"))
			return
		}
		input, err := entryInputFromForm(r, user.ID)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		if _, err := s.store.UpdateEntry(r.Context(), id, input); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	case "delete":
		if err := s.store.DeleteEntry(r.Context(), id, user.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	case "submit":
		if err := s.store.SubmitEntry(r.Context(), id, user.ID); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	default:
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func entryInputFromForm(r *http.Request, userID int64) (db.EntryInput, error) {
	date, err := time.Parse("2006-01-02", strings.TrimSpace(r.FormValue("date")))
	if err != nil {
		return db.EntryInput{}, fmt.Errorf("invalid date")
	}

	start, err := parseClock(r.FormValue("start_time"))
	if err != nil {
		return db.EntryInput{}, err
	}
	end, err := parseClock(r.FormValue("end_time"))
	if err != nil {
		return db.EntryInput{}, err
	}
	if (start == nil) != (end == nil) {
		return db.EntryInput{}, errors.New("start and end time must both be set or both be empty")
	}

	activityID, err := strconv.ParseInt(r.FormValue("activity_id"), 10, 64)
	if err != nil {
		return db.EntryInput{}, fmt.Errorf("invalid activity")
	}

	var fundsSourceID *int64
	if value := strings.TrimSpace(r.FormValue("funds_source_id")); value != "" {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return db.EntryInput{}, fmt.Errorf("invalid funds source")
		}
		fundsSourceID = &id
	}

	return db.EntryInput{
		UserID:        userID,
		Date:          date,
		Start:         start,
		End:           end,
		ActivityID:    activityID,
		FundsSourceID: fundsSourceID,
		Description:   strings.TrimSpace(r.FormValue("description")),
	}, nil
}

func parseClock(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse("15:04", value)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q", value)
	}
	return &t, nil
}

func parseAction(path, prefix string) (int64, string, error) {
	rest := strings.TrimPrefix(path, prefix)
	idPart, action, ok := strings.Cut(strings.Trim(rest, "/"), "/")
	if !ok {
		return 0, "", fmt.Errorf("missing action")
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, "", err
	}
	return id, action, nil
}

func renderTemplate(w http.ResponseWriter, tmpl *template.Template, data any) {
	if err := tmpl.Execute(w, data); err != nil {
		log.Printf("render template: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, payload any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.WriteHeader(status)
	_, _ = w.Write([]byte(err.Error()))
}
