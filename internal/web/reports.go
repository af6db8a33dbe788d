package web

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"timesheet/internal/auth"
	"timesheet/internal/db"
	"timesheet/internal/export"
	"timesheet/internal/model"
	"timesheet/internal/report"
)

type reportFormData struct {
	User  model.User
	Users []model.User
	Error string
}

// reportsHandler shows the report form and, on POST, resolves the period,
// signs the report parameters into a token and redirects to the results page.
// The token replaces the ambient session stash the old flow relied on.
func (s *Server) reportsHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	switch r.Method {
	case http.MethodGet:
		s.renderReportForm(w, r, user, "", http.StatusOK)
	case http.MethodPost:
		s.generateReport(w, r, user)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderReportForm(w http.ResponseWriter, r *http.Request, user model.User, errMsg string, status int) {
	data := reportFormData{User: user, Error: errMsg}
	if user.Role.CanViewAllReports() {
		users, err := s.store.ListUsers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		data.Users = users
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	renderTemplate(w, reportFormTemplate, data)
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request, user model.User) {
	kind := model.PeriodKind(r.FormValue("period"))
	typ := model.ReportType(r.FormValue("report_type"))
	if !typ.Valid() {
		s.renderReportForm(w, r, user, "Choose a report type.", http.StatusUnprocessableEntity)
		return
	}

	var customStart, customEnd time.Time
	if kind == model.PeriodCustom {
		var err error
		customStart, err = time.Parse("2006-01-02", r.FormValue("start_date"))
		if err == nil {
			customEnd, err = time.Parse("2006-01-02", r.FormValue("end_date"))
		}
		if err != nil {
			s.renderReportForm(w, r, user, "Enter both start and end dates.", http.StatusUnprocessableEntity)
			return
		}
	}

	period, err := report.Resolve(kind, time.Now(), customStart, customEnd)
	if errors.Is(err, report.ErrInvalidRange) {
		s.renderReportForm(w, r, user, "The start date must not be after the end date.", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		s.renderReportForm(w, r, user, "Choose a reporting period.", http.StatusUnprocessableEntity)
		return
	}

	targetID := user.ID
	if value := r.FormValue("user_id"); value != "" && user.Role.CanViewAllReports() {
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("invalid user"))
			return
		}
		targetID = id
	}

	token, err := s.signer.Sign(auth.ReportToken{
		UserID: targetID,
		Start:  period.Start.Format("2006-01-02"),
		End:    period.End.Format("2006-01-02"),
		Type:   string(typ),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	http.Redirect(w, r, "/reports/results?token="+url.QueryEscape(token), http.StatusSeeOther)
}

// resolveReport verifies the token, checks that the session user may see the
// target user's report, and builds the report from submitted entries.
func (s *Server) resolveReport(r *http.Request, user model.User) (model.Report, model.User, string, error) {
	raw := r.URL.Query().Get("token")
	token, err := s.signer.Verify(raw)
	if err != nil {
		return model.Report{}, model.User{}, "", err
	}
	if token.UserID != user.ID && !user.Role.CanViewAllReports() {
		return model.Report{}, model.User{}, "", errForbidden
	}

	start, err := time.Parse("2006-01-02", token.Start)
	if err != nil {
		return model.Report{}, model.User{}, "", auth.ErrBadToken
	}
	end, err := time.Parse("2006-01-02", token.End)
	if err != nil {
		return model.Report{}, model.User{}, "", auth.ErrBadToken
	}

	target, err := s.store.GetUser(r.Context(), token.UserID)
	if err != nil {
		return model.Report{}, model.User{}, "", err
	}

	entries, err := s.store.ListEntriesForRange(r.Context(), token.UserID, start, end, true)
	if err != nil {
		return model.Report{}, model.User{}, "", err
	}

	rep := report.Generate(entries, model.ReportType(token.Type), report.Period{Start: start, End: end})
	return rep, target, raw, nil
}

func (s *Server) reportResultsHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	rep, target, token, err := s.resolveReport(r, user)
	if err != nil {
		writeError(w, reportErrorStatus(err), err)
		return
	}

	detailRows := make([]entryRow, 0, len(rep.DetailRows))
	for _, row := range rep.DetailRows {
		detailRows = append(detailRows, buildEntryRow(row.Entry))
	}

	data := struct {
		User       model.User
		Target     model.User
		Report     model.Report
		DetailRows []entryRow
		Token      string
	}{User: user, Target: target, Report: rep, DetailRows: detailRows, Token: token}
	renderTemplate(w, reportResultsTemplate, data)
}

func (s *Server) exportPDFHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	rep, _, _, err := s.resolveReport(r, user)
	if err != nil {
		writeError(w, reportErrorStatus(err), err)
		return
	}

	data, err := export.PDF(rep)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("export failed"))
		return
	}
	serveDownload(w, data, export.PDFContentType, export.PDFFilename)
}

func (s *Server) exportXLSXHandler(w http.ResponseWriter, r *http.Request, user model.User) {
	rep, _, _, err := s.resolveReport(r, user)
	if err != nil {
		writeError(w, reportErrorStatus(err), err)
		return
	}

	data, err := export.XLSX(rep)
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.New("export failed"))
		return
	}
	serveDownload(w, data, export.XLSXContentType, export.XLSXFilename)
}

func serveDownload(w http.ResponseWriter, data []byte, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

var errForbidden = errors.New("forbidden")

func reportErrorStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrBadToken):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
