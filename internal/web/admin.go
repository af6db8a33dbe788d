package web

import (
	"errors"
	"fmt"
	"net/http"

	"timesheet/internal/db"
	"timesheet/internal/export"
	"timesheet/internal/model"
)

const uploadLimit = 8 << 20

func (s *Server) adminUsersHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	users, err := s.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data := struct {
		User  model.User
		Users []model.User
		Roles []model.Role
	}{User: admin, Users: users, Roles: []model.Role{model.RoleReporter, model.RoleManager, model.RoleAdmin}}
	renderTemplate(w, adminUsersTemplate, data)
}

// adminUserActionHandler dispatches /admin/users/{id}/{role|approve|revoke}.
func (s *Server) adminUserActionHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, action, err := parseAction(r.URL.Path, "/admin/users/")
	if err != nil {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "role":
		err = s.store.UpdateUserRole(r.Context(), id, model.Role(r.FormValue("role")))
	case "approve":
		err = s.store.SetUserApproval(r.Context(), id, true)
	case "revoke":
		err = s.store.SetUserApproval(r.Context(), id, false)
	default:
		http.NotFound(w, r)
		return
	}
	if err != nil {
		writeError(w, adminErrorStatus(err), err)
		return
	}
	http.Redirect(w, r, "/admin/users", http.StatusSeeOther)
}

func (s *Server) adminActivitiesHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	if r.Method == http.MethodPost {
		if _, err := s.store.CreateActivity(r.Context(), r.FormValue("code"), r.FormValue("name")); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		http.Redirect(w, r, "/admin/activities", http.StatusSeeOther)
		return
	}

	activities, err := s.store.ListActivities(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data := struct {
		User       model.User
		Activities []model.Activity
		Imported   string
	}{User: admin, Activities: activities, Imported: r.URL.Query().Get("imported")}
	renderTemplate(w, adminActivitiesTemplate, data)
}

// adminActivitiesImportHandler bulk-loads the activity catalogue from an
// uploaded XLSX file.
func (s *Server) adminActivitiesImportHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseMultipartForm(uploadLimit); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("missing workbook upload"))
		return
	}
	defer file.Close()

	activities, err := export.ReadActivities(file)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	count, err := s.store.ImportActivities(r.Context(), activities)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.Redirect(w, r, fmt.Sprintf("/admin/activities?imported=%d", count), http.StatusSeeOther)
}

func (s *Server) adminActivityActionHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, action, err := parseAction(r.URL.Path, "/admin/activities/")
	if err != nil || action != "delete" {
		http.NotFound(w, r)
		return
	}

	if err := s.store.DeleteActivity(r.Context(), id); err != nil {
		writeError(w, adminErrorStatus(err), err)
		return
	}
	http.Redirect(w, r, "/admin/activities", http.StatusSeeOther)
}

func (s *Server) adminFundsHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	if r.Method == http.MethodPost {
		if _, err := s.store.CreateFundsSource(r.Context(), r.FormValue("name"), r.FormValue("description")); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err)
			return
		}
		http.Redirect(w, r, "/admin/funds", http.StatusSeeOther)
		return
	}

	sources, err := s.store.ListFundsSources(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	data := struct {
		User         model.User
		FundsSources []model.FundsSource
	}{User: admin, FundsSources: sources}
	renderTemplate(w, adminFundsTemplate, data)
}

func (s *Server) adminFundsActionHandler(w http.ResponseWriter, r *http.Request, admin model.User) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, action, err := parseAction(r.URL.Path, "/admin/funds/")
	if err != nil || action != "delete" {
		http.NotFound(w, r)
		return
	}

	if err := s.store.DeleteFundsSource(r.Context(), id); err != nil {
		writeError(w, adminErrorStatus(err), err)
		return
	}
	http.Redirect(w, r, "/admin/funds", http.StatusSeeOther)
}

func adminErrorStatus(err error) int {
	if errors.Is(err, db.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
