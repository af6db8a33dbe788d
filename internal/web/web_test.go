package web

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"timesheet/internal/auth"
	"timesheet/internal/db"
	"timesheet/internal/model"
)

const testPassword = "correct horse"

type testEnv struct {
	server *httptest.Server
	store  *db.Store
	signer *auth.TokenSigner
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	store := db.NewStore(sqlDB)

	key := []byte("0123456789abcdef0123456789abcdef")
	signer := auth.NewTokenSigner(key)
	server := httptest.NewServer(NewServer(store, auth.NewSessions(key), signer).Handler())
	t.Cleanup(server.Close)

	return &testEnv{server: server, store: store, signer: signer}
}

func (e *testEnv) seedUser(t *testing.T, email string, role model.Role, approved bool) model.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.store.CreateUser(context.Background(), db.UserInput{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Approved:     approved,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func (e *testEnv) login(t *testing.T, client *http.Client, email string) {
	t.Helper()
	resp, err := client.PostForm(e.server.URL+"/login", url.Values{
		"email":    {email},
		"password": {testPassword},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: expected redirect to land on 200, got %d", resp.StatusCode)
	}
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func TestUnauthenticatedRedirectsToLogin(t *testing.T) {
	env := newTestEnv(t)
	client := env.client(t)

	resp, err := client.Get(env.server.URL + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	page := body(t, resp)
	if !strings.Contains(page, "Sign in") {
		t.Fatal("expected to land on the sign-in page")
	}
}

func TestLoginRejectsBadPasswordAndUnapproved(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	env.seedUser(t, "pending@example.com", model.RoleReporter, false)
	client := env.client(t)

	resp, err := client.PostForm(env.server.URL+"/login", url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong"},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad password, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = client.PostForm(env.server.URL+"/login", url.Values{
		"email":    {"pending@example.com"},
		"password": {testPassword},
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for unapproved account, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateAndListEntries(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	if _, err := env.store.CreateActivity(context.Background(), "DEV", "Development"); err != nil {
		t.Fatalf("create activity: %v", err)
	}

	client := env.client(t)
	env.login(t, client, "alice@example.com")

	resp, err := client.PostForm(env.server.URL+"/entries", url.Values{
		"date":        {"2023-01-02"},
		"start_time":  {"09:00"},
		"end_time":    {"17:00"},
		"activity_id": {"1"},
		"description": {"feature work"},
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	page := body(t, resp)
	if !strings.Contains(page, "DEV - Development") || !strings.Contains(page, "8.00") {
		t.Fatal("expected the new entry with computed hours on the list page")
	}

	// One-sided time ranges are rejected before they reach the store.
	resp, err = client.PostForm(env.server.URL+"/entries", url.Values{
		"date":        {"2023-01-03"},
		"start_time":  {"09:00"},
		"activity_id": {"1"},
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for one-sided time range, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func seedReportEntries(t *testing.T, env *testEnv, user model.User) {
	t.Helper()
	activity, err := env.store.CreateActivity(context.Background(), "DEV", "Development")
	if err != nil {
		t.Fatalf("create activity: %v", err)
	}

	ranges := []struct{ start, end string }{
		{"09:00", "12:00"},
		{"13:00", "17:00"},
	}
	for _, r := range ranges {
		start, _ := time.Parse("15:04", r.start)
		end, _ := time.Parse("15:04", r.end)
		entry, err := env.store.CreateEntry(context.Background(), db.EntryInput{
			UserID:     user.ID,
			Date:       time.Date(2023, time.January, 2, 0, 0, 0, 0, time.UTC),
			Start:      &start,
			End:        &end,
			ActivityID: activity.ID,
		})
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if err := env.store.SubmitEntry(context.Background(), entry.ID, user.ID); err != nil {
			t.Fatalf("submit entry: %v", err)
		}
	}
}

func TestReportFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	seedReportEntries(t, env, user)

	client := env.client(t)
	env.login(t, client, "alice@example.com")

	resp, err := client.PostForm(env.server.URL+"/reports", url.Values{
		"period":      {"custom"},
		"report_type": {"summary"},
		"start_date":  {"2023-01-01"},
		"end_date":    {"2023-01-31"},
	})
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	page := body(t, resp)
	if !strings.Contains(page, "Work Activity Report") {
		t.Fatal("expected the report results page")
	}
	if !strings.Contains(page, "7.00") || !strings.Contains(page, "3.50") {
		t.Fatal("expected total 7.00 and average 3.50 in the summary")
	}
	if !strings.Contains(page, "DEV") {
		t.Fatal("expected the DEV group row")
	}
}

func TestReportRejectsReversedCustomRange(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.com", model.RoleReporter, true)

	client := env.client(t)
	env.login(t, client, "alice@example.com")

	resp, err := client.PostForm(env.server.URL+"/reports", url.Values{
		"period":      {"custom"},
		"report_type": {"summary"},
		"start_date":  {"2023-02-01"},
		"end_date":    {"2023-01-01"},
	})
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	page := body(t, resp)
	if !strings.Contains(page, "start date must not be after the end date") {
		t.Fatal("expected the validation message on the form")
	}
}

func TestReportExports(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	seedReportEntries(t, env, user)

	client := env.client(t)
	env.login(t, client, "alice@example.com")

	token, err := env.signer.Sign(auth.ReportToken{
		UserID: user.ID,
		Start:  "2023-01-01",
		End:    "2023-01-31",
		Type:   "summary",
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp, err := client.Get(env.server.URL + "/reports/export/pdf?token=" + url.QueryEscape(token))
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/pdf" {
		t.Fatalf("content type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "activity_report.pdf") {
		t.Fatalf("content disposition = %q", got)
	}
	if page := body(t, resp); !strings.HasPrefix(page, "%PDF") {
		t.Fatal("expected PDF payload")
	}

	resp, err = client.Get(env.server.URL + "/reports/export/xlsx?token=" + url.QueryEscape(token))
	if err != nil {
		t.Fatalf("export xlsx: %v", err)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("content type = %q", got)
	}
	resp.Body.Close()

	// A tampered token is rejected outright.
	resp, err = client.Get(env.server.URL + "/reports/results?token=" + url.QueryEscape(token+"x"))
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for tampered token, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestReporterCannotViewOtherUsersReport(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	other := env.seedUser(t, "bob@example.com", model.RoleReporter, true)

	client := env.client(t)
	env.login(t, client, "alice@example.com")

	token, err := env.signer.Sign(auth.ReportToken{
		UserID: other.ID,
		Start:  "2023-01-01",
		End:    "2023-01-31",
		Type:   "summary",
	})
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	resp, err := client.Get(env.server.URL + "/reports/results?token=" + url.QueryEscape(token))
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestManagerCanReportOnOtherUsers(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "manager@example.com", model.RoleManager, true)
	reporter := env.seedUser(t, "bob@example.com", model.RoleReporter, true)
	seedReportEntries(t, env, reporter)

	client := env.client(t)
	env.login(t, client, "manager@example.com")

	resp, err := client.PostForm(env.server.URL+"/reports", url.Values{
		"period":      {"custom"},
		"report_type": {"detailed"},
		"start_date":  {"2023-01-01"},
		"end_date":    {"2023-01-31"},
		"user_id":     {"2"},
	})
	if err != nil {
		t.Fatalf("generate report: %v", err)
	}
	page := body(t, resp)
	if !strings.Contains(page, "bob@example.com") {
		t.Fatal("expected the report to name the target user")
	}
	if !strings.Contains(page, "09:00") || !strings.Contains(page, "17:00") {
		t.Fatal("expected detailed rows with times")
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	env.seedUser(t, "admin@example.com", model.RoleAdmin, true)

	client := env.client(t)
	env.login(t, client, "alice@example.com")
	resp, err := client.Get(env.server.URL + "/admin/users")
	if err != nil {
		t.Fatalf("admin users: %v", err)
	}
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for reporter, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	adminClient := env.client(t)
	env.login(t, adminClient, "admin@example.com")
	resp, err = adminClient.Get(env.server.URL + "/admin/users")
	if err != nil {
		t.Fatalf("admin users: %v", err)
	}
	page := body(t, resp)
	if !strings.Contains(page, "alice@example.com") {
		t.Fatal("expected the user list")
	}
}

func TestAPIEntriesServesMonth(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice@example.com", model.RoleReporter, true)
	seedReportEntries(t, env, user)

	client := env.client(t)
	env.login(t, client, "alice@example.com")

	resp, err := client.Get(env.server.URL + "/api/entries?year=2023&month=1")
	if err != nil {
		t.Fatalf("api entries: %v", err)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
	page := body(t, resp)
	if !strings.Contains(page, `"worked_hours":3`) && !strings.Contains(page, `"worked_hours": 3`) {
		t.Fatalf("expected worked hours in payload: %s", page)
	}

	resp, err = client.Get(env.server.URL + "/api/calendar?year=2023&month=1")
	if err != nil {
		t.Fatalf("api calendar: %v", err)
	}
	page = body(t, resp)
	if !strings.Contains(page, "timesheet-event-bar low-hours") {
		t.Fatalf("expected hour-banded class names: %s", page)
	}
}
