package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"timesheet/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const (
	dateFormat  = "2006-01-02"
	clockFormat = "15:04"
)

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

type UserInput struct {
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         model.Role
	Approved     bool
}

type EntryInput struct {
	UserID        int64
	Date          time.Time
	Start         *time.Time
	End           *time.Time
	ActivityID    int64
	FundsSourceID *int64
	Description   string
}

func (s *Store) CreateUser(ctx context.Context, input UserInput) (model.User, error) {
	role := input.Role
	if role == "" {
		role = model.RoleReporter
	}
	if !role.Valid() {
		return model.User{}, fmt.Errorf("invalid role %q", role)
	}

	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" {
		return model.User{}, fmt.Errorf("email is required")
	}

	now := time.Now().UTC()
	result, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (uuid, email, password_hash, first_name, last_name, role, approved, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), email, input.PasswordHash, input.FirstName, input.LastName, string(role), input.Approved, now)
	if err != nil {
		return model.User{}, fmt.Errorf("create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.User{}, err
	}
	return s.GetUser(ctx, id)
}

func (s *Store) GetUser(ctx context.Context, id int64) (model.User, error) {
	return s.scanUser(s.DB.QueryRowContext(ctx,
		`SELECT id, uuid, email, password_hash, first_name, last_name, role, approved, created_at
		 FROM users WHERE id = ?`, id))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	return s.scanUser(s.DB.QueryRowContext(ctx,
		`SELECT id, uuid, email, password_hash, first_name, last_name, role, approved, created_at
		 FROM users WHERE email = ?`, strings.ToLower(strings.TrimSpace(email))))
}

func (s *Store) scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.UUID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.Approved, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, uuid, email, password_hash, first_name, last_name, role, approved, created_at
		 FROM users ORDER BY email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		var role string
		if err := rows.Scan(&u.ID, &u.UUID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &role, &u.Approved, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = model.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserRole(ctx context.Context, id int64, role model.Role) error {
	if !role.Valid() {
		return fmt.Errorf("invalid role %q", role)
	}
	return s.execOne(ctx, `UPDATE users SET role = ? WHERE id = ?`, string(role), id)
}

func (s *Store) SetUserApproval(ctx context.Context, id int64, approved bool) error {
	return s.execOne(ctx, `UPDATE users SET approved = ? WHERE id = ?`, approved, id)
}

func (s *Store) CreateActivity(ctx context.Context, code, name string) (model.Activity, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return model.Activity{}, fmt.Errorf("activity code is required")
	}

	result, err := s.DB.ExecContext(ctx, `INSERT INTO activities (code, name) VALUES (?, ?)`, code, strings.TrimSpace(name))
	if err != nil {
		return model.Activity{}, fmt.Errorf("create activity: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.Activity{}, err
	}
	return model.Activity{ID: id, Code: code, Name: strings.TrimSpace(name)}, nil
}

func (s *Store) ListActivities(ctx context.Context) ([]model.Activity, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, code, name FROM activities ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]model.Activity, 0)
	for rows.Next() {
		var a model.Activity
		if err := rows.Scan(&a.ID, &a.Code, &a.Name); err != nil {
			return nil, err
		}
		activities = append(activities, a)
	}
	return activities, rows.Err()
}

func (s *Store) DeleteActivity(ctx context.Context, id int64) error {
	return s.execOne(ctx, `DELETE FROM activities WHERE id = ?`, id)
}

// ImportActivities upserts activities by code and returns how many rows were
// written. Used by the XLSX catalogue import.
func (s *Store) ImportActivities(ctx context.Context, activities []model.Activity) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	count := 0
	for _, a := range activities {
		code := strings.TrimSpace(a.Code)
		if code == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO activities (code, name) VALUES (?, ?)
			 ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
			code, strings.TrimSpace(a.Name)); err != nil {
			return 0, fmt.Errorf("import activity %q: %w", code, err)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *Store) CreateFundsSource(ctx context.Context, name, description string) (model.FundsSource, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.FundsSource{}, fmt.Errorf("funds source name is required")
	}

	result, err := s.DB.ExecContext(ctx, `INSERT INTO funds_sources (name, description) VALUES (?, ?)`, name, description)
	if err != nil {
		return model.FundsSource{}, fmt.Errorf("create funds source: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return model.FundsSource{}, err
	}
	return model.FundsSource{ID: id, Name: name, Description: description}, nil
}

func (s *Store) ListFundsSources(ctx context.Context) ([]model.FundsSource, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, name, description FROM funds_sources ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]model.FundsSource, 0)
	for rows.Next() {
		var f model.FundsSource
		if err := rows.Scan(&f.ID, &f.Name, &f.Description); err != nil {
			return nil, err
		}
		sources = append(sources, f)
	}
	return sources, rows.Err()
}

func (s *Store) DeleteFundsSource(ctx context.Context, id int64) error {
	return s.execOne(ctx, `DELETE FROM funds_sources WHERE id = ?`, id)
}

func (s *Store) CreateEntry(ctx context.Context, input EntryInput) (model.TimeEntry, error) {
	now := time.Now().UTC()
	result, err := s.DB.ExecContext(ctx,
		`INSERT INTO time_entries (user_id, entry_date, start_time, end_time, activity_id, funds_source_id, description, submitted, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)`,
		input.UserID, input.Date.Format(dateFormat), clockValue(input.Start), clockValue(input.End),
		input.ActivityID, fundsSourceValue(input.FundsSourceID), input.Description, now)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("create entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.TimeEntry{}, err
	}
	return s.GetEntry(ctx, id)
}

func (s *Store) UpdateEntry(ctx context.Context, id int64, input EntryInput) (model.TimeEntry, error) {
	err := s.execOne(ctx,
		`UPDATE time_entries
		 SET entry_date = ?, start_time = ?, end_time = ?, activity_id = ?, funds_source_id = ?, description = ?
		 WHERE id = ? AND user_id = ? AND submitted = 0`,
		input.Date.Format(dateFormat), clockValue(input.Start), clockValue(input.End),
		input.ActivityID, fundsSourceValue(input.FundsSourceID), input.Description, id, input.UserID)
	if err != nil {
		return model.TimeEntry{}, err
	}
	return s.GetEntry(ctx, id)
}

func (s *Store) DeleteEntry(ctx context.Context, id, userID int64) error {
	return s.execOne(ctx, `DELETE FROM time_entries WHERE id = ? AND user_id = ?`, id, userID)
}

func (s *Store) SubmitEntry(ctx context.Context, id, userID int64) error {
	return s.execOne(ctx, `UPDATE time_entries SET submitted = 1 WHERE id = ? AND user_id = ?`, id, userID)
}

const entrySelect = `
SELECT e.id, e.user_id, e.entry_date, e.start_time, e.end_time,
       e.activity_id, a.code, a.name,
       e.funds_source_id, f.name, f.description,
       e.description, e.submitted, e.created_at
FROM time_entries e
JOIN activities a ON a.id = e.activity_id
LEFT JOIN funds_sources f ON f.id = e.funds_source_id`

func (s *Store) GetEntry(ctx context.Context, id int64) (model.TimeEntry, error) {
	rows, err := s.DB.QueryContext(ctx, entrySelect+` WHERE e.id = ?`, id)
	if err != nil {
		return model.TimeEntry{}, err
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return model.TimeEntry{}, err
		}
		return model.TimeEntry{}, ErrNotFound
	}
	return scanEntry(rows)
}

// ListEntries returns a page of the user's entries, newest first.
func (s *Store) ListEntries(ctx context.Context, userID int64, limit, offset int) ([]model.TimeEntry, error) {
	rows, err := s.DB.QueryContext(ctx,
		entrySelect+` WHERE e.user_id = ? ORDER BY e.entry_date DESC, e.created_at DESC LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func (s *Store) CountEntries(ctx context.Context, userID int64) (int, error) {
	var count int
	err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM time_entries WHERE user_id = ?`, userID).Scan(&count)
	return count, err
}

// ListEntriesForRange returns the user's entries with dates inside the
// inclusive range, oldest first. Reports pass submittedOnly so drafts never
// reach the aggregator.
func (s *Store) ListEntriesForRange(ctx context.Context, userID int64, start, end time.Time, submittedOnly bool) ([]model.TimeEntry, error) {
	query := entrySelect + ` WHERE e.user_id = ? AND e.entry_date >= ? AND e.entry_date <= ?`
	if submittedOnly {
		query += ` AND e.submitted = 1`
	}
	query += ` ORDER BY e.entry_date, a.code`

	rows, err := s.DB.QueryContext(ctx, query, userID, start.Format(dateFormat), end.Format(dateFormat))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEntries(rows)
}

func collectEntries(rows *sql.Rows) ([]model.TimeEntry, error) {
	entries := make([]model.TimeEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanEntry(rows *sql.Rows) (model.TimeEntry, error) {
	var e model.TimeEntry
	var date string
	var start, end sql.NullString
	var fundsID sql.NullInt64
	var fundsName, fundsDesc sql.NullString

	err := rows.Scan(&e.ID, &e.UserID, &date, &start, &end,
		&e.ActivityID, &e.Activity.Code, &e.Activity.Name,
		&fundsID, &fundsName, &fundsDesc,
		&e.Description, &e.Submitted, &e.CreatedAt)
	if err != nil {
		return model.TimeEntry{}, err
	}
	e.Activity.ID = e.ActivityID

	e.Date, err = time.Parse(dateFormat, date)
	if err != nil {
		return model.TimeEntry{}, fmt.Errorf("parse entry date %q: %w", date, err)
	}
	if e.Start, err = clockTime(start); err != nil {
		return model.TimeEntry{}, err
	}
	if e.End, err = clockTime(end); err != nil {
		return model.TimeEntry{}, err
	}

	if fundsID.Valid {
		id := fundsID.Int64
		e.FundsSourceID = &id
		e.FundsSource = &model.FundsSource{ID: id, Name: fundsName.String, Description: fundsDesc.String}
	}
	return e, nil
}

func clockValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(clockFormat)
}

func clockTime(value sql.NullString) (*time.Time, error) {
	if !value.Valid || value.String == "" {
		return nil, nil
	}
	t, err := time.Parse(clockFormat, value.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", value.String, err)
	}
	return &t, nil
}

func fundsSourceValue(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

func (s *Store) execOne(ctx context.Context, query string, args ...any) error {
	result, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
