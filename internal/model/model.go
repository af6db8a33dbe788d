package model

import "time"

type Role string

const (
	RoleReporter Role = "reporter"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleReporter, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// CanViewAllReports reports whether the role may run reports for other users.
func (r Role) CanViewAllReports() bool {
	return r == RoleManager || r == RoleAdmin
}

type User struct {
	ID           int64
	UUID         string
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	Approved     bool
	CreatedAt    time.Time
}

func (u User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

type Activity struct {
	ID   int64
	Code string
	Name string
}

type FundsSource struct {
	ID          int64
	Name        string
	Description string
}

// TimeEntry is one logged work session. Start and End are times of day carried
// on a fixed reference date; both are set or both are nil.
type TimeEntry struct {
	ID            int64
	UserID        int64
	Date          time.Time
	Start         *time.Time
	End           *time.Time
	ActivityID    int64
	Activity      Activity
	FundsSourceID *int64
	FundsSource   *FundsSource
	Description   string
	Submitted     bool
	CreatedAt     time.Time
}

type ReportType string

const (
	ReportSummary  ReportType = "summary"
	ReportDetailed ReportType = "detailed"
)

func (t ReportType) Valid() bool {
	return t == ReportSummary || t == ReportDetailed
}

type PeriodKind string

const (
	PeriodWeekly  PeriodKind = "weekly"
	PeriodMonthly PeriodKind = "monthly"
	PeriodCustom  PeriodKind = "custom"
)

// SummaryRow is one aggregated line of a summary report.
//
// FundsSourceName is the last-seen source among the group's entries; entries
// for one activity are assumed to share a funds source.
type SummaryRow struct {
	ActivityCode    string
	ActivityName    string
	FundsSourceName string
	TotalHours      float64
	Entries         int
	AverageHours    float64
}

// DetailRow is one entry of a detailed report with its computed duration.
type DetailRow struct {
	Entry TimeEntry
	Hours float64
}

// Report is the rendered result handed to the page and the export encoders.
// SummaryRows is set for summary reports, DetailRows for detailed ones.
type Report struct {
	Title        string
	PeriodDetail string
	Type         ReportType
	SummaryRows  []SummaryRow
	DetailRows   []DetailRow
	TotalHours   float64
	TotalEntries int
	AverageHours float64
}
