package student

import (
	"strconv"
	"time"

	"student-records/internal/db"

	"github.com/uptrace/bun"
)

const (
	DateLayout      = "2006-01-02"
	DefaultPageSize = 10
	AdminPageSize   = 100

	// RecentWindowDays is the window used by the statistics endpoint.
	RecentWindowDays = 30
)

var (
	DefaultSearchFields = []string{"name", "email", "course"}
	AdminSearchFields   = []string{"name", "email", "phone"}
)

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID            int       `bun:"id,pk,autoincrement"`
	Name          string    `bun:"name,type:varchar(100),notnull"`
	Email         string    `bun:"email,type:varchar(254),unique,notnull"`
	Phone         string    `bun:"phone,type:varchar(10),notnull"`
	Course        string    `bun:"course,type:varchar(100),notnull"`
	DateOfJoining time.Time `bun:"date_of_joining,type:date,notnull"`
}

func (s *Student) String() string {
	return s.Name
}

// URL is the detail page of the record.
func (s *Student) URL() string {
	return "/" + strconv.Itoa(s.ID) + "/"
}

func (s *Student) JoinedOn() string {
	if s.DateOfJoining.IsZero() {
		return ""
	}
	return s.DateOfJoining.Format(DateLayout)
}

// DaysSinceJoining is nil when the record has no joining date.
func (s *Student) DaysSinceJoining(today time.Time) *int {
	if s.DateOfJoining.IsZero() {
		return nil
	}
	days := int(dateOnly(today).Sub(dateOnly(s.DateOfJoining)).Hours() / 24)
	return &days
}

// Input is a candidate record as submitted by a client. A nil field was
// not submitted at all.
type Input struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Course        *string `json:"course"`
	DateOfJoining *string `json:"date_of_joining"`
}

// Changes holds validated, normalized values ready to be applied.
type Changes struct {
	Name          *string
	Email         *string
	Phone         *string
	Course        *string
	DateOfJoining *time.Time
}

func (c Changes) Apply(s *Student) {
	if c.Name != nil {
		s.Name = *c.Name
	}
	if c.Email != nil {
		s.Email = *c.Email
	}
	if c.Phone != nil {
		s.Phone = *c.Phone
	}
	if c.Course != nil {
		s.Course = *c.Course
	}
	if c.DateOfJoining != nil {
		s.DateOfJoining = *c.DateOfJoining
	}
}

type ListParams struct {
	Search string
	// SearchFields names the columns Search matches; empty means
	// DefaultSearchFields.
	SearchFields []string
	Course       string
	// JoinedFrom and JoinedBefore bound date_of_joining as [from, before).
	// A zero value leaves that side open.
	JoinedFrom   time.Time
	JoinedBefore time.Time
	Ordering     string
	Page         int
	PageSize     int
}

type Page struct {
	Students []Student
	Total    int
	Number   int
	PageSize int
}

func (p *Page) HasNext() bool {
	return p.Number*p.PageSize < p.Total
}

func (p *Page) HasPrevious() bool {
	return p.Number > 1
}

func (p *Page) NumPages() int {
	if p.Total == 0 {
		return 1
	}
	return (p.Total + p.PageSize - 1) / p.PageSize
}

type CourseCount struct {
	Course string `bun:"course" json:"course"`
	Count  int    `bun:"count" json:"count"`
}

type Statistics struct {
	TotalStudents        int           `json:"total_students"`
	StudentsByCourse     []CourseCount `json:"students_by_course"`
	RecentStudents30Days int           `json:"recent_students_30_days"`
}

// dateOnly truncates t to its calendar date at UTC midnight, which is how
// dates come back from the date column.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Models lists the tables this package owns.
func Models() []interface{} {
	return []interface{}{(*Student)(nil)}
}

// Indexes backs the course filter and the default ordering.
func Indexes() []db.Index {
	return []db.Index{
		{Model: (*Student)(nil), Name: "idx_students_course", Columns: []string{"course"}},
		{Model: (*Student)(nil), Name: "idx_students_date_of_joining", Columns: []string{"date_of_joining"}},
	}
}
