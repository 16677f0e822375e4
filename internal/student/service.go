package student

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"time"
)

const (
	EventCreated     = "student.created"
	EventUpdated     = "student.updated"
	EventDeleted     = "student.deleted"
	EventBulkCreated = "student.bulk_created"
)

// Event is published after a write has been committed.
type Event struct {
	Type       string    `json:"type"`
	StudentID  int       `json:"student_id"`
	Email      string    `json:"email,omitempty"`
	Course     string    `json:"course,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher is satisfied by the messaging producers.
type Publisher interface {
	SendMessage(ctx context.Context, key string, value interface{}) error
}

type Service interface {
	List(ctx context.Context, params ListParams) (*Page, error)
	Get(ctx context.Context, id int) (*Student, error)
	Create(ctx context.Context, in Input) (*Student, error)
	Update(ctx context.Context, id int, in Input, partial bool) (*Student, error)
	Delete(ctx context.Context, id int) error
	Statistics(ctx context.Context) (*Statistics, error)
	BulkCreate(ctx context.Context, items []Input) ([]*Student, error)
	// Courses lists the distinct course names in alphabetical order.
	Courses(ctx context.Context) ([]string, error)
	// Today is the date computed fields are relative to.
	Today() time.Time
}

type service struct {
	repo      Repository
	validator *Validator
	events    Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

func NewService(repo Repository, events Publisher, logger *slog.Logger, opts ...Option) Service {
	s := &service{
		repo:   repo,
		events: events,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.validator = NewValidator(repo, s.now)
	return s
}

func (s *service) Today() time.Time {
	return s.validator.Today()
}

func (s *service) List(ctx context.Context, params ListParams) (*Page, error) {
	if params.Page < 1 {
		return nil, ErrInvalidPage
	}
	if params.PageSize <= 0 {
		params.PageSize = DefaultPageSize
	}
	// the row offset of such a page does not fit in an int
	if params.Page > math.MaxInt/params.PageSize {
		return nil, ErrInvalidPage
	}

	students, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, err
	}

	// page 1 of an empty collection is fine, anything past the end is not
	if params.Page > 1 && (params.Page-1)*params.PageSize >= total {
		return nil, ErrInvalidPage
	}

	return &Page{
		Students: students,
		Total:    total,
		Number:   params.Page,
		PageSize: params.PageSize,
	}, nil
}

func (s *service) Get(ctx context.Context, id int) (*Student, error) {
	if id <= 0 {
		return nil, ErrStudentNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *service) Create(ctx context.Context, in Input) (*Student, error) {
	changes, err := s.validator.Validate(ctx, in, 0, false)
	if err != nil {
		return nil, err
	}

	student := &Student{}
	changes.Apply(student)

	if err := s.repo.Create(ctx, student); err != nil {
		return nil, emailTakenAsValidation(err)
	}

	s.publish(ctx, EventCreated, student)
	return student, nil
}

func (s *service) Update(ctx context.Context, id int, in Input, partial bool) (*Student, error) {
	student, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changes, err := s.validator.Validate(ctx, in, student.ID, partial)
	if err != nil {
		return nil, err
	}
	changes.Apply(student)

	if err := s.repo.Update(ctx, student); err != nil {
		return nil, emailTakenAsValidation(err)
	}

	s.publish(ctx, EventUpdated, student)
	return student, nil
}

func (s *service) Delete(ctx context.Context, id int) error {
	if id <= 0 {
		return ErrStudentNotFound
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.publish(ctx, EventDeleted, &Student{ID: id})
	return nil
}

func (s *service) Statistics(ctx context.Context) (*Statistics, error) {
	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, err
	}

	byCourse, err := s.repo.CountByCourse(ctx)
	if err != nil {
		return nil, err
	}
	if byCourse == nil {
		byCourse = []CourseCount{}
	}

	since := s.Today().AddDate(0, 0, -RecentWindowDays)
	recent, err := s.repo.CountJoinedSince(ctx, since)
	if err != nil {
		return nil, err
	}

	return &Statistics{
		TotalStudents:        total,
		StudentsByCourse:     byCourse,
		RecentStudents30Days: recent,
	}, nil
}

func (s *service) Courses(ctx context.Context) ([]string, error) {
	counts, err := s.repo.CountByCourse(ctx)
	if err != nil {
		return nil, err
	}

	courses := make([]string, 0, len(counts))
	for _, c := range counts {
		courses = append(courses, c.Course)
	}
	sort.Strings(courses)
	return courses, nil
}

// BulkCreate validates the whole batch before writing anything. A single
// invalid item, including an email repeated inside the batch, rejects the
// batch with a *BulkValidationError.
func (s *service) BulkCreate(ctx context.Context, items []Input) ([]*Student, error) {
	students := make([]*Student, 0, len(items))
	report := make([]map[string][]string, len(items))
	seen := make(map[string]int, len(items))
	failed := false

	for i, in := range items {
		report[i] = map[string][]string{}

		changes, err := s.validator.Validate(ctx, in, 0, false)
		if err != nil {
			var verr *ValidationError
			if !errors.As(err, &verr) {
				return nil, err
			}
			report[i] = verr.Fields
			failed = true
			continue
		}

		if _, dup := seen[*changes.Email]; dup {
			report[i]["email"] = []string{msgEmailTaken}
			failed = true
			continue
		}
		seen[*changes.Email] = i

		student := &Student{}
		changes.Apply(student)
		students = append(students, student)
	}

	if failed {
		return nil, &BulkValidationError{Items: report}
	}

	if err := s.repo.CreateMany(ctx, students); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, s.bulkEmailTaken(ctx, students, err)
		}
		return nil, err
	}

	for _, student := range students {
		s.publish(ctx, EventBulkCreated, student)
	}
	return students, nil
}

// bulkEmailTaken reports a unique-constraint race inside a batch per item.
// The transaction rolled back, so any email that exists now was taken by
// a concurrent writer. When none is found every item is flagged.
func (s *service) bulkEmailTaken(ctx context.Context, students []*Student, cause error) error {
	report := make([]map[string][]string, len(students))
	found := false
	for i, student := range students {
		report[i] = map[string][]string{}
		exists, err := s.repo.EmailExists(ctx, student.Email, 0)
		if err != nil {
			return errors.Join(cause, err)
		}
		if exists {
			report[i]["email"] = []string{msgEmailTaken}
			found = true
		}
	}
	if !found {
		for i := range report {
			report[i]["email"] = []string{msgEmailTaken}
		}
	}
	return &BulkValidationError{Items: report}
}

// emailTakenAsValidation reports a unique-constraint race the same way
// as the pre-write check.
func emailTakenAsValidation(err error) error {
	if errors.Is(err, ErrEmailTaken) {
		verr := NewValidationError()
		verr.Add("email", msgEmailTaken)
		return verr
	}
	return err
}

func (s *service) publish(ctx context.Context, eventType string, student *Student) {
	if s.events == nil {
		return
	}

	event := Event{
		Type:       eventType,
		StudentID:  student.ID,
		Email:      student.Email,
		Course:     student.Course,
		OccurredAt: s.now().UTC(),
	}

	// the write is already committed; a lost event is logged, not returned
	if err := s.events.SendMessage(ctx, strconv.Itoa(student.ID), event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish student event",
			"type", eventType,
			"student_id", student.ID,
			"error", err,
		)
	}
}
