package student_test

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"student-records/internal/student"
)

// fakeRepository is an in-memory student.Repository.
type fakeRepository struct {
	mu     sync.Mutex
	nextID int
	rows   map[int]student.Student
	err    error

	// beforeCreateMany runs ahead of the batch insert, standing in for a
	// concurrent writer.
	beforeCreateMany func()
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{nextID: 1, rows: make(map[int]student.Student)}
}

func (r *fakeRepository) seed(students ...student.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range students {
		s.ID = r.nextID
		r.nextID++
		r.rows[s.ID] = s
	}
}

func (r *fakeRepository) all() []student.Student {
	out := make([]student.Student, 0, len(r.rows))
	for _, s := range r.rows {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeRepository) EmailExists(_ context.Context, email string, excludeID int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return false, r.err
	}
	for id, s := range r.rows {
		if s.Email == email && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepository) List(_ context.Context, params student.ListParams) ([]student.Student, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, 0, r.err
	}

	fields := params.SearchFields
	if len(fields) == 0 {
		fields = student.DefaultSearchFields
	}
	term := strings.ToLower(strings.TrimSpace(params.Search))
	var matched []student.Student
	for _, s := range r.all() {
		if term != "" && !searchMatches(s, fields, term) {
			continue
		}
		if params.Course != "" && s.Course != params.Course {
			continue
		}
		if !params.JoinedFrom.IsZero() && s.DateOfJoining.Before(params.JoinedFrom) {
			continue
		}
		if !params.JoinedBefore.IsZero() && !s.DateOfJoining.Before(params.JoinedBefore) {
			continue
		}
		matched = append(matched, s)
	}

	key, desc := strings.TrimPrefix(params.Ordering, "-"), strings.HasPrefix(params.Ordering, "-")
	if key != "name" {
		key, desc = "date_of_joining", true
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var cmp int
		if key == "name" {
			cmp = strings.Compare(a.Name, b.Name)
		} else {
			cmp = a.DateOfJoining.Compare(b.DateOfJoining)
		}
		if desc {
			cmp = -cmp
		}
		if cmp == 0 {
			return a.ID > b.ID
		}
		return cmp < 0
	})

	total := len(matched)
	start := (params.Page - 1) * params.PageSize
	if start > total {
		start = total
	}
	end := start + params.PageSize
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

func searchMatches(s student.Student, fields []string, term string) bool {
	values := map[string]string{"name": s.Name, "email": s.Email, "phone": s.Phone, "course": s.Course}
	for _, field := range fields {
		if strings.Contains(strings.ToLower(values[field]), term) {
			return true
		}
	}
	return false
}

func (r *fakeRepository) GetByID(_ context.Context, id int) (*student.Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.rows[id]
	if !ok {
		return nil, student.ErrStudentNotFound
	}
	return &s, nil
}

func (r *fakeRepository) emailTaken(email string, excludeID int) bool {
	for id, s := range r.rows {
		if s.Email == email && id != excludeID {
			return true
		}
	}
	return false
}

func (r *fakeRepository) Create(_ context.Context, s *student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.emailTaken(s.Email, 0) {
		return student.ErrEmailTaken
	}
	s.ID = r.nextID
	r.nextID++
	r.rows[s.ID] = *s
	return nil
}

func (r *fakeRepository) CreateMany(_ context.Context, students []*student.Student) error {
	if r.beforeCreateMany != nil {
		r.beforeCreateMany()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, s := range students {
		if r.emailTaken(s.Email, 0) {
			return student.ErrEmailTaken
		}
	}
	for _, s := range students {
		s.ID = r.nextID
		r.nextID++
		r.rows[s.ID] = *s
	}
	return nil
}

func (r *fakeRepository) Update(_ context.Context, s *student.Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[s.ID]; !ok {
		return student.ErrStudentNotFound
	}
	if r.emailTaken(s.Email, s.ID) {
		return student.ErrEmailTaken
	}
	r.rows[s.ID] = *s
	return nil
}

func (r *fakeRepository) Delete(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if _, ok := r.rows[id]; !ok {
		return student.ErrStudentNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *fakeRepository) Count(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), r.err
}

func (r *fakeRepository) CountByCourse(_ context.Context) ([]student.CourseCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}

	byCourse := map[string]int{}
	for _, s := range r.rows {
		byCourse[s.Course]++
	}
	counts := make([]student.CourseCount, 0, len(byCourse))
	for course, n := range byCourse {
		counts = append(counts, student.CourseCount{Course: course, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Course < counts[j].Course
	})
	return counts, nil
}

func (r *fakeRepository) CountJoinedSince(_ context.Context, since time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.rows {
		if !s.DateOfJoining.Before(since) {
			n++
		}
	}
	return n, r.err
}

// fakePublisher records events and optionally fails every send.
type fakePublisher struct {
	mu     sync.Mutex
	events []student.Event
	fail   bool
}

func (p *fakePublisher) SendMessage(_ context.Context, _ string, value interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker unavailable")
	}
	if event, ok := value.(student.Event); ok {
		p.events = append(p.events, event)
	}
	return nil
}

func (p *fakePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

var fixedNow = time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC)

func date(s string) time.Time {
	t, err := time.Parse(student.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func str(s string) *string { return &s }

func validInput() student.Input {
	return student.Input{
		Name:          str("Ada Lovelace"),
		Email:         str("ada@example.com"),
		Phone:         str("0123456789"),
		Course:        str("Mathematics"),
		DateOfJoining: str("2024-06-01"),
	}
}
