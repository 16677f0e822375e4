package student

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"student-records/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const table = "students"

type Repository interface {
	EmailChecker

	List(ctx context.Context, params ListParams) ([]Student, int, error)
	GetByID(ctx context.Context, id int) (*Student, error)
	Create(ctx context.Context, student *Student) error
	CreateMany(ctx context.Context, students []*Student) error
	Update(ctx context.Context, student *Student) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
	CountByCourse(ctx context.Context) ([]CourseCount, error)
	CountJoinedSince(ctx context.Context, since time.Time) (int, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.Metrics
}

func NewRepository(db *bun.DB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// orderable maps the public ordering keys to columns.
var orderable = map[string]string{
	"name":            "s.name",
	"email":           "s.email",
	"course":          "s.course",
	"date_of_joining": "s.date_of_joining",
}

// orderBy resolves an ordering key such as "-name". Unknown keys fall back
// to newest joiners first.
func orderBy(ordering string) string {
	key := strings.TrimSpace(ordering)
	dir := "ASC"
	if strings.HasPrefix(key, "-") {
		key = key[1:]
		dir = "DESC"
	}

	column, ok := orderable[key]
	if !ok {
		return "s.date_of_joining DESC"
	}
	return column + " " + dir
}

var searchable = map[string]string{
	"name":   "s.name",
	"email":  "s.email",
	"phone":  "s.phone",
	"course": "s.course",
}

// searchColumns resolves search field names, dropping unknown ones.
func searchColumns(fields []string) []string {
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}
	columns := make([]string, 0, len(fields))
	for _, field := range fields {
		if column, ok := searchable[field]; ok {
			columns = append(columns, column)
		}
	}
	if len(columns) == 0 {
		return searchColumns(DefaultSearchFields)
	}
	return columns
}

// likePattern wraps term for a substring ILIKE, escaping wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func (r *repository) List(ctx context.Context, params ListParams) ([]Student, int, error) {
	start := time.Now()

	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	page := params.Page
	if page < 1 {
		page = 1
	}

	students := make([]Student, 0, pageSize)
	q := r.db.NewSelect().Model(&students)

	if term := strings.TrimSpace(params.Search); term != "" {
		pattern := likePattern(term)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			for _, column := range searchColumns(params.SearchFields) {
				q = q.WhereOr(column+" ILIKE ?", pattern)
			}
			return q
		})
	}

	if params.Course != "" {
		q = q.Where("s.course = ?", params.Course)
	}
	if !params.JoinedFrom.IsZero() {
		q = q.Where("s.date_of_joining >= ?::date", params.JoinedFrom.Format(DateLayout))
	}
	if !params.JoinedBefore.IsZero() {
		q = q.Where("s.date_of_joining < ?::date", params.JoinedBefore.Format(DateLayout))
	}

	total, err := q.
		OrderExpr(orderBy(params.Ordering)).
		OrderExpr("s.id DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		ScanAndCount(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, 0, err
	}
	return students, total, nil
}

func (r *repository) GetByID(ctx context.Context, id int) (*Student, error) {
	start := time.Now()
	student := new(Student)
	err := r.db.NewSelect().Model(student).Where("s.id = ?", id).Scan(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	return student, nil
}

func (r *repository) EmailExists(ctx context.Context, email string, excludeID int) (bool, error) {
	start := time.Now()
	q := r.db.NewSelect().Model((*Student)(nil)).Where("s.email = ?", email)
	if excludeID > 0 {
		q = q.Where("s.id <> ?", excludeID)
	}
	exists, err := q.Exists(ctx)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	return exists, err
}

func (r *repository) Create(ctx context.Context, student *Student) error {
	start := time.Now()
	_, err := r.db.NewInsert().Model(student).Returning("*").Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)

	return translate(err)
}

// CreateMany inserts every student in one transaction; either all rows
// are written or none.
func (r *repository) CreateMany(ctx context.Context, students []*Student) error {
	if len(students) == 0 {
		return nil
	}

	start := time.Now()
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&students).Returning("*").Exec(ctx)
		return err
	})

	r.metrics.Database.RecordQuery(ctx, "insert", table, time.Since(start), err)

	return translate(err)
}

func (r *repository) Update(ctx context.Context, student *Student) error {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model(student).
		Column("name", "email", "phone", "course", "date_of_joining").
		WherePK().
		Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "update", table, time.Since(start), err)

	if err != nil {
		return translate(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int) error {
	start := time.Now()
	student := &Student{ID: id}
	result, err := r.db.NewDelete().Model(student).WherePK().Exec(ctx)

	r.metrics.Database.RecordQuery(ctx, "delete", table, time.Since(start), err)

	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrStudentNotFound
	}
	return nil
}

func (r *repository) Count(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := r.db.NewSelect().Model((*Student)(nil)).Count(ctx)

	r.metrics.Database.RecordQuery(ctx, "count", table, time.Since(start), err)

	return count, err
}

func (r *repository) CountByCourse(ctx context.Context) ([]CourseCount, error) {
	start := time.Now()
	counts := make([]CourseCount, 0)
	err := r.db.NewSelect().
		Model((*Student)(nil)).
		ColumnExpr("s.course AS course").
		ColumnExpr("count(*) AS count").
		GroupExpr("s.course").
		OrderExpr("count(*) DESC, s.course ASC").
		Scan(ctx, &counts)

	r.metrics.Database.RecordQuery(ctx, "select", table, time.Since(start), err)

	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return counts, nil
}

// CountJoinedSince counts records whose joining date is on or after since.
func (r *repository) CountJoinedSince(ctx context.Context, since time.Time) (int, error) {
	start := time.Now()
	count, err := r.db.NewSelect().
		Model((*Student)(nil)).
		Where("s.date_of_joining >= ?::date", since.Format(DateLayout)).
		Count(ctx)

	r.metrics.Database.RecordQuery(ctx, "count", table, time.Since(start), err)

	return count, err
}

// translate turns the email unique violation into ErrEmailTaken.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) && pgErr.Field('C') == "23505" {
		return fmt.Errorf("%w: %s", ErrEmailTaken, pgErr.Field('M'))
	}
	return err
}
