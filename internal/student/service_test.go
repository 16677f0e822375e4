package student_test

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"student-records/internal/logger"
	"student-records/internal/student"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(repo *fakeRepository, pub *fakePublisher) student.Service {
	return student.NewService(repo, pub, logger.NewNop(), student.WithClock(func() time.Time { return fixedNow }))
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *student.ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr.Fields
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Valid", func(t *testing.T) {
		repo, pub := newFakeRepository(), &fakePublisher{}
		svc := newService(repo, pub)

		in := validInput()
		in.Name = str("  Ada Lovelace  ")

		created, err := svc.Create(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, 1, created.ID)
		assert.Equal(t, "Ada Lovelace", created.Name)
		assert.Equal(t, "2024-06-01", created.JoinedOn())
		assert.Equal(t, []string{student.EventCreated}, pub.types())
	})

	t.Run("MissingFields", func(t *testing.T) {
		repo, pub := newFakeRepository(), &fakePublisher{}
		svc := newService(repo, pub)

		_, err := svc.Create(ctx, student.Input{})
		fields := fieldErrors(t, err)

		for _, f := range []string{"name", "email", "phone", "course", "date_of_joining"} {
			assert.Equal(t, []string{"This field is required."}, fields[f], f)
		}
		assert.Empty(t, repo.rows)
		assert.Empty(t, pub.types())
	})

	t.Run("BlankName", func(t *testing.T) {
		svc := newService(newFakeRepository(), &fakePublisher{})

		in := validInput()
		in.Name = str("   ")

		_, err := svc.Create(ctx, in)
		assert.Equal(t, []string{"This field may not be blank."}, fieldErrors(t, err)["name"])
	})

	t.Run("NameTooLong", func(t *testing.T) {
		svc := newService(newFakeRepository(), &fakePublisher{})

		in := validInput()
		in.Name = str(strings.Repeat("a", 101))

		_, err := svc.Create(ctx, in)
		assert.Equal(t, []string{"Ensure this field has no more than 100 characters."}, fieldErrors(t, err)["name"])
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		svc := newService(newFakeRepository(), &fakePublisher{})

		in := validInput()
		in.Email = str("not-an-email")

		_, err := svc.Create(ctx, in)
		assert.Equal(t, []string{"Enter a valid email address."}, fieldErrors(t, err)["email"])
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		repo := newFakeRepository()
		repo.seed(student.Student{Name: "Existing", Email: "ada@example.com", Phone: "1111111111", Course: "Physics", DateOfJoining: date("2024-01-01")})
		svc := newService(repo, &fakePublisher{})

		_, err := svc.Create(ctx, validInput())
		assert.Equal(t, []string{"A student with this email already exists."}, fieldErrors(t, err)["email"])
		assert.Len(t, repo.rows, 1)
	})

	t.Run("PhoneMessages", func(t *testing.T) {
		tests := []struct {
			phone string
			want  []string
		}{
			{"12ab", []string{"Phone number must contain only digits.", "Phone number must be exactly 10 digits."}},
			{"123456789", []string{"Phone number must be exactly 10 digits."}},
			{"12345abcde", []string{"Phone number must contain only digits."}},
			{"+123456789", []string{"Phone number must contain only digits."}},
		}

		for _, tt := range tests {
			svc := newService(newFakeRepository(), &fakePublisher{})
			in := validInput()
			in.Phone = str(tt.phone)

			_, err := svc.Create(ctx, in)
			assert.Equal(t, tt.want, fieldErrors(t, err)["phone"], "phone=%q", tt.phone)
		}
	})

	t.Run("JoiningDate", func(t *testing.T) {
		tests := []struct {
			value string
			want  []string
		}{
			{"2024-06-15", nil},
			{"2024-06-16", []string{"Date of joining cannot be in the future."}},
			{"15/06/2024", []string{"Date has wrong format. Use one of these formats instead: YYYY-MM-DD."}},
		}

		for _, tt := range tests {
			svc := newService(newFakeRepository(), &fakePublisher{})
			in := validInput()
			in.DateOfJoining = str(tt.value)

			_, err := svc.Create(ctx, in)
			if tt.want == nil {
				assert.NoError(t, err, "date=%q", tt.value)
				continue
			}
			assert.Equal(t, tt.want, fieldErrors(t, err)["date_of_joining"], "date=%q", tt.value)
		}
	})

	t.Run("PublishFailureKeepsRecord", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newService(repo, &fakePublisher{fail: true})

		created, err := svc.Create(ctx, validInput())
		require.NoError(t, err)
		assert.Contains(t, repo.rows, created.ID)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		repo := newFakeRepository()
		repo.err = errors.New("connection reset")
		svc := newService(repo, &fakePublisher{})

		_, err := svc.Create(ctx, validInput())
		require.Error(t, err)
		var verr *student.ValidationError
		assert.False(t, errors.As(err, &verr))
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()

	seeded := func() *fakeRepository {
		repo := newFakeRepository()
		repo.seed(
			student.Student{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "0123456789", Course: "Mathematics", DateOfJoining: date("2024-06-01")},
			student.Student{Name: "Alan Turing", Email: "alan@example.com", Phone: "9876543210", Course: "Computer Science", DateOfJoining: date("2024-05-01")},
		)
		return repo
	}

	t.Run("KeepOwnEmail", func(t *testing.T) {
		pub := &fakePublisher{}
		svc := newService(seeded(), pub)

		in := validInput()
		in.Course = str("Physics")

		updated, err := svc.Update(ctx, 1, in, false)
		require.NoError(t, err)
		assert.Equal(t, "Physics", updated.Course)
		assert.Equal(t, []string{student.EventUpdated}, pub.types())
	})

	t.Run("TakeOtherEmail", func(t *testing.T) {
		svc := newService(seeded(), &fakePublisher{})

		in := validInput()
		in.Email = str("alan@example.com")

		_, err := svc.Update(ctx, 1, in, false)
		assert.Equal(t, []string{"A student with this email already exists."}, fieldErrors(t, err)["email"])
	})

	t.Run("FullUpdateRequiresEveryField", func(t *testing.T) {
		svc := newService(seeded(), &fakePublisher{})

		_, err := svc.Update(ctx, 1, student.Input{Phone: str("1112223334")}, false)
		fields := fieldErrors(t, err)
		assert.Contains(t, fields, "name")
		assert.NotContains(t, fields, "phone")
	})

	t.Run("Partial", func(t *testing.T) {
		repo := seeded()
		svc := newService(repo, &fakePublisher{})

		updated, err := svc.Update(ctx, 1, student.Input{Phone: str("1112223334")}, true)
		require.NoError(t, err)
		assert.Equal(t, "1112223334", updated.Phone)
		assert.Equal(t, "Ada Lovelace", updated.Name)
		assert.Equal(t, "1112223334", repo.rows[1].Phone)
	})

	t.Run("PartialStillValidates", func(t *testing.T) {
		svc := newService(seeded(), &fakePublisher{})

		_, err := svc.Update(ctx, 1, student.Input{Phone: str("123")}, true)
		assert.Equal(t, []string{"Phone number must be exactly 10 digits."}, fieldErrors(t, err)["phone"])
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := newService(seeded(), &fakePublisher{})

		_, err := svc.Update(ctx, 99, validInput(), false)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	repo, pub := newFakeRepository(), &fakePublisher{}
	repo.seed(student.Student{Name: "Ada", Email: "ada@example.com", Phone: "0123456789", Course: "Mathematics", DateOfJoining: date("2024-06-01")})
	svc := newService(repo, pub)

	require.NoError(t, svc.Delete(ctx, 1))
	assert.Empty(t, repo.rows)
	assert.Equal(t, []string{student.EventDeleted}, pub.types())

	assert.ErrorIs(t, svc.Delete(ctx, 1), student.ErrStudentNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 0), student.ErrStudentNotFound)
}

func TestService_List(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	for i := 0; i < 12; i++ {
		repo.seed(student.Student{
			Name:          "Student",
			Email:         strings.Repeat("x", i+1) + "@example.com",
			Phone:         "0123456789",
			Course:        "Biology",
			DateOfJoining: date("2024-01-01").AddDate(0, 0, i),
		})
	}
	svc := newService(repo, &fakePublisher{})

	t.Run("FirstPage", func(t *testing.T) {
		page, err := svc.List(ctx, student.ListParams{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 12, page.Total)
		assert.Len(t, page.Students, 10)
		assert.True(t, page.HasNext())
		assert.False(t, page.HasPrevious())
		assert.Equal(t, 2, page.NumPages())
		// newest joiner first
		assert.Equal(t, "2024-01-12", page.Students[0].JoinedOn())
	})

	t.Run("LastPage", func(t *testing.T) {
		page, err := svc.List(ctx, student.ListParams{Page: 2, PageSize: 10})
		require.NoError(t, err)
		assert.Len(t, page.Students, 2)
		assert.False(t, page.HasNext())
		assert.True(t, page.HasPrevious())
	})

	t.Run("PastTheEnd", func(t *testing.T) {
		_, err := svc.List(ctx, student.ListParams{Page: 3, PageSize: 10})
		assert.ErrorIs(t, err, student.ErrInvalidPage)
	})

	t.Run("ZeroPage", func(t *testing.T) {
		_, err := svc.List(ctx, student.ListParams{Page: 0, PageSize: 10})
		assert.ErrorIs(t, err, student.ErrInvalidPage)
	})

	t.Run("OffsetOverflow", func(t *testing.T) {
		_, err := svc.List(ctx, student.ListParams{Page: math.MaxInt / 10, PageSize: 10})
		assert.ErrorIs(t, err, student.ErrInvalidPage)

		_, err = svc.List(ctx, student.ListParams{Page: math.MaxInt/10 + 1, PageSize: 10})
		assert.ErrorIs(t, err, student.ErrInvalidPage)
	})

	t.Run("EmptyFirstPage", func(t *testing.T) {
		empty := newService(newFakeRepository(), &fakePublisher{})
		page, err := empty.List(ctx, student.ListParams{Page: 1})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Total)
		assert.Equal(t, student.DefaultPageSize, page.PageSize)
	})
}

func TestService_Statistics(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepository()
	repo.seed(
		student.Student{Name: "A", Email: "a@example.com", Phone: "0123456789", Course: "Physics", DateOfJoining: date("2024-06-15")},
		student.Student{Name: "B", Email: "b@example.com", Phone: "0123456789", Course: "Biology", DateOfJoining: date("2024-05-16")},
		student.Student{Name: "C", Email: "c@example.com", Phone: "0123456789", Course: "Physics", DateOfJoining: date("2024-05-15")},
		student.Student{Name: "D", Email: "d@example.com", Phone: "0123456789", Course: "Art", DateOfJoining: date("2023-01-01")},
	)
	svc := newService(repo, &fakePublisher{})

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalStudents)
	assert.Equal(t, []student.CourseCount{
		{Course: "Physics", Count: 2},
		{Course: "Art", Count: 1},
		{Course: "Biology", Count: 1},
	}, stats.StudentsByCourse)
	// 2024-05-16 is exactly 30 days before the fixed clock
	assert.Equal(t, 2, stats.RecentStudents30Days)

	empty, err := newService(newFakeRepository(), &fakePublisher{}).Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalStudents)
	assert.NotNil(t, empty.StudentsByCourse)
}

func TestService_Courses(t *testing.T) {
	repo := newFakeRepository()
	repo.seed(
		student.Student{Name: "A", Email: "a@example.com", Phone: "0123456789", Course: "Physics", DateOfJoining: date("2024-06-01")},
		student.Student{Name: "B", Email: "b@example.com", Phone: "0123456789", Course: "Art", DateOfJoining: date("2024-06-01")},
		student.Student{Name: "C", Email: "c@example.com", Phone: "0123456789", Course: "Physics", DateOfJoining: date("2024-06-01")},
	)

	courses, err := newService(repo, &fakePublisher{}).Courses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Art", "Physics"}, courses)
}

func TestService_BulkCreate(t *testing.T) {
	ctx := context.Background()

	second := func() student.Input {
		in := validInput()
		in.Name = str("Grace Hopper")
		in.Email = str("grace@example.com")
		return in
	}

	t.Run("AllValid", func(t *testing.T) {
		repo, pub := newFakeRepository(), &fakePublisher{}
		svc := newService(repo, pub)

		created, err := svc.BulkCreate(ctx, []student.Input{validInput(), second()})
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.NotZero(t, created[0].ID)
		assert.NotZero(t, created[1].ID)
		assert.Len(t, repo.rows, 2)
		assert.Equal(t, []string{student.EventBulkCreated, student.EventBulkCreated}, pub.types())
	})

	t.Run("OneInvalidWritesNothing", func(t *testing.T) {
		repo, pub := newFakeRepository(), &fakePublisher{}
		svc := newService(repo, pub)

		bad := second()
		bad.Phone = str("abc")

		_, err := svc.BulkCreate(ctx, []student.Input{validInput(), bad})

		var berr *student.BulkValidationError
		require.True(t, errors.As(err, &berr))
		require.Len(t, berr.Items, 2)
		assert.Empty(t, berr.Items[0])
		assert.Contains(t, berr.Items[1], "phone")
		assert.Empty(t, repo.rows)
		assert.Empty(t, pub.types())
	})

	t.Run("DuplicateInsideBatch", func(t *testing.T) {
		repo := newFakeRepository()
		svc := newService(repo, &fakePublisher{})

		_, err := svc.BulkCreate(ctx, []student.Input{validInput(), validInput()})

		var berr *student.BulkValidationError
		require.True(t, errors.As(err, &berr))
		assert.Empty(t, berr.Items[0])
		assert.Equal(t, []string{"A student with this email already exists."}, berr.Items[1]["email"])
		assert.Empty(t, repo.rows)
	})

	t.Run("EmailTakenConcurrently", func(t *testing.T) {
		repo, pub := newFakeRepository(), &fakePublisher{}
		repo.beforeCreateMany = func() {
			repo.seed(student.Student{Name: "Other", Email: "grace@example.com", Phone: "0123456789", Course: "Art", DateOfJoining: date("2024-01-01")})
		}
		svc := newService(repo, pub)

		_, err := svc.BulkCreate(ctx, []student.Input{validInput(), second()})

		var berr *student.BulkValidationError
		require.True(t, errors.As(err, &berr), "expected *BulkValidationError, got %v", err)
		require.Len(t, berr.Items, 2)
		assert.Empty(t, berr.Items[0])
		assert.Equal(t, []string{"A student with this email already exists."}, berr.Items[1]["email"])
		assert.Len(t, repo.rows, 1)
		assert.Empty(t, pub.types())
	})

	t.Run("EmptyList", func(t *testing.T) {
		svc := newService(newFakeRepository(), &fakePublisher{})

		created, err := svc.BulkCreate(ctx, []student.Input{})
		require.NoError(t, err)
		assert.Empty(t, created)
	})
}

func TestStudent_DaysSinceJoining(t *testing.T) {
	s := &student.Student{DateOfJoining: date("2024-06-01")}

	days := s.DaysSinceJoining(fixedNow)
	require.NotNil(t, days)
	assert.Equal(t, 14, *days)

	assert.Nil(t, (&student.Student{}).DaysSinceJoining(fixedNow))
	assert.Equal(t, "/7/", (&student.Student{ID: 7}).URL())
}
