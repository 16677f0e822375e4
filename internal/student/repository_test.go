package student_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"student-records/internal/metrics"
	"student-records/internal/student"
	"student-records/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_Shared(t *testing.T) {
	pgContainer := testdb.SetupSharedPostgres(t)
	defer pgContainer.Cleanup(t)

	pgContainer.RunMigrations(t, student.Indexes(), student.Models()...)

	repo := student.NewRepository(pgContainer.DB, metrics.NewMock())
	ctx := context.Background()

	seed := func(t *testing.T) {
		t.Helper()
		testdb.CleanupTables(t, pgContainer.DB, "students")
		for _, s := range []*student.Student{
			{Name: "Ada Lovelace", Email: "ada@example.com", Phone: "0123456789", Course: "Mathematics", DateOfJoining: date("2024-06-01")},
			{Name: "Alan Turing", Email: "alan@example.com", Phone: "0123456789", Course: "Computer Science", DateOfJoining: date("2024-05-01")},
			{Name: "Grace Hopper", Email: "grace@navy.example.com", Phone: "5550001111", Course: "Computer Science", DateOfJoining: date("2024-05-20")},
			{Name: "100% Coverage", Email: "pct@example.com", Phone: "0123456789", Course: "Testing", DateOfJoining: date("2023-01-01")},
		} {
			require.NoError(t, repo.Create(ctx, s))
		}
	}

	names := func(students []student.Student) []string {
		out := make([]string, 0, len(students))
		for _, s := range students {
			out = append(out, s.Name)
		}
		return out
	}

	t.Run("Create_AssignsID", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		s := &student.Student{Name: "Ada", Email: "ada@example.com", Phone: "0123456789", Course: "Math", DateOfJoining: date("2024-06-01")}
		require.NoError(t, repo.Create(ctx, s))
		assert.Equal(t, 1, s.ID)

		got, err := repo.GetByID(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024-06-01", got.JoinedOn())
	})

	t.Run("GetByID_NotFound", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		_, err := repo.GetByID(ctx, 404)
		assert.ErrorIs(t, err, student.ErrStudentNotFound)
	})

	t.Run("List_DefaultOrdering", func(t *testing.T) {
		seed(t)

		students, total, err := repo.List(ctx, student.ListParams{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"Ada Lovelace", "Grace Hopper", "Alan Turing", "100% Coverage"}, names(students))
	})

	t.Run("List_SearchAcrossFields", func(t *testing.T) {
		seed(t)

		students, total, err := repo.List(ctx, student.ListParams{Search: "navy", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, []string{"Grace Hopper"}, names(students))

		students, _, err = repo.List(ctx, student.ListParams{Search: "computer", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"Alan Turing", "Grace Hopper"}, names(students))
	})

	t.Run("List_SearchEscapesWildcards", func(t *testing.T) {
		seed(t)

		students, _, err := repo.List(ctx, student.ListParams{Search: "%", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"100% Coverage"}, names(students))
	})

	t.Run("List_CourseFilterAndOrdering", func(t *testing.T) {
		seed(t)

		students, total, err := repo.List(ctx, student.ListParams{Course: "Computer Science", Ordering: "name", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"Alan Turing", "Grace Hopper"}, names(students))
	})

	t.Run("List_SearchFields", func(t *testing.T) {
		seed(t)

		students, _, err := repo.List(ctx, student.ListParams{Search: "555000", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Empty(t, students)

		students, _, err = repo.List(ctx, student.ListParams{Search: "555000", SearchFields: student.AdminSearchFields, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Grace Hopper"}, names(students))

		// course is not an admin search field
		students, _, err = repo.List(ctx, student.ListParams{Search: "testing", SearchFields: student.AdminSearchFields, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Empty(t, students)
	})

	t.Run("List_JoinedRange", func(t *testing.T) {
		seed(t)

		students, total, err := repo.List(ctx, student.ListParams{
			JoinedFrom:   date("2024-05-01"),
			JoinedBefore: date("2024-06-01"),
			Page:         1,
			PageSize:     10,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"Grace Hopper", "Alan Turing"}, names(students))

		students, _, err = repo.List(ctx, student.ListParams{JoinedFrom: date("2024-06-01"), Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"Ada Lovelace"}, names(students))
	})

	t.Run("List_Pagination", func(t *testing.T) {
		seed(t)

		students, total, err := repo.List(ctx, student.ListParams{Ordering: "-name", Page: 2, PageSize: 3})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Equal(t, []string{"100% Coverage"}, names(students))
	})

	t.Run("EmailExists", func(t *testing.T) {
		seed(t)

		exists, err := repo.EmailExists(ctx, "ada@example.com", 0)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = repo.EmailExists(ctx, "ada@example.com", 1)
		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("Create_DuplicateEmail", func(t *testing.T) {
		seed(t)

		err := repo.Create(ctx, &student.Student{Name: "Copy", Email: "ada@example.com", Phone: "0123456789", Course: "Math", DateOfJoining: date("2024-01-01")})
		assert.ErrorIs(t, err, student.ErrEmailTaken)
	})

	t.Run("Create_ConcurrentSameEmail", func(t *testing.T) {
		testdb.CleanupTables(t, pgContainer.DB, "students")

		var wg sync.WaitGroup
		errs := make([]error, 5)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = repo.Create(ctx, &student.Student{Name: "Racer", Email: "race@example.com", Phone: "0123456789", Course: "Math", DateOfJoining: date("2024-01-01")})
			}(i)
		}
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			if err == nil {
				succeeded++
				continue
			}
			assert.ErrorIs(t, err, student.ErrEmailTaken)
		}
		assert.Equal(t, 1, succeeded)
	})

	t.Run("CreateMany_RollsBack", func(t *testing.T) {
		seed(t)

		err := repo.CreateMany(ctx, []*student.Student{
			{Name: "New", Email: "new@example.com", Phone: "0123456789", Course: "Math", DateOfJoining: date("2024-01-01")},
			{Name: "Copy", Email: "ada@example.com", Phone: "0123456789", Course: "Math", DateOfJoining: date("2024-01-01")},
		})
		assert.ErrorIs(t, err, student.ErrEmailTaken)

		count, err := repo.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, count)
	})

	t.Run("Update", func(t *testing.T) {
		seed(t)

		s, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		s.Course = "Physics"
		require.NoError(t, repo.Update(ctx, s))

		got, err := repo.GetByID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "Physics", got.Course)

		assert.ErrorIs(t, repo.Update(ctx, &student.Student{ID: 999, Email: "x@example.com"}), student.ErrStudentNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		seed(t)

		require.NoError(t, repo.Delete(ctx, 1))
		assert.ErrorIs(t, repo.Delete(ctx, 1), student.ErrStudentNotFound)
	})

	t.Run("Statistics", func(t *testing.T) {
		seed(t)

		counts, err := repo.CountByCourse(ctx)
		require.NoError(t, err)
		assert.Equal(t, []student.CourseCount{
			{Course: "Computer Science", Count: 2},
			{Course: "Mathematics", Count: 1},
			{Course: "Testing", Count: 1},
		}, counts)

		recent, err := repo.CountJoinedSince(ctx, time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC))
		require.NoError(t, err)
		assert.Equal(t, 2, recent)
	})
}
