package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/campus/internal/models"
)

func newCourseMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestCourseRepositoryList(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"id", "title", "description", "category", "teacher_id", "created_at", "updated_at", "teacher_name", "enrolled_count", "enrolled"}).
		AddRow("c1", "Algebra", "Linear equations", "math", "t1", time.Now(), time.Now(), "Grace", 12, true)
	mock.ExpectQuery("SELECT c.id, c.title, .+ FROM courses c").
		WithArgs("u1", "%alg%").
		WillReturnRows(rows)
	// The count query drops the SELECT list, so the viewer ID is not bound.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses c\nLEFT JOIN users u ON u.id = c.teacher_id WHERE (LOWER(c.title) LIKE $1 OR LOWER(u.name) LIKE $1)")).
		WithArgs("%alg%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{ViewerID: "u1", Search: "Alg"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, "Algebra", courses[0].Title)
	assert.Equal(t, "Grace", courses[0].TeacherName)
	assert.True(t, courses[0].Enrolled)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Every placeholder in the issued SQL must be backed by a bound argument, or
// Postgres rejects the statement. sqlmock does not enforce placeholder counts
// by itself, so each case pins the exact count SQL and its exact arguments.
func TestCourseRepositoryListCountBindsOnlyReferencedArgs(t *testing.T) {
	listSQL := "SELECT c.id, c.title, .+ FROM courses c"
	countBase := "SELECT COUNT(*) FROM courses c\nLEFT JOIN users u ON u.id = c.teacher_id"

	cases := []struct {
		name      string
		filter    models.CourseFilter
		listArgs  []driver.Value
		countSQL  string
		countArgs []driver.Value
	}{
		{
			name:      "no filters binds nothing",
			filter:    models.CourseFilter{ViewerID: "u1"},
			listArgs:  []driver.Value{"u1"},
			countSQL:  countBase,
			countArgs: []driver.Value{},
		},
		{
			name:      "teacher filter binds only the teacher",
			filter:    models.CourseFilter{ViewerID: "t1", TeacherID: "t1"},
			listArgs:  []driver.Value{"t1", "t1"},
			countSQL:  countBase + " WHERE c.teacher_id = $1",
			countArgs: []driver.Value{"t1"},
		},
		{
			name:      "enrolled-only renumbers the viewer placeholder",
			filter:    models.CourseFilter{ViewerID: "u1", Category: "math", EnrolledOnly: true},
			listArgs:  []driver.Value{"u1", "math"},
			countSQL:  countBase + " WHERE c.category = $1 AND EXISTS (SELECT 1 FROM enrollments e2 WHERE e2.course_id = c.id AND e2.student_id = $2)",
			countArgs: []driver.Value{"math", "u1"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newCourseMock(t)
			defer cleanup()
			repo := NewCourseRepository(db)

			mock.ExpectQuery(listSQL).
				WithArgs(tc.listArgs...).
				WillReturnRows(sqlmock.NewRows([]string{"id"}))
			mock.ExpectQuery(regexp.QuoteMeta(tc.countSQL)).
				WithArgs(tc.countArgs...).
				WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

			_, total, err := repo.List(context.Background(), tc.filter)
			require.NoError(t, err)
			assert.Equal(t, 0, total)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCourseRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery("SELECT id, title, .+ FROM courses WHERE id").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO courses").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{Title: "Geometry", Category: "math", TeacherID: "t1"}
	require.NoError(t, repo.Create(context.Background(), course))
	assert.NotEmpty(t, course.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryEnrollIsIdempotent(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	// A repeat insert hits the conflict clause and touches zero rows.
	mock.ExpectExec("INSERT INTO enrollments").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Enroll(context.Background(), &models.Enrollment{CourseID: "c1", StudentID: "s1"}))
	require.NoError(t, repo.Enroll(context.Background(), &models.Enrollment{CourseID: "c1", StudentID: "s1"}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryUnenroll(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectExec("DELETE FROM enrollments").
		WithArgs("c1", "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Unenroll(context.Background(), "c1", "s1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryRoster(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	rows := sqlmock.NewRows([]string{"student_id", "student_name", "email", "joined_at"}).
		AddRow("s1", "Ada", "ada@example.com", time.Now())
	mock.ExpectQuery("SELECT e.student_id, u.name AS student_name, u.email, e.joined_at").
		WithArgs("c1").
		WillReturnRows(rows)

	roster, err := repo.Roster(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Ada", roster[0].StudentName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCountStudents(t *testing.T) {
	db, mock, cleanup := newCourseMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.teacher_id = $1")).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	total, err := repo.CountStudents(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
