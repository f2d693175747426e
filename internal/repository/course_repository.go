package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campusworks/campus/internal/models"
)

// CourseRepository handles persistence of courses and enrollments.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns catalog rows filtered by the provided criteria. The viewer ID
// drives the per-user "enrolled" flag. The list and count queries carry their
// own argument lists so each binds exactly the placeholders it references.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c
LEFT JOIN users u ON u.id = c.teacher_id`

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	// The SELECT list references $1 for the enrolled flag, so the viewer ID
	// is always the first argument here.
	listClause, listArgs := catalogFilterClause(filter, []interface{}{filter.ViewerID}, 1)
	query := fmt.Sprintf(`SELECT c.id, c.title, c.description, c.category, c.teacher_id, c.created_at, c.updated_at,
        u.name AS teacher_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count,
        EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $1) AS enrolled
        %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d`, base+listClause, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, listArgs...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	// The count query has no SELECT-list reference to the viewer, so it only
	// binds the viewer ID when the enrollment condition needs it.
	countClause, countArgs := catalogFilterClause(filter, nil, 0)
	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+countClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// catalogFilterClause renders the WHERE clause for a catalog filter on top of
// an existing argument list. viewerArg names the placeholder already bound to
// the viewer ID; when zero, the viewer is appended only if the enrollment
// condition needs it.
func catalogFilterClause(filter models.CourseFilter, args []interface{}, viewerArg int) (string, []interface{}) {
	var conditions []string

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(u.name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("c.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.EnrolledOnly {
		if viewerArg == 0 {
			args = append(args, filter.ViewerID)
			viewerArg = len(args)
		}
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e2 WHERE e2.course_id = c.id AND e2.student_id = $%d)", viewerArg))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

// FindByID returns a course by its ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	const query = `SELECT id, title, description, category, teacher_id, created_at, updated_at FROM courses WHERE id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find course by id: %w", err)
	}
	return &course, nil
}

// Create inserts a new catalog entry.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, title, description, category, teacher_id, created_at, updated_at)
VALUES (:id, :title, :description, :category, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update edits mutable course fields.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, category = :category, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Enroll inserts an enrollment row; enrolling twice is a no-op.
func (r *CourseRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.JoinedAt.IsZero() {
		enrollment.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO enrollments (id, course_id, student_id, joined_at)
VALUES (:id, :course_id, :student_id, :joined_at)
ON CONFLICT (course_id, student_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("enroll: %w", err)
	}
	return nil
}

// Unenroll removes the enrollment row if present.
func (r *CourseRepository) Unenroll(ctx context.Context, courseID, studentID string) error {
	const query = `DELETE FROM enrollments WHERE course_id = $1 AND student_id = $2`
	if _, err := r.db.ExecContext(ctx, query, courseID, studentID); err != nil {
		return fmt.Errorf("unenroll: %w", err)
	}
	return nil
}

// IsEnrolled reports whether the student has an enrollment for the course.
func (r *CourseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE course_id = $1 AND student_id = $2)`
	var enrolled bool
	if err := r.db.GetContext(ctx, &enrolled, query, courseID, studentID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}

// Roster returns the students enrolled in a course, oldest enrollment first.
func (r *CourseRepository) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	const query = `SELECT e.student_id, u.name AS student_name, u.email, e.joined_at
FROM enrollments e
JOIN users u ON u.id = e.student_id
WHERE e.course_id = $1
ORDER BY e.joined_at ASC`
	var roster []models.RosterEntry
	if err := r.db.SelectContext(ctx, &roster, query, courseID); err != nil {
		return nil, fmt.Errorf("course roster: %w", err)
	}
	return roster, nil
}

// CountStudents returns the number of distinct students across a teacher's courses.
func (r *CourseRepository) CountStudents(ctx context.Context, teacherID string) (int, error) {
	const query = `SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.teacher_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, teacherID); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return total, nil
}
