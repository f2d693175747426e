package models

import "time"

// Course represents a catalog entry owned by a teacher.
type Course struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Category    string    `db:"category" json:"category"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CourseDetail is a catalog row joined with its instructor and counts.
type CourseDetail struct {
	Course
	TeacherName   string `db:"teacher_name" json:"teacher_name"`
	EnrolledCount int    `db:"enrolled_count" json:"enrolled_count"`
	Enrolled      bool   `db:"enrolled" json:"enrolled"`
}

// CourseFilter captures catalog filtering: substring search over title and
// instructor name, exact category match, and an "only my enrollments" toggle.
type CourseFilter struct {
	Search       string
	Category     string
	EnrolledOnly bool
	TeacherID    string
	ViewerID     string
	Page         int
	PageSize     int
}

// CreateCourseRequest creates a catalog entry. Teacher only.
type CreateCourseRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,min=1,max=80"`
}

// UpdateCourseRequest edits a catalog entry. Owning teacher only.
type UpdateCourseRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Category    string `json:"category" validate:"required,min=1,max=80"`
}

// Enrollment links a student to a course.
type Enrollment struct {
	ID        string    `db:"id" json:"id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	JoinedAt  time.Time `db:"joined_at" json:"joined_at"`
}

// RosterEntry is one student row of a course roster.
type RosterEntry struct {
	StudentID   string    `db:"student_id" json:"student_id"`
	StudentName string    `db:"student_name" json:"student_name"`
	Email       string    `db:"email" json:"email"`
	JoinedAt    time.Time `db:"joined_at" json:"joined_at"`
}
