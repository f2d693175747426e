package models

// StudentDashboard summarises the landing view for a student.
type StudentDashboard struct {
	EnrolledCourses []CourseDetail `json:"enrolled_courses"`
	UnreadMessages  int            `json:"unread_messages"`
}

// TeacherDashboard summarises the landing view for a teacher.
type TeacherDashboard struct {
	Courses        []CourseDetail `json:"courses"`
	TotalStudents  int            `json:"total_students"`
	DocumentCount  int            `json:"document_count"`
	UnreadMessages int            `json:"unread_messages"`
}
