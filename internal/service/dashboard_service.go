package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

type dashboardCourseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	CountStudents(ctx context.Context, teacherID string) (int, error)
}

type dashboardChatRepository interface {
	CountUnread(ctx context.Context, userID string) (int, error)
}

type dashboardDocumentRepository interface {
	CountByUploader(ctx context.Context, uploaderID string) (int, error)
}

// DashboardService assembles the role-specific landing summaries.
type DashboardService struct {
	courses   dashboardCourseRepository
	chat      dashboardChatRepository
	documents dashboardDocumentRepository
	logger    *zap.Logger
}

func NewDashboardService(courses dashboardCourseRepository, chat dashboardChatRepository, documents dashboardDocumentRepository, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		courses:   courses,
		chat:      chat,
		documents: documents,
		logger:    logger,
	}
}

// Student returns the enrolled courses and unread message count for a student.
func (s *DashboardService) Student(ctx context.Context, studentID string) (*models.StudentDashboard, error) {
	enrolled, _, err := s.courses.List(ctx, models.CourseFilter{
		ViewerID:     studentID,
		EnrolledOnly: true,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled courses")
	}

	unread, err := s.chat.CountUnread(ctx, studentID)
	if err != nil {
		// The dashboard is still usable without the badge count.
		s.logger.Warn("failed to count unread messages", zap.String("user_id", studentID), zap.Error(err))
		unread = 0
	}

	return &models.StudentDashboard{
		EnrolledCourses: enrolled,
		UnreadMessages:  unread,
	}, nil
}

// Teacher returns the taught courses plus aggregate counts for a teacher.
func (s *DashboardService) Teacher(ctx context.Context, teacherID string) (*models.TeacherDashboard, error) {
	courses, _, err := s.courses.List(ctx, models.CourseFilter{
		ViewerID:  teacherID,
		TeacherID: teacherID,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load taught courses")
	}

	students, err := s.courses.CountStudents(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	documents, err := s.documents.CountByUploader(ctx, teacherID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count documents")
	}

	unread, err := s.chat.CountUnread(ctx, teacherID)
	if err != nil {
		s.logger.Warn("failed to count unread messages", zap.String("user_id", teacherID), zap.Error(err))
		unread = 0
	}

	return &models.TeacherDashboard{
		Courses:        courses,
		TotalStudents:  students,
		DocumentCount:  documents,
		UnreadMessages: unread,
	}, nil
}
