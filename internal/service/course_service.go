package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

const catalogCachePrefix = "catalog:"

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	Unenroll(ctx context.Context, courseID, studentID string) error
	Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

type catalogCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type catalogPage struct {
	Courses []models.CourseDetail `json:"courses"`
	Total   int                   `json:"total"`
}

// CourseService covers the catalog, enrollment and the roster.
type CourseService struct {
	repo      courseRepository
	cache     catalogCache
	cacheTTL  time.Duration
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService constructs a CourseService.
func NewCourseService(repo courseRepository, cache catalogCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CourseService{repo: repo, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns the catalog, serving repeat queries from cache. The bool
// result reports a cache hit.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, bool, error) {
	key := catalogCacheKey(filter)

	if s.cache != nil {
		var cached catalogPage
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached.Courses, cached.Total, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("catalog cache read failed", zap.Error(err))
		}
	}

	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, catalogPage{Courses: courses, Total: total}, s.cacheTTL); err != nil {
			s.logger.Warn("catalog cache write failed", zap.Error(err))
		}
	}

	return courses, total, false, nil
}

// Create adds a catalog entry owned by the calling teacher.
func (s *CourseService) Create(ctx context.Context, teacherID string, req models.CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		TeacherID:   teacherID,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Update edits a catalog entry; only the owning teacher may edit.
func (s *CourseService) Update(ctx context.Context, teacherID, courseID string, req models.UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may edit it")
	}

	course.Title = req.Title
	course.Description = req.Description
	course.Category = req.Category

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}

	s.invalidateCatalog(ctx)
	return course, nil
}

// Enroll adds the student to the course. Enrolling twice is a no-op.
func (s *CourseService) Enroll(ctx context.Context, studentID, courseID string) error {
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return err
	}

	enrollment := &models.Enrollment{CourseID: courseID, StudentID: studentID}
	if err := s.repo.Enroll(ctx, enrollment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll")
	}

	s.invalidateCatalog(ctx)
	return nil
}

// Drop removes the student's enrollment. Dropping an enrollment that does
// not exist is a no-op, not an error.
func (s *CourseService) Drop(ctx context.Context, studentID, courseID string) error {
	if _, err := s.findCourse(ctx, courseID); err != nil {
		return err
	}

	if err := s.repo.Unenroll(ctx, courseID, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to drop enrollment")
	}

	s.invalidateCatalog(ctx)
	return nil
}

// Roster returns the enrolled students; only the owning teacher may see it.
func (s *CourseService) Roster(ctx context.Context, teacherID, courseID string) ([]models.RosterEntry, error) {
	course, err := s.findCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may view the roster")
	}

	roster, err := s.repo.Roster(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	return roster, nil
}

func (s *CourseService) findCourse(ctx context.Context, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, catalogCachePrefix+"*"); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func catalogCacheKey(filter models.CourseFilter) string {
	return fmt.Sprintf("%sv=%s|t=%s|s=%s|c=%s|e=%t|p=%d|n=%d",
		catalogCachePrefix, filter.ViewerID, filter.TeacherID, filter.Search, filter.Category, filter.EnrolledOnly, filter.Page, filter.PageSize)
}
