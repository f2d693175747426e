package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

type mockCourseRepo struct {
	courses     map[string]*models.Course
	listings    []models.CourseDetail
	listCalls   int
	enrollments []models.Enrollment
	unenrolled  [][2]string
	roster      []models.RosterEntry
}

func (m *mockCourseRepo) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	m.listCalls++
	return m.listings, len(m.listings), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		cp := *course
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	course.ID = "c-new"
	if m.courses == nil {
		m.courses = make(map[string]*models.Course)
	}
	cp := *course
	m.courses[course.ID] = &cp
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	cp := *course
	m.courses[course.ID] = &cp
	return nil
}

func (m *mockCourseRepo) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	m.enrollments = append(m.enrollments, *enrollment)
	return nil
}

func (m *mockCourseRepo) Unenroll(ctx context.Context, courseID, studentID string) error {
	m.unenrolled = append(m.unenrolled, [2]string{courseID, studentID})
	return nil
}

func (m *mockCourseRepo) Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error) {
	return m.roster, nil
}

// fakeCache is an in-memory stand-in for the Redis-backed repository.
type fakeCache struct {
	entries map[string][]byte
	sets    int
	deletes int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := f.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.entries[key] = raw
	f.sets++
	return nil
}

func (f *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range f.entries {
		if strings.HasPrefix(key, prefix) {
			delete(f.entries, key)
		}
	}
	f.deletes++
	return nil
}

func TestCourseServiceListCachesCatalog(t *testing.T) {
	repo := &mockCourseRepo{listings: []models.CourseDetail{
		{Course: models.Course{ID: "c1", Title: "Algebra", TeacherID: "t1"}, TeacherName: "Grace", EnrolledCount: 3},
	}}
	cache := newFakeCache()
	service := NewCourseService(repo, cache, time.Minute, nil, nil)

	filter := models.CourseFilter{ViewerID: "u1", Page: 1, PageSize: 20}

	courses, total, hit, err := service.List(context.Background(), filter)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, total)
	require.Len(t, courses, 1)
	assert.Equal(t, "Algebra", courses[0].Title)

	courses, total, hit, err = service.List(context.Background(), filter)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, total)
	require.Len(t, courses, 1)
	assert.Equal(t, 1, repo.listCalls, "second read must come from cache")

	// A different filter is a different cache entry.
	_, _, hit, err = service.List(context.Background(), models.CourseFilter{ViewerID: "u1", Search: "alg", Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, repo.listCalls)
}

func TestCourseServiceListWithoutCache(t *testing.T) {
	repo := &mockCourseRepo{}
	service := NewCourseService(repo, nil, time.Minute, nil, nil)

	_, _, hit, err := service.List(context.Background(), models.CourseFilter{})
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCourseServiceCreateInvalidatesCatalog(t *testing.T) {
	repo := &mockCourseRepo{}
	cache := newFakeCache()
	service := NewCourseService(repo, cache, time.Minute, nil, nil)

	_, _, _, err := service.List(context.Background(), models.CourseFilter{ViewerID: "t1"})
	require.NoError(t, err)
	require.NotEmpty(t, cache.entries)

	course, err := service.Create(context.Background(), "t1", models.CreateCourseRequest{
		Title:    "Geometry",
		Category: "math",
	})
	require.NoError(t, err)
	assert.Equal(t, "t1", course.TeacherID)
	assert.Empty(t, cache.entries, "catalog entries must be evicted on write")
}

func TestCourseServiceCreateRejectsInvalidPayload(t *testing.T) {
	service := NewCourseService(&mockCourseRepo{}, nil, time.Minute, nil, nil)

	_, err := service.Create(context.Background(), "t1", models.CreateCourseRequest{Title: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceUpdateOwnerOnly(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", Title: "Algebra", Category: "math", TeacherID: "t1"},
	}}
	service := NewCourseService(repo, nil, time.Minute, nil, nil)

	req := models.UpdateCourseRequest{Title: "Algebra II", Category: "math"}

	_, err := service.Update(context.Background(), "t2", "c1", req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	course, err := service.Update(context.Background(), "t1", "c1", req)
	require.NoError(t, err)
	assert.Equal(t, "Algebra II", course.Title)
}

func TestCourseServiceEnrollAndDrop(t *testing.T) {
	repo := &mockCourseRepo{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	service := NewCourseService(repo, nil, time.Minute, nil, nil)

	require.NoError(t, service.Enroll(context.Background(), "s1", "c1"))
	require.Len(t, repo.enrollments, 1)
	assert.Equal(t, "s1", repo.enrollments[0].StudentID)

	require.NoError(t, service.Drop(context.Background(), "s1", "c1"))
	require.Len(t, repo.unenrolled, 1)

	// Dropping again stays a no-op at the service level.
	require.NoError(t, service.Drop(context.Background(), "s1", "c1"))
}

func TestCourseServiceEnrollUnknownCourse(t *testing.T) {
	service := NewCourseService(&mockCourseRepo{}, nil, time.Minute, nil, nil)

	err := service.Enroll(context.Background(), "s1", "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseServiceRosterOwnerOnly(t *testing.T) {
	repo := &mockCourseRepo{
		courses: map[string]*models.Course{"c1": {ID: "c1", TeacherID: "t1"}},
		roster: []models.RosterEntry{
			{StudentID: "s1", StudentName: "Ada", Email: "ada@example.com"},
		},
	}
	service := NewCourseService(repo, nil, time.Minute, nil, nil)

	_, err := service.Roster(context.Background(), "t2", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	roster, err := service.Roster(context.Background(), "t1", "c1")
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, "Ada", roster[0].StudentName)
}
