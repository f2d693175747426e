package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/storage"
)

type mockDocumentRepo struct {
	docs      map[string]*models.Document
	createErr error
}

func (m *mockDocumentRepo) Create(ctx context.Context, doc *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	if m.docs == nil {
		m.docs = make(map[string]*models.Document)
	}
	cp := *doc
	m.docs[doc.ID] = &cp
	return nil
}

func (m *mockDocumentRepo) FindByID(ctx context.Context, id string) (*models.Document, error) {
	if doc, ok := m.docs[id]; ok {
		cp := *doc
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDocumentRepo) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	var out []models.Document
	for _, doc := range m.docs {
		if filter.CourseID != "" && doc.CourseID != filter.CourseID {
			continue
		}
		if filter.UploaderID != "" && doc.UploaderID != filter.UploaderID {
			continue
		}
		out = append(out, *doc)
	}
	return out, len(out), nil
}

func (m *mockDocumentRepo) Delete(ctx context.Context, id string) error {
	delete(m.docs, id)
	return nil
}

type mockCourseLookup struct {
	courses  map[string]*models.Course
	enrolled map[string]bool
}

func (m *mockCourseLookup) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if course, ok := m.courses[id]; ok {
		cp := *course
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseLookup) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	return m.enrolled[courseID+"/"+studentID], nil
}

func newDocumentService(t *testing.T, repo *mockDocumentRepo, courses *mockCourseLookup, config DocumentConfig) *DocumentService {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("doc-secret", time.Minute)
	return NewDocumentService(repo, courses, store, signer, config, nil)
}

func teacherClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleTeacher}
}

func studentClaims(userID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: userID, Role: models.RoleStudent}
}

func TestDocumentServiceUploadAndDownload(t *testing.T) {
	repo := &mockDocumentRepo{}
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	service := newDocumentService(t, repo, courses, DocumentConfig{})

	doc, err := service.Upload(context.Background(), "t1", "c1", "syllabus.pdf", "application/pdf", 11, strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, "c1", doc.CourseID)
	assert.Equal(t, "syllabus.pdf", doc.FileName)
	require.Contains(t, repo.docs, doc.ID)

	link, err := service.Link(context.Background(), teacherClaims("t1"), doc.ID)
	require.NoError(t, err)
	require.NotEmpty(t, link.Token)

	got, file, err := service.Open(context.Background(), link.Token)
	require.NoError(t, err)
	defer file.Close()
	assert.Equal(t, doc.ID, got.ID)
	content, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(content))
}

func TestDocumentServiceUploadNonOwnerForbidden(t *testing.T) {
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	service := newDocumentService(t, &mockDocumentRepo{}, courses, DocumentConfig{})

	_, err := service.Upload(context.Background(), "t2", "c1", "notes.pdf", "application/pdf", 4, strings.NewReader("nope"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadRejectsOversize(t *testing.T) {
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	service := newDocumentService(t, &mockDocumentRepo{}, courses, DocumentConfig{MaxFileSizeBytes: 8})

	_, err := service.Upload(context.Background(), "t1", "c1", "big.pdf", "application/pdf", 9, strings.NewReader("too large"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPayloadTooLarge.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceUploadRejectsDisallowedMIME(t *testing.T) {
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	service := newDocumentService(t, &mockDocumentRepo{}, courses, DocumentConfig{
		AllowedMIMEs: []string{"application/pdf"},
	})

	_, err := service.Upload(context.Background(), "t1", "c1", "tool.exe", "application/octet-stream", 4, strings.NewReader("bits"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceListRequiresAccess(t *testing.T) {
	repo := &mockDocumentRepo{docs: map[string]*models.Document{
		"d1": {ID: "d1", CourseID: "c1", UploaderID: "t1", FileName: "syllabus.pdf"},
	}}
	courses := &mockCourseLookup{
		courses:  map[string]*models.Course{"c1": {ID: "c1", TeacherID: "t1"}},
		enrolled: map[string]bool{"c1/s1": true},
	}
	service := newDocumentService(t, repo, courses, DocumentConfig{})

	docs, _, err := service.List(context.Background(), studentClaims("s1"), models.DocumentFilter{CourseID: "c1"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	_, _, err = service.List(context.Background(), studentClaims("s2"), models.DocumentFilter{CourseID: "c1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// Teachers without a course filter fall back to their own uploads.
	docs, _, err = service.List(context.Background(), teacherClaims("t1"), models.DocumentFilter{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	// Students must always name a course.
	_, _, err = service.List(context.Background(), studentClaims("s1"), models.DocumentFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceOpenRejectsBadToken(t *testing.T) {
	service := newDocumentService(t, &mockDocumentRepo{}, &mockCourseLookup{}, DocumentConfig{})

	_, _, err := service.Open(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestDocumentServiceDeleteUploaderOnly(t *testing.T) {
	repo := &mockDocumentRepo{}
	courses := &mockCourseLookup{courses: map[string]*models.Course{
		"c1": {ID: "c1", TeacherID: "t1"},
	}}
	service := newDocumentService(t, repo, courses, DocumentConfig{})

	doc, err := service.Upload(context.Background(), "t1", "c1", "syllabus.pdf", "application/pdf", 5, strings.NewReader("notes"))
	require.NoError(t, err)

	err = service.Delete(context.Background(), "t2", doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, service.Delete(context.Background(), "t1", doc.ID))
	assert.NotContains(t, repo.docs, doc.ID)

	err = service.Delete(context.Background(), "t1", doc.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
