package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/storage"
)

type documentRepository interface {
	Create(ctx context.Context, doc *models.Document) error
	FindByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Delete(ctx context.Context, id string) error
}

type documentCourseLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
}

// DocumentConfig carries upload limits.
type DocumentConfig struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// DocumentService stores and serves course materials. Uploads are teacher
// only; downloads go through short-lived signed links.
type DocumentService struct {
	repo    documentRepository
	courses documentCourseLookup
	store   *storage.LocalStorage
	signer  *storage.SignedURLSigner
	config  DocumentConfig
	logger  *zap.Logger
}

// NewDocumentService constructs a DocumentService.
func NewDocumentService(repo documentRepository, courses documentCourseLookup, store *storage.LocalStorage, signer *storage.SignedURLSigner, config DocumentConfig, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, courses: courses, store: store, signer: signer, config: config, logger: logger}
}

// Upload stores the file and its metadata. Only the owning teacher of the
// course may attach materials to it.
func (s *DocumentService) Upload(ctx context.Context, uploaderID, courseID, fileName, mimeType string, size int64, r io.Reader) (*models.Document, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.TeacherID != uploaderID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may upload materials")
	}

	if s.config.MaxFileSizeBytes > 0 && size > s.config.MaxFileSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, "")
	}
	if !s.mimeAllowed(mimeType) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("file type %s is not allowed", mimeType))
	}

	doc := &models.Document{
		ID:         uuid.NewString(),
		CourseID:   courseID,
		UploaderID: uploaderID,
		FileName:   fileName,
		MIMEType:   mimeType,
		SizeBytes:  size,
	}
	doc.StoredPath = filepath.Join(courseID, doc.ID+filepath.Ext(fileName))

	if _, err := s.store.SaveStream(doc.StoredPath, r); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		if cleanupErr := s.store.Delete(doc.StoredPath); cleanupErr != nil {
			s.logger.Warn("failed to clean up orphaned upload", zap.String("path", doc.StoredPath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record document")
	}

	return doc, nil
}

// List returns document metadata visible to the caller. Students see
// materials for courses they are enrolled in; teachers see materials for
// courses they own.
func (s *DocumentService) List(ctx context.Context, caller *models.JWTClaims, filter models.DocumentFilter) ([]models.Document, int, error) {
	if filter.CourseID != "" {
		if err := s.authorizeCourseAccess(ctx, caller, filter.CourseID); err != nil {
			return nil, 0, err
		}
	} else if caller.Role == models.RoleTeacher {
		filter.UploaderID = caller.UserID
	} else {
		return nil, 0, appErrors.Clone(appErrors.ErrValidation, "courseId is required")
	}

	docs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return docs, total, nil
}

// Link issues a signed, expiring download token for a document the caller
// may access.
func (s *DocumentService) Link(ctx context.Context, caller *models.JWTClaims, documentID string) (*models.DocumentLink, error) {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeCourseAccess(ctx, caller, doc.CourseID); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(doc.ID, doc.StoredPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &models.DocumentLink{Token: token, ExpiresAt: expiresAt}, nil
}

// Open validates a signed token and returns the file together with its
// metadata. The token itself carries the authorization; no session needed.
func (s *DocumentService) Open(ctx context.Context, token string) (*models.Document, *os.File, error) {
	docID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}

	doc, err := s.findDocument(ctx, docID)
	if err != nil {
		return nil, nil, err
	}
	if doc.StoredPath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "download link does not match document")
	}

	file, err := s.store.Open(doc.StoredPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	return doc, file, nil
}

// Delete removes a document; only its uploader may delete it.
func (s *DocumentService) Delete(ctx context.Context, uploaderID, documentID string) error {
	doc, err := s.findDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.UploaderID != uploaderID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the uploader may delete a document")
	}

	if err := s.repo.Delete(ctx, documentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	if err := s.store.Delete(doc.StoredPath); err != nil {
		s.logger.Warn("failed to delete stored file", zap.String("path", doc.StoredPath), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) findDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc, nil
}

func (s *DocumentService) authorizeCourseAccess(ctx context.Context, caller *models.JWTClaims, courseID string) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if caller.Role == models.RoleTeacher {
		if course.TeacherID != caller.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "not the owner of this course")
		}
		return nil
	}

	enrolled, err := s.courses.IsEnrolled(ctx, courseID, caller.UserID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return appErrors.Clone(appErrors.ErrForbidden, "enroll in the course to access its materials")
	}
	return nil
}

func (s *DocumentService) mimeAllowed(mimeType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	for _, allowed := range s.config.AllowedMIMEs {
		if allowed == mimeType {
			return true
		}
	}
	return false
}
