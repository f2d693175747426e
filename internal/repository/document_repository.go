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

// DocumentRepository handles persistence of course material metadata. The
// file bytes themselves live on the storage layer.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Create inserts document metadata.
func (r *DocumentRepository) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO documents (id, course_id, uploader_id, file_name, mime_type, size_bytes, stored_path, created_at)
VALUES (:id, :course_id, :uploader_id, :file_name, :mime_type, :size_bytes, :stored_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// FindByID returns document metadata by identifier.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.Document, error) {
	const query = `SELECT id, course_id, uploader_id, file_name, mime_type, size_bytes, stored_path, created_at FROM documents WHERE id = $1`
	var doc models.Document
	if err := r.db.GetContext(ctx, &doc, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find document by id: %w", err)
	}
	return &doc, nil
}

// List returns documents scoped by course or uploader.
func (r *DocumentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	baseQuery := `FROM documents WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.UploaderID != "" {
		conditions = append(conditions, fmt.Sprintf("uploader_id = $%d", len(args)+1))
		args = append(args, filter.UploaderID)
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, course_id, uploader_id, file_name, mime_type, size_bytes, stored_path, created_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", baseQuery, pageSize, offset)

	var docs []models.Document
	if err := r.db.SelectContext(ctx, &docs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	return docs, total, nil
}

// CountByUploader returns how many documents a teacher has uploaded.
func (r *DocumentRepository) CountByUploader(ctx context.Context, uploaderID string) (int, error) {
	const query = `SELECT COUNT(*) FROM documents WHERE uploader_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, uploaderID); err != nil {
		return 0, fmt.Errorf("count documents by uploader: %w", err)
	}
	return total, nil
}

// Delete removes document metadata.
func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM documents WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
