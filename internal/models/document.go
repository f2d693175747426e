package models

import "time"

// Document is a course material uploaded by a teacher.
type Document struct {
	ID         string    `db:"id" json:"id"`
	CourseID   string    `db:"course_id" json:"course_id"`
	UploaderID string    `db:"uploader_id" json:"uploader_id"`
	FileName   string    `db:"file_name" json:"file_name"`
	MIMEType   string    `db:"mime_type" json:"mime_type"`
	SizeBytes  int64     `db:"size_bytes" json:"size_bytes"`
	StoredPath string    `db:"stored_path" json:"-"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// DocumentFilter scopes document listings.
type DocumentFilter struct {
	CourseID   string
	UploaderID string
	Page       int
	PageSize   int
}

// DocumentLink is a short-lived signed download reference.
type DocumentLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
