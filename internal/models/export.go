package models

import "time"

// ExportStatus tracks the lifecycle of a background roster export.
type ExportStatus string

const (
	ExportPending   ExportStatus = "PENDING"
	ExportRunning   ExportStatus = "RUNNING"
	ExportCompleted ExportStatus = "COMPLETED"
	ExportFailed    ExportStatus = "FAILED"
)

// RosterExportJob is a queued request to render a course roster to a file.
type RosterExportJob struct {
	ID          string       `json:"id"`
	CourseID    string       `json:"course_id"`
	RequestedBy string       `json:"requested_by"`
	Format      string       `json:"format"`
	Status      ExportStatus `json:"status"`
	FilePath    string       `json:"-"`
	Error       string       `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}

// RosterExportRequest starts an export. Format defaults to pdf.
type RosterExportRequest struct {
	Format string `json:"format" validate:"omitempty,oneof=pdf csv"`
}
