package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
	"github.com/campusworks/campus/pkg/export"
	"github.com/campusworks/campus/pkg/jobs"
	"github.com/campusworks/campus/pkg/storage"
)

const rosterExportJobType = "roster_export"

type rosterLookup interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Roster(ctx context.Context, courseID string) ([]models.RosterEntry, error)
}

type exportMetrics interface {
	RecordExportJob(status string)
}

// ExportConfig tunes the background export worker.
type ExportConfig struct {
	WorkerConcurrency int
	WorkerRetries     int
}

// ExportService renders course rosters to PDF or CSV in the background.
// Job state is kept in memory; results live on disk behind signed links.
type ExportService struct {
	courses   rosterLookup
	store     *storage.LocalStorage
	signer    *storage.SignedURLSigner
	pdf       *export.PDFExporter
	csv       *export.CSVExporter
	metrics   exportMetrics
	validator *validator.Validate
	logger    *zap.Logger

	queue *jobs.Queue

	mu       sync.RWMutex
	jobsByID map[string]*models.RosterExportJob
}

// NewExportService constructs the service and its worker queue. Call Start
// before enqueueing and Stop on shutdown.
func NewExportService(courses rosterLookup, store *storage.LocalStorage, signer *storage.SignedURLSigner, metrics exportMetrics, validate *validator.Validate, config ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ExportService{
		courses:   courses,
		store:     store,
		signer:    signer,
		pdf:       export.NewPDFExporter(),
		csv:       export.NewCSVExporter(),
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		jobsByID:  make(map[string]*models.RosterExportJob),
	}
	s.queue = jobs.NewQueue(rosterExportJobType, s.process, jobs.QueueConfig{
		Workers:    config.WorkerConcurrency,
		MaxRetries: config.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the worker pool.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue schedules a roster export for a course the teacher owns. The format
// is restricted to the known renderers; it becomes part of the stored file
// path, so anything else is rejected before a job exists.
func (s *ExportService) Enqueue(ctx context.Context, teacherID, courseID string, req models.RosterExportRequest) (*models.RosterExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be pdf or csv")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if course.TeacherID != teacherID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the course owner may export its roster")
	}

	format := req.Format
	if format == "" {
		format = "pdf"
	}

	job := &models.RosterExportJob{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		RequestedBy: teacherID,
		Format:      format,
		Status:      models.ExportPending,
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobsByID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: rosterExportJobType, Payload: job.ID}); err != nil {
		s.mu.Lock()
		delete(s.jobsByID, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	return job, nil
}

// Job returns the current state of an export, plus a signed download token
// once the export has completed. Only the requesting teacher may poll it.
func (s *ExportService) Job(teacherID, jobID string) (*models.RosterExportJob, *models.DocumentLink, error) {
	s.mu.RLock()
	job, ok := s.jobsByID[jobID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	if job.RequestedBy != teacherID {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not the owner of this export")
	}

	snapshot := *job
	if snapshot.Status != models.ExportCompleted {
		return &snapshot, nil, nil
	}

	token, expiresAt, err := s.signer.Generate(snapshot.ID, snapshot.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	return &snapshot, &models.DocumentLink{Token: token, ExpiresAt: expiresAt}, nil
}

// Open validates a signed export token and returns the rendered file.
func (s *ExportService) Open(token string) (*models.RosterExportJob, *os.File, error) {
	jobID, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired download link")
	}

	s.mu.RLock()
	job, ok := s.jobsByID[jobID]
	s.mu.RUnlock()
	if !ok || job.FilePath != relPath {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export not found")
	}

	file, err := s.store.Open(job.FilePath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	snapshot := *job
	return &snapshot, file, nil
}

func (s *ExportService) process(ctx context.Context, queued jobs.Job) error {
	jobID, _ := queued.Payload.(string)

	s.mu.Lock()
	job, ok := s.jobsByID[jobID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("unknown export job %s", jobID)
	}
	job.Status = models.ExportRunning
	s.mu.Unlock()

	path, err := s.render(ctx, job)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if err != nil {
		job.Status = models.ExportFailed
		job.Error = err.Error()
		job.CompletedAt = &now
		if s.metrics != nil {
			s.metrics.RecordExportJob(string(models.ExportFailed))
		}
		return err
	}
	job.FilePath = path
	job.Status = models.ExportCompleted
	job.CompletedAt = &now
	if s.metrics != nil {
		s.metrics.RecordExportJob(string(models.ExportCompleted))
	}
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.RosterExportJob) (string, error) {
	course, err := s.courses.FindByID(ctx, job.CourseID)
	if err != nil {
		return "", fmt.Errorf("load course: %w", err)
	}
	roster, err := s.courses.Roster(ctx, job.CourseID)
	if err != nil {
		return "", fmt.Errorf("load roster: %w", err)
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Email", "Joined"},
		Rows:    make([]map[string]string, 0, len(roster)),
	}
	for _, entry := range roster {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Student": entry.StudentName,
			"Email":   entry.Email,
			"Joined":  entry.JoinedAt.Format("2006-01-02"),
		})
	}

	var payload []byte
	switch job.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	default:
		payload, err = s.pdf.Render(dataset, fmt.Sprintf("Roster: %s", course.Title))
	}
	if err != nil {
		return "", fmt.Errorf("render roster: %w", err)
	}

	path := fmt.Sprintf("%s/%s.%s", job.CourseID, job.ID, job.Format)
	if _, err := s.store.Save(path, payload); err != nil {
		return "", fmt.Errorf("store roster export: %w", err)
	}
	return path, nil
}
