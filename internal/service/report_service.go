package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/internal/repository"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateReportJobParams) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type downloadSigner interface {
	Generate(reportID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (reportID, relPath string, expiresAt time.Time, err error)
}

type reportFileOpener interface {
	Open(filename string) (*os.File, error)
}

// ReportDownload wraps a verified artifact ready to stream to the client.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	SizeBytes   int64
	ExpiresAt   time.Time
}

// ReportServiceParams groups constructor dependencies.
type ReportServiceParams struct {
	Repo     reportJobStore
	Students studentLookup
	Queue    jobDispatcher
	Signer   downloadSigner
	Files    reportFileOpener
	Logger   *zap.Logger
}

// ReportService manages narrative report jobs: enqueueing, status lookups,
// and signed downloads. Generation itself happens in ReportWorker.
type ReportService struct {
	repo     reportJobStore
	students studentLookup
	queue    jobDispatcher
	signer   downloadSigner
	files    reportFileOpener
	logger   *zap.Logger
}

// NewReportService constructs the report service.
func NewReportService(params ReportServiceParams) *ReportService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:     params.Repo,
		students: params.Students,
		queue:    params.Queue,
		signer:   params.Signer,
		files:    params.Files,
		logger:   logger,
	}
}

// CreateJob validates the request, persists a queued job, and dispatches it.
func (s *ReportService) CreateJob(ctx context.Context, req models.CreateReportRequest, createdBy string) (*models.ReportJob, error) {
	if !analysis.IsCalendarDate(req.From) || !analysis.IsCalendarDate(req.To) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from and to must be YYYY-MM-DD")
	}
	if req.From > req.To {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must not be after to")
	}
	format := req.Format
	if format == "" {
		format = models.ReportFormatMarkdown
	}
	if format != models.ReportFormatMarkdown && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
	if _, err := s.students.GetByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	job := &models.ReportJob{
		StudentID: req.StudentID,
		FromDate:  req.From,
		ToDate:    req.To,
		Format:    format,
		Status:    models.ReportStatusQueued,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "report"}); err != nil {
		status := models.ReportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
	}
	return job, nil
}

// Get exposes job metadata, attaching a signed download URL once finished.
func (s *ReportService) Get(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status == models.ReportStatusFinished && job.FilePath != nil {
		token, _, err := s.signer.Generate(job.ID, *job.FilePath)
		if err != nil {
			s.logger.Warn("failed to sign download url", zap.String("report_id", job.ID), zap.Error(err))
		} else {
			url := fmt.Sprintf("/api/v1/reports/%s/download?token=%s", job.ID, token)
			job.DownloadURL = &url
		}
	}
	return job, nil
}

// ResolveDownload validates the token and opens the stored artifact.
func (s *ReportService) ResolveDownload(ctx context.Context, id, token string) (*ReportDownload, error) {
	reportID, relPath, expiresAt, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrLinkExpired, "invalid or expired download token")
	}
	if reportID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token does not match report")
	}
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.Status != models.ReportStatusFinished || job.FilePath == nil || *job.FilePath != relPath {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report not ready")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open report file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat report file")
	}
	contentType := "text/markdown; charset=utf-8"
	if job.Format == models.ReportFormatPDF {
		contentType = "application/pdf"
	}
	return &ReportDownload{
		File:        file,
		Filename:    filepath.Base(relPath),
		ContentType: contentType,
		SizeBytes:   info.Size(),
		ExpiresAt:   expiresAt,
	}, nil
}

type reportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (string, error)
}

// ReportWorker bridges queue jobs to the report generator.
type ReportWorker struct {
	repo       reportJobStore
	generator  reportGenerator
	metrics    *MetricsService
	logger     *zap.Logger
	maxRetries int
}

// NewReportWorker constructs a worker.
func NewReportWorker(repo reportJobStore, generator reportGenerator, metrics *MetricsService, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ReportWorker{
		repo:       repo,
		generator:  generator,
		metrics:    metrics,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes a queue job.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ReportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{Status: &processing}); err != nil {
		return err
	}
	relPath, err := w.generator.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ReportStatusFailed
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Warn("failed to mark report failed", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
			w.metrics.RecordReportJob("failed")
		} else {
			queued := models.ReportStatusQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Warn("failed to requeue report", zap.String("job_id", job.ID), zap.Error(updateErr))
			}
		}
		return err
	}
	finished := models.ReportStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateReportJobParams{
		Status:       &finished,
		FilePath:     &relPath,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Warn("failed to mark report finished", zap.String("job_id", job.ID), zap.Error(err))
		return err
	}
	w.metrics.RecordReportJob("finished")
	return nil
}
