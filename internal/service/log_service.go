package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/analysis"
	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/export"
)

type logRepository interface {
	InsertBatch(ctx context.Context, logs []*models.ActivityLog) error
	ListByStudent(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, error)
	GetByID(ctx context.Context, id string) (*models.ActivityLog, error)
	Update(ctx context.Context, id string, req models.UpdateActivityLogRequest) error
	Delete(ctx context.Context, id string) error
}

type studentLookup interface {
	GetByID(ctx context.Context, id string) (*models.Student, error)
}

type dashboardCache interface {
	Invalidate(ctx context.Context, pattern string) error
}

// LogServiceParams bundles the dependencies for NewLogService.
type LogServiceParams struct {
	Repo     logRepository
	Students studentLookup
	Cache    dashboardCache
	CSV      *export.CSVExporter
	PDF      *export.PDFExporter
	Logger   *zap.Logger
}

// LogService manages activity log rows built from normalized records.
type LogService struct {
	repo     logRepository
	students studentLookup
	cache    dashboardCache
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewLogService constructs the log service.
func NewLogService(params LogServiceParams) *LogService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	csvExporter := params.CSV
	if csvExporter == nil {
		csvExporter = export.NewCSVExporter()
	}
	pdfExporter := params.PDF
	if pdfExporter == nil {
		pdfExporter = export.NewPDFExporter("")
	}
	return &LogService{repo: params.Repo, students: params.Students, cache: params.Cache, csv: csvExporter, pdf: pdfExporter, logger: logger}
}

// CreateBatch persists one log row per normalized record for the given
// student. All rows commit together or not at all.
func (s *LogService) CreateBatch(ctx context.Context, studentID string, uploadID *string, records []analysis.ActivityAnalysis) ([]*models.ActivityLog, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no records to persist")
	}
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	logs := make([]*models.ActivityLog, 0, len(records))
	for i, record := range records {
		row, err := buildLogRow(studentID, uploadID, record)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to encode record %d", i))
		}
		logs = append(logs, row)
	}

	if err := s.repo.InsertBatch(ctx, logs); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist logs")
	}
	s.invalidateDashboard(ctx, studentID)
	return logs, nil
}

// List returns log rows for a student within the filter range.
func (s *LogService) List(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, error) {
	if filter.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	logs, err := s.repo.ListByStudent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list logs")
	}
	return logs, nil
}

// Export renders a student's activity logs over the filter range as a CSV or
// PDF document. Rows mirror the dashboard's activity detail table. An empty
// format defaults to CSV.
func (s *LogService) Export(ctx context.Context, filter models.ActivityLogFilter, format string) ([]byte, string, string, error) {
	if format == "" {
		format = "csv"
	}
	if format != "csv" && format != "pdf" {
		return nil, "", "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	logs, err := s.List(ctx, filter)
	if err != nil {
		return nil, "", "", err
	}
	view := analysis.Aggregate(logs)
	dataset := activityLogDataset(view)

	if format == "pdf" {
		title := fmt.Sprintf("활동 기록 - %s", filter.StudentID)
		if s.students != nil {
			if student, err := s.students.GetByID(ctx, filter.StudentID); err == nil && student != nil {
				title = fmt.Sprintf("활동 기록 - %s", student.Name)
			}
		}
		body, err := s.pdf.RenderTable(dataset, title)
		if err != nil {
			return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return body, fmt.Sprintf("activity-logs-%s.pdf", filter.StudentID), "application/pdf", nil
	}

	body, err := s.csv.Render(dataset)
	if err != nil {
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return body, fmt.Sprintf("activity-logs-%s.csv", filter.StudentID), "text/csv; charset=utf-8", nil
}

func activityLogDataset(view analysis.DashboardView) export.Dataset {
	headers := []string{"date", "activity", "category", "activity_type", "emotion", "comment"}
	rows := make([]map[string]string, 0, len(view.ActivityDetails))
	for _, detail := range view.ActivityDetails {
		rows = append(rows, map[string]string{
			"date":          detail.Date,
			"activity":      detail.Activity,
			"category":      detail.Category,
			"activity_type": detail.ActivityType,
			"emotion":       detail.Emotion,
			"comment":       detail.Comment,
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// Get returns one log row.
func (s *LogService) Get(ctx context.Context, id string) (*models.ActivityLog, error) {
	log, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "log not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load log")
	}
	return log, nil
}

// Update applies the provided changes and returns the updated row.
func (s *LogService) Update(ctx context.Context, id string, req models.UpdateActivityLogRequest) (*models.ActivityLog, error) {
	if req.LogDate != nil && *req.LogDate != "" && !analysis.IsCalendarDate(*req.LogDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "log_date must be YYYY-MM-DD")
	}
	if err := s.repo.Update(ctx, id, req); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "log not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update log")
	}
	log, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.invalidateDashboard(ctx, log.StudentID)
	return log, nil
}

// Delete removes a log row.
func (s *LogService) Delete(ctx context.Context, id string) error {
	log, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "log not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete log")
	}
	s.invalidateDashboard(ctx, log.StudentID)
	return nil
}

func (s *LogService) invalidateDashboard(ctx context.Context, studentID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, DashboardPattern(studentID)); err != nil {
		s.logger.Warn("failed to invalidate dashboard cache", zap.String("student_id", studentID), zap.Error(err))
	}
}

func buildLogRow(studentID string, uploadID *string, record analysis.ActivityAnalysis) (*models.ActivityLog, error) {
	emotionTag := ""
	if len(record.EmotionTags) > 0 {
		emotionTag = record.EmotionTags[0]
	}

	tags := analysis.NormalizeTags(record.ActivityName)
	for _, tag := range analysis.NormalizeTags(record.ActivityType) {
		if !containsString(tags, tag) {
			tags = append(tags, tag)
		}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal activity tags: %w", err)
	}

	metrics := map[string]interface{}{}
	if record.ActivityName != "" {
		metrics["activity_name"] = record.ActivityName
	}
	if record.ActivityType != "" {
		metrics["activity_type"] = record.ActivityType
	}
	if record.DurationMinutes != nil {
		metrics["duration_minutes"] = *record.DurationMinutes
	}
	if record.Level != "" {
		metrics["level"] = record.Level
	}
	if len(record.Ability) > 0 {
		metrics["ability"] = record.Ability
	}
	if record.Score != nil {
		metrics["score"] = *record.Score
	}
	if record.ScoreExplanation != "" {
		metrics["score_explanation"] = record.ScoreExplanation
	}
	if record.EmotionSummary != "" {
		metrics["emotion_summary"] = record.EmotionSummary
	}
	if record.EmotionCause != "" {
		metrics["emotion_cause"] = record.EmotionCause
	}
	if record.ObservedBehaviors != "" {
		metrics["observed_behaviors"] = record.ObservedBehaviors
	}
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("marshal related metrics: %w", err)
	}

	content := record.Note
	if content == "" {
		content = record.RawTextCleaned
	}

	return &models.ActivityLog{
		StudentID:      studentID,
		UploadID:       uploadID,
		LogDate:        record.Date,
		EmotionTag:     emotionTag,
		ActivityTags:   tagsJSON,
		LogContent:     content,
		RelatedMetrics: metricsJSON,
	}, nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
