package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saessak-edu/saessak-api/internal/models"
)

// LogRepository manages persistence for activity log rows.
type LogRepository struct {
	db *sqlx.DB
}

// NewLogRepository constructs a LogRepository.
func NewLogRepository(db *sqlx.DB) *LogRepository {
	return &LogRepository{db: db}
}

// InsertBatch persists a set of log rows inside one transaction.
func (r *LogRepository) InsertBatch(ctx context.Context, logs []*models.ActivityLog) error {
	if len(logs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin log batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO activity_logs (id, student_id, upload_id, log_date, emotion_tag, activity_tags, log_content, related_metrics, created_at, updated_at)
VALUES (:id, :student_id, :upload_id, :log_date, :emotion_tag, :activity_tags, :log_content, :related_metrics, :created_at, :updated_at)`
	now := time.Now().UTC()
	for _, log := range logs {
		if log.ID == "" {
			log.ID = uuid.NewString()
		}
		if log.CreatedAt.IsZero() {
			log.CreatedAt = now
		}
		log.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, log); err != nil {
			return fmt.Errorf("insert log row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit log batch: %w", err)
	}
	return nil
}

// ListByStudent returns log rows for one student constrained to a date range.
// Rows with no log_date fall back to created_at for range filtering.
func (r *LogRepository) ListByStudent(ctx context.Context, filter models.ActivityLogFilter) ([]models.ActivityLog, error) {
	base := `SELECT id, student_id, upload_id, log_date, emotion_tag, activity_tags, log_content, related_metrics, created_at, updated_at
FROM activity_logs WHERE student_id = $1`
	args := []interface{}{filter.StudentID}
	conditions := []string{}

	if filter.From != "" {
		conditions = append(conditions, fmt.Sprintf("COALESCE(log_date, created_at::date) >= $%d", len(args)+1))
		args = append(args, filter.From)
	}
	if filter.To != "" {
		conditions = append(conditions, fmt.Sprintf("COALESCE(log_date, created_at::date) <= $%d", len(args)+1))
		args = append(args, filter.To)
	}

	query := base
	if len(conditions) > 0 {
		query = fmt.Sprintf("%s AND %s", base, strings.Join(conditions, " AND "))
	}
	query += " ORDER BY log_date ASC NULLS LAST, created_at ASC"

	var logs []models.ActivityLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	return logs, nil
}

// GetByID returns one log row.
func (r *LogRepository) GetByID(ctx context.Context, id string) (*models.ActivityLog, error) {
	const query = `SELECT id, student_id, upload_id, log_date, emotion_tag, activity_tags, log_content, related_metrics, created_at, updated_at
FROM activity_logs WHERE id = $1`
	var log models.ActivityLog
	if err := r.db.GetContext(ctx, &log, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get log: %w", err)
	}
	return &log, nil
}

// Update persists the provided changes for a log row.
func (r *LogRepository) Update(ctx context.Context, id string, req models.UpdateActivityLogRequest) error {
	set := make([]string, 0, 5)
	args := make([]interface{}, 0, 6)
	argPos := 1

	if req.LogDate != nil {
		set = append(set, fmt.Sprintf("log_date = $%d", argPos))
		args = append(args, *req.LogDate)
		argPos++
	}
	if req.EmotionTag != nil {
		set = append(set, fmt.Sprintf("emotion_tag = $%d", argPos))
		args = append(args, *req.EmotionTag)
		argPos++
	}
	if req.ActivityTags != nil {
		set = append(set, fmt.Sprintf("activity_tags = $%d", argPos))
		args = append(args, []byte(req.ActivityTags))
		argPos++
	}
	if req.LogContent != nil {
		set = append(set, fmt.Sprintf("log_content = $%d", argPos))
		args = append(args, *req.LogContent)
		argPos++
	}
	if req.RelatedMetrics != nil {
		set = append(set, fmt.Sprintf("related_metrics = $%d", argPos))
		args = append(args, []byte(req.RelatedMetrics))
		argPos++
	}
	if len(set) == 0 {
		return nil
	}

	set = append(set, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, time.Now().UTC())
	argPos++

	query := fmt.Sprintf("UPDATE activity_logs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update log: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a log row.
func (r *LogRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM activity_logs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
