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

// UploadRepository persists uploaded activity documents and their text.
type UploadRepository struct {
	db *sqlx.DB
}

// NewUploadRepository constructs an UploadRepository.
func NewUploadRepository(db *sqlx.DB) *UploadRepository {
	return &UploadRepository{db: db}
}

// Create inserts a new upload row with generated defaults.
func (r *UploadRepository) Create(ctx context.Context, upload *models.Upload) error {
	if upload.ID == "" {
		upload.ID = uuid.NewString()
	}
	if upload.Status == "" {
		upload.Status = models.UploadStatusStored
	}
	now := time.Now().UTC()
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	upload.UpdatedAt = now
	const query = `INSERT INTO uploads (id, file_name, storage_path, content_type, size_bytes, raw_text, status, uploaded_by, created_at, updated_at)
VALUES (:id, :file_name, :storage_path, :content_type, :size_bytes, :raw_text, :status, :uploaded_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, upload); err != nil {
		return fmt.Errorf("create upload: %w", err)
	}
	return nil
}

// GetByID returns one upload row.
func (r *UploadRepository) GetByID(ctx context.Context, id string) (*models.Upload, error) {
	const query = `SELECT id, file_name, storage_path, content_type, size_bytes, raw_text, status, uploaded_by, created_at, updated_at FROM uploads WHERE id = $1`
	var upload models.Upload
	if err := r.db.GetContext(ctx, &upload, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get upload: %w", err)
	}
	return &upload, nil
}

// List returns uploads matching the filter, newest first.
func (r *UploadRepository) List(ctx context.Context, filter models.UploadFilter) ([]models.Upload, int, error) {
	base := "FROM uploads u"
	args := []interface{}{}
	conditions := []string{"1=1"}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("u.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT u.id, u.file_name, u.storage_path, u.content_type, u.size_bytes, u.raw_text, u.status, u.uploaded_by, u.created_at, u.updated_at
        %s ORDER BY u.created_at DESC LIMIT %d OFFSET %d`, base, size, offset)

	var uploads []models.Upload
	if err := r.db.SelectContext(ctx, &uploads, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}
	return uploads, total, nil
}

// SetRawText stores extracted text and advances the status.
func (r *UploadRepository) SetRawText(ctx context.Context, id, rawText string, status models.UploadStatus) error {
	const query = `UPDATE uploads SET raw_text = $2, status = $3, updated_at = $4 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, rawText, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set upload text: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetStatus advances the upload lifecycle.
func (r *UploadRepository) SetStatus(ctx context.Context, id string, status models.UploadStatus) error {
	const query = `UPDATE uploads SET status = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set upload status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
