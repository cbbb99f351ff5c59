package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type uploadRepository interface {
	Create(ctx context.Context, upload *models.Upload) error
	GetByID(ctx context.Context, id string) (*models.Upload, error)
	List(ctx context.Context, filter models.UploadFilter) ([]models.Upload, int, error)
	SetRawText(ctx context.Context, id, rawText string, status models.UploadStatus) error
	SetStatus(ctx context.Context, id string, status models.UploadStatus) error
}

type uploadStorage interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
}

// StoreUploadParams carries an incoming document into the service.
type StoreUploadParams struct {
	FileName    string
	ContentType string
	SizeBytes   int64
	Reader      io.Reader
	UploadedBy  string
}

// UploadServiceParams bundles the dependencies for NewUploadService.
type UploadServiceParams struct {
	Repo         uploadRepository
	Storage      uploadStorage
	MaxSizeBytes int64
	AllowedMIMEs []string
	Logger       *zap.Logger
}

// UploadService manages intake of activity-record documents.
type UploadService struct {
	repo         uploadRepository
	storage      uploadStorage
	maxSizeBytes int64
	allowedMIMEs map[string]struct{}
	logger       *zap.Logger
}

// NewUploadService constructs the upload service.
func NewUploadService(params UploadServiceParams) *UploadService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxSize := params.MaxSizeBytes
	if maxSize <= 0 {
		maxSize = 10 * 1024 * 1024
	}
	allowed := make(map[string]struct{}, len(params.AllowedMIMEs))
	for _, mime := range params.AllowedMIMEs {
		mime = strings.ToLower(strings.TrimSpace(mime))
		if mime != "" {
			allowed[mime] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		allowed["application/pdf"] = struct{}{}
		allowed["text/plain"] = struct{}{}
	}
	return &UploadService{
		repo:         params.Repo,
		storage:      params.Storage,
		maxSizeBytes: maxSize,
		allowedMIMEs: allowed,
		logger:       logger,
	}
}

// Store validates and persists an uploaded document.
func (s *UploadService) Store(ctx context.Context, params StoreUploadParams) (*models.Upload, error) {
	if params.FileName == "" || params.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if params.SizeBytes > s.maxSizeBytes {
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds %d bytes", s.maxSizeBytes))
	}
	contentType := normalizeContentType(params.ContentType)
	if _, ok := s.allowedMIMEs[contentType]; !ok {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("content type %q is not accepted", contentType))
	}

	id := uuid.NewString()
	storagePath := filepath.Join(time.Now().UTC().Format("2006/01"), id+filepath.Ext(params.FileName))
	limited := io.LimitReader(params.Reader, s.maxSizeBytes+1)
	if _, err := s.storage.SaveStream(storagePath, limited); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}

	upload := &models.Upload{
		ID:          id,
		FileName:    params.FileName,
		StoragePath: storagePath,
		ContentType: contentType,
		SizeBytes:   params.SizeBytes,
		Status:      models.UploadStatusStored,
		UploadedBy:  params.UploadedBy,
	}
	if err := s.repo.Create(ctx, upload); err != nil {
		if cleanupErr := s.storage.Delete(storagePath); cleanupErr != nil {
			s.logger.Warn("failed to remove orphaned file", zap.String("path", storagePath), zap.Error(cleanupErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record upload")
	}
	return upload, nil
}

// Get returns one upload.
func (s *UploadService) Get(ctx context.Context, id string) (*models.Upload, error) {
	upload, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load upload")
	}
	return upload, nil
}

// List returns uploads and pagination metadata.
func (s *UploadService) List(ctx context.Context, filter models.UploadFilter) ([]models.Upload, *models.Pagination, error) {
	uploads, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list uploads")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return uploads, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// RawText resolves the document text used for extraction. Plain-text files
// are read from storage on first use; PDF uploads must carry client-supplied
// text because no server-side PDF text extraction is performed.
func (s *UploadService) RawText(ctx context.Context, id string, override string) (*models.Upload, string, error) {
	upload, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	text := strings.TrimSpace(override)
	if text == "" {
		text = strings.TrimSpace(upload.RawText)
	}
	if text == "" && upload.ContentType == "text/plain" {
		data, readErr := s.storage.Read(upload.StoragePath)
		if readErr != nil {
			return nil, "", appErrors.Wrap(readErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read stored file")
		}
		text = strings.TrimSpace(string(data))
	}
	if text == "" {
		return nil, "", appErrors.Clone(appErrors.ErrUnsupportedMedia, "no extractable text; supply raw_text for PDF uploads")
	}

	if upload.RawText != text {
		if err := s.repo.SetRawText(ctx, upload.ID, text, models.UploadStatusExtracted); err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist extracted text")
		}
		upload.RawText = text
		upload.Status = models.UploadStatusExtracted
	}
	return upload, text, nil
}

// MarkLogged marks an upload as converted into activity logs.
func (s *UploadService) MarkLogged(ctx context.Context, id string) error {
	if err := s.repo.SetStatus(ctx, id, models.UploadStatusLogged); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "upload not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update upload status")
	}
	return nil
}

func normalizeContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
