package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/models"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type fakeUploadRepo struct {
	byID    map[string]*models.Upload
	created []*models.Upload
}

func newFakeUploadRepo() *fakeUploadRepo {
	return &fakeUploadRepo{byID: map[string]*models.Upload{}}
}

func (f *fakeUploadRepo) Create(_ context.Context, upload *models.Upload) error {
	if upload.Status == "" {
		upload.Status = models.UploadStatusStored
	}
	f.created = append(f.created, upload)
	f.byID[upload.ID] = upload
	return nil
}

func (f *fakeUploadRepo) GetByID(_ context.Context, id string) (*models.Upload, error) {
	upload, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *upload
	return &clone, nil
}

func (f *fakeUploadRepo) List(_ context.Context, _ models.UploadFilter) ([]models.Upload, int, error) {
	out := make([]models.Upload, 0, len(f.byID))
	for _, upload := range f.byID {
		out = append(out, *upload)
	}
	return out, len(out), nil
}

func (f *fakeUploadRepo) SetRawText(_ context.Context, id, rawText string, status models.UploadStatus) error {
	upload, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	upload.RawText = rawText
	upload.Status = status
	return nil
}

func (f *fakeUploadRepo) SetStatus(_ context.Context, id string, status models.UploadStatus) error {
	upload, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	upload.Status = status
	return nil
}

type fakeUploadStorage struct {
	files   map[string][]byte
	saveErr error
	deleted []string
}

func newFakeUploadStorage() *fakeUploadStorage {
	return &fakeUploadStorage{files: map[string][]byte{}}
}

func (f *fakeUploadStorage) SaveStream(filename string, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.files[filename] = data
	return filename, nil
}

func (f *fakeUploadStorage) Read(filename string) ([]byte, error) {
	data, ok := f.files[filename]
	if !ok {
		return nil, fmt.Errorf("file %s not found", filename)
	}
	return data, nil
}

func (f *fakeUploadStorage) Delete(filename string) error {
	delete(f.files, filename)
	f.deleted = append(f.deleted, filename)
	return nil
}

func testUploadService(repo uploadRepository, store uploadStorage) *UploadService {
	return NewUploadService(UploadServiceParams{
		Repo:         repo,
		Storage:      store,
		MaxSizeBytes: 1024,
		AllowedMIMEs: []string{"application/pdf", "text/plain"},
		Logger:       zap.NewNop(),
	})
}

func TestUploadServiceStore_Success(t *testing.T) {
	repo := newFakeUploadRepo()
	store := newFakeUploadStorage()
	svc := testUploadService(repo, store)

	upload, err := svc.Store(context.Background(), StoreUploadParams{
		FileName:    "record.txt",
		ContentType: "text/plain; charset=utf-8",
		SizeBytes:   12,
		Reader:      strings.NewReader("활동 기록 내용"),
		UploadedBy:  "user-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, upload.ID)
	assert.Equal(t, models.UploadStatusStored, upload.Status)
	assert.Equal(t, "text/plain", upload.ContentType)
	assert.Contains(t, store.files, upload.StoragePath)
	require.Len(t, repo.created, 1)
}

func TestUploadServiceStore_RejectsOversize(t *testing.T) {
	svc := testUploadService(newFakeUploadRepo(), newFakeUploadStorage())
	_, err := svc.Store(context.Background(), StoreUploadParams{
		FileName:    "big.pdf",
		ContentType: "application/pdf",
		SizeBytes:   4096,
		Reader:      strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrFileTooLarge.Code, appErrors.FromError(err).Code)
}

func TestUploadServiceStore_RejectsUnsupportedMIME(t *testing.T) {
	svc := testUploadService(newFakeUploadRepo(), newFakeUploadStorage())
	_, err := svc.Store(context.Background(), StoreUploadParams{
		FileName:    "photo.png",
		ContentType: "image/png",
		SizeBytes:   10,
		Reader:      strings.NewReader("x"),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)
}

func TestUploadServiceRawText_ReadsPlainTextFile(t *testing.T) {
	repo := newFakeUploadRepo()
	store := newFakeUploadStorage()
	svc := testUploadService(repo, store)

	upload, err := svc.Store(context.Background(), StoreUploadParams{
		FileName:    "record.txt",
		ContentType: "text/plain",
		SizeBytes:   10,
		Reader:      strings.NewReader("  3월 2일 수확 활동  "),
	})
	require.NoError(t, err)

	refreshed, text, err := svc.RawText(context.Background(), upload.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "3월 2일 수확 활동", text)
	assert.Equal(t, models.UploadStatusExtracted, refreshed.Status)
	assert.Equal(t, models.UploadStatusExtracted, repo.byID[upload.ID].Status)
}

func TestUploadServiceRawText_PDFRequiresOverride(t *testing.T) {
	repo := newFakeUploadRepo()
	store := newFakeUploadStorage()
	svc := testUploadService(repo, store)

	upload, err := svc.Store(context.Background(), StoreUploadParams{
		FileName:    "record.pdf",
		ContentType: "application/pdf",
		SizeBytes:   10,
		Reader:      strings.NewReader("%PDF-1.4"),
	})
	require.NoError(t, err)

	_, _, err = svc.RawText(context.Background(), upload.ID, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnsupportedMedia.Code, appErrors.FromError(err).Code)

	_, text, err := svc.RawText(context.Background(), upload.ID, "문서에서 옮긴 텍스트")
	require.NoError(t, err)
	assert.Equal(t, "문서에서 옮긴 텍스트", text)
}

func TestUploadServiceMarkLogged(t *testing.T) {
	repo := newFakeUploadRepo()
	svc := testUploadService(repo, newFakeUploadStorage())

	upload, err := svc.Store(context.Background(), StoreUploadParams{
		FileName:    "record.txt",
		ContentType: "text/plain",
		SizeBytes:   5,
		Reader:      strings.NewReader("기록"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.MarkLogged(context.Background(), upload.ID))
	assert.Equal(t, models.UploadStatusLogged, repo.byID[upload.ID].Status)

	err = svc.MarkLogged(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
