package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/internal/repository"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
	"github.com/saessak-edu/saessak-api/pkg/jobs"
	"github.com/saessak-edu/saessak-api/pkg/storage"
)

type fakeReportRepo struct {
	byID    map[string]*models.ReportJob
	updates []repository.UpdateReportJobParams
}

func newFakeReportRepo() *fakeReportRepo {
	return &fakeReportRepo{byID: map[string]*models.ReportJob{}}
}

func (f *fakeReportRepo) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = "rpt-1"
	}
	f.byID[job.ID] = job
	return nil
}

func (f *fakeReportRepo) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *job
	return &clone, nil
}

func (f *fakeReportRepo) Update(_ context.Context, id string, params repository.UpdateReportJobParams) error {
	job, ok := f.byID[id]
	if !ok {
		return sql.ErrNoRows
	}
	f.updates = append(f.updates, params)
	if params.Status != nil {
		job.Status = *params.Status
	}
	if params.FilePath != nil {
		job.FilePath = params.FilePath
	}
	if params.ErrorMessage != nil {
		job.ErrorMessage = params.ErrorMessage
	}
	if params.FinishedAt != nil {
		job.FinishedAt = params.FinishedAt
	}
	return nil
}

type fakeDispatcher struct {
	enqueued []jobs.Job
	err      error
}

func (f *fakeDispatcher) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, job)
	return nil
}

type fakeFileOpener struct {
	dir string
}

func (f *fakeFileOpener) Open(filename string) (*os.File, error) {
	return os.Open(filepath.Join(f.dir, filename))
}

func testReportService(repo reportJobStore, queue jobDispatcher, files reportFileOpener) *ReportService {
	return NewReportService(ReportServiceParams{
		Repo:     repo,
		Students: &fakeStudentLookup{students: map[string]*models.Student{"stu-1": {ID: "stu-1", Name: "민준"}}},
		Queue:    queue,
		Signer:   storage.NewSignedURLSigner("report-secret", time.Hour),
		Files:    files,
		Logger:   zap.NewNop(),
	})
}

func TestReportServiceCreateJob_Enqueues(t *testing.T) {
	repo := newFakeReportRepo()
	queue := &fakeDispatcher{}
	svc := testReportService(repo, queue, nil)

	job, err := svc.CreateJob(context.Background(), models.CreateReportRequest{
		StudentID: "stu-1",
		From:      "2025-03-01",
		To:        "2025-03-31",
	}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, job.Status)
	assert.Equal(t, models.ReportFormatMarkdown, job.Format)
	assert.Equal(t, "user-1", job.CreatedBy)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, job.ID, queue.enqueued[0].ID)
}

func TestReportServiceCreateJob_Validation(t *testing.T) {
	svc := testReportService(newFakeReportRepo(), &fakeDispatcher{}, nil)

	_, err := svc.CreateJob(context.Background(), models.CreateReportRequest{StudentID: "stu-1", From: "bad", To: "2025-03-31"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), models.CreateReportRequest{StudentID: "stu-1", From: "2025-04-01", To: "2025-03-01"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.CreateJob(context.Background(), models.CreateReportRequest{StudentID: "missing", From: "2025-03-01", To: "2025-03-31"}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestReportServiceCreateJob_EnqueueFailureMarksFailed(t *testing.T) {
	repo := newFakeReportRepo()
	svc := testReportService(repo, &fakeDispatcher{err: errors.New("queue full")}, nil)

	_, err := svc.CreateJob(context.Background(), models.CreateReportRequest{
		StudentID: "stu-1",
		From:      "2025-03-01",
		To:        "2025-03-31",
	}, "user-1")
	require.Error(t, err)
	require.Len(t, repo.byID, 1)
	for _, job := range repo.byID {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGet_AttachesDownloadURL(t *testing.T) {
	repo := newFakeReportRepo()
	path := "2025/03/rpt-1.md"
	finished := time.Now().UTC()
	repo.byID["rpt-1"] = &models.ReportJob{
		ID:         "rpt-1",
		StudentID:  "stu-1",
		Format:     models.ReportFormatMarkdown,
		Status:     models.ReportStatusFinished,
		FilePath:   &path,
		FinishedAt: &finished,
	}
	svc := testReportService(repo, &fakeDispatcher{}, nil)

	job, err := svc.Get(context.Background(), "rpt-1")
	require.NoError(t, err)
	require.NotNil(t, job.DownloadURL)
	assert.Contains(t, *job.DownloadURL, "/api/v1/reports/rpt-1/download?token=")
}

func TestReportServiceResolveDownload(t *testing.T) {
	dir := t.TempDir()
	relPath := "rpt-1.md"
	require.NoError(t, os.WriteFile(filepath.Join(dir, relPath), []byte("# 보고서"), 0o644))

	repo := newFakeReportRepo()
	repo.byID["rpt-1"] = &models.ReportJob{
		ID:       "rpt-1",
		Format:   models.ReportFormatMarkdown,
		Status:   models.ReportStatusFinished,
		FilePath: &relPath,
	}
	svc := testReportService(repo, &fakeDispatcher{}, &fakeFileOpener{dir: dir})

	signer := storage.NewSignedURLSigner("report-secret", time.Hour)
	token, _, err := signer.Generate("rpt-1", relPath)
	require.NoError(t, err)

	download, err := svc.ResolveDownload(context.Background(), "rpt-1", token)
	require.NoError(t, err)
	defer download.File.Close() //nolint:errcheck
	assert.Equal(t, "rpt-1.md", download.Filename)
	assert.Equal(t, "text/markdown; charset=utf-8", download.ContentType)

	_, err = svc.ResolveDownload(context.Background(), "other-report", token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = svc.ResolveDownload(context.Background(), "rpt-1", "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrLinkExpired.Code, appErrors.FromError(err).Code)
}

type fakeGenerator struct {
	relPath string
	err     error
}

func (f *fakeGenerator) Generate(context.Context, *models.ReportJob) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.relPath, nil
}

func TestReportWorkerHandle_Finishes(t *testing.T) {
	repo := newFakeReportRepo()
	repo.byID["rpt-1"] = &models.ReportJob{ID: "rpt-1", Status: models.ReportStatusQueued}
	worker := NewReportWorker(repo, &fakeGenerator{relPath: "2025/03/rpt-1.md"}, nil, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "rpt-1", Attempt: 1}))
	job := repo.byID["rpt-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	require.NotNil(t, job.FilePath)
	assert.Equal(t, "2025/03/rpt-1.md", *job.FilePath)
	require.NotNil(t, job.FinishedAt)
}

func TestReportWorkerHandle_RequeuesThenFails(t *testing.T) {
	repo := newFakeReportRepo()
	repo.byID["rpt-1"] = &models.ReportJob{ID: "rpt-1", Status: models.ReportStatusQueued}
	worker := NewReportWorker(repo, &fakeGenerator{err: errors.New("llm unavailable")}, nil, 2, zap.NewNop())

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "rpt-1", Attempt: 1}))
	assert.Equal(t, models.ReportStatusQueued, repo.byID["rpt-1"].Status)

	require.Error(t, worker.Handle(context.Background(), jobs.Job{ID: "rpt-1", Attempt: 2}))
	assert.Equal(t, models.ReportStatusFailed, repo.byID["rpt-1"].Status)
	require.NotNil(t, repo.byID["rpt-1"].ErrorMessage)
}
