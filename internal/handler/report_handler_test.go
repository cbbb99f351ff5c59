package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/saessak-edu/saessak-api/internal/middleware"
	"github.com/saessak-edu/saessak-api/internal/models"
	"github.com/saessak-edu/saessak-api/internal/service"
	appErrors "github.com/saessak-edu/saessak-api/pkg/errors"
)

type reportServiceMock struct {
	createResp  *models.ReportJob
	createErr   error
	createdBy   string
	getResp     *models.ReportJob
	getErr      error
	download    *service.ReportDownload
	downloadErr error
}

func (m *reportServiceMock) CreateJob(_ context.Context, _ models.CreateReportRequest, createdBy string) (*models.ReportJob, error) {
	m.createdBy = createdBy
	return m.createResp, m.createErr
}

func (m *reportServiceMock) Get(context.Context, string) (*models.ReportJob, error) {
	return m.getResp, m.getErr
}

func (m *reportServiceMock) ResolveDownload(context.Context, string, string) (*service.ReportDownload, error) {
	return m.download, m.downloadErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestReportHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &reportServiceMock{
		createResp: &models.ReportJob{ID: "rpt-1", Status: models.ReportStatusQueued},
	}
	handler := NewReportHandler(mockSvc)

	payload, _ := json.Marshal(models.CreateReportRequest{StudentID: "stu-1", From: "2025-03-01", To: "2025-03-31"})
	c, w := newGinContext(http.MethodPost, "/reports", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1"})

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Equal(t, "user-1", mockSvc.createdBy)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, "rpt-1", envelope.Data["id"])
}

func TestReportHandlerCreateInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodPost, "/reports", []byte("{not json"))
	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerGet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/reports/rpt-1/download?token=abc"
	mockSvc := &reportServiceMock{
		getResp: &models.ReportJob{ID: "rpt-1", Status: models.ReportStatusFinished, DownloadURL: &url},
	}
	handler := NewReportHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/reports/rpt-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "rpt-1"}}

	handler.Get(c)

	require.Equal(t, http.StatusOK, w.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, url, envelope.Data["download_url"])
}

func TestReportHandlerDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{})

	c, w := newGinContext(http.MethodGet, "/reports/rpt-1/download", nil)
	c.Params = gin.Params{{Key: "id", Value: "rpt-1"}}

	handler.Download(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportHandlerDownloadStreamsFile(t *testing.T) {
	gin.SetMode(gin.TestMode)

	path := filepath.Join(t.TempDir(), "rpt-1.md")
	require.NoError(t, os.WriteFile(path, []byte("# 보고서"), 0o600))
	file, err := os.Open(path)
	require.NoError(t, err)

	handler := NewReportHandler(&reportServiceMock{
		download: &service.ReportDownload{
			File:        file,
			Filename:    "rpt-1.md",
			ContentType: "text/markdown; charset=utf-8",
			SizeBytes:   int64(len("# 보고서")),
			ExpiresAt:   time.Now().Add(time.Hour),
		},
	})

	c, w := newGinContext(http.MethodGet, "/reports/rpt-1/download?token=tok", nil)
	c.Params = gin.Params{{Key: "id", Value: "rpt-1"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "# 보고서", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Disposition"), "rpt-1.md")
}

func TestReportHandlerDownloadExpiredToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewReportHandler(&reportServiceMock{
		downloadErr: appErrors.Clone(appErrors.ErrLinkExpired, "invalid or expired download token"),
	})

	c, w := newGinContext(http.MethodGet, "/reports/rpt-1/download?token=stale", nil)
	c.Params = gin.Params{{Key: "id", Value: "rpt-1"}}

	handler.Download(c)

	require.Equal(t, http.StatusGone, w.Code)
}
