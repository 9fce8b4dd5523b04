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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/service"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type exportCoordinatorMock struct {
	job         *dto.ExportJobResponse
	createErr   error
	status      *dto.ExportStatusResponse
	statusErr   error
	download    *service.ExportDownload
	downloadErr error
	captured    struct {
		candidateID string
		schoolID    string
		actorID     string
		req         dto.ExportRequest
		token       string
	}
}

func (m *exportCoordinatorMock) CreateJob(_ context.Context, candidateID, schoolID string, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	m.captured.candidateID = candidateID
	m.captured.schoolID = schoolID
	m.captured.actorID = actorID
	m.captured.req = req
	return m.job, m.createErr
}

func (m *exportCoordinatorMock) GetStatus(_ context.Context, id, schoolID string) (*dto.ExportStatusResponse, error) {
	return m.status, m.statusErr
}

func (m *exportCoordinatorMock) ResolveDownload(_ context.Context, token string) (*service.ExportDownload, error) {
	m.captured.token = token
	return m.download, m.downloadErr
}

func newExportContext(t *testing.T, method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	if body != nil {
		c.Request = httptest.NewRequest(method, target, bytes.NewReader(body))
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", SchoolID: "school-1"})
	return c, rec
}

func TestExportHandlerCreateAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &exportCoordinatorMock{job: &dto.ExportJobResponse{ID: "job-1", Status: models.ExportStatusQueued}}
	handler := &ExportHandler{service: mock}

	c, rec := newExportContext(t, http.MethodPost, "/candidates/cand-1/exports", []byte(`{"format":"pdf"}`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Create(c)

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "cand-1", mock.captured.candidateID)
	assert.Equal(t, "school-1", mock.captured.schoolID)
	assert.Equal(t, "user-1", mock.captured.actorID)
	assert.Equal(t, models.ExportFormatPDF, mock.captured.req.Format)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data["id"])
	assert.Equal(t, "QUEUED", envelope.Data["status"])
}

func TestExportHandlerCreateMalformedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &exportCoordinatorMock{}
	handler := &ExportHandler{service: mock}

	c, rec := newExportContext(t, http.MethodPost, "/candidates/cand-1/exports", []byte(`{"format":`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Create(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, mock.captured.candidateID)
}

func TestExportHandlerStatusIncludesDownloadURL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	url := "/api/v1/exports/download/job-1.1756200000.dG9rZW4.abc"
	mock := &exportCoordinatorMock{status: &dto.ExportStatusResponse{
		ID:          "job-1",
		Status:      models.ExportStatusFinished,
		DownloadURL: &url,
	}}
	handler := &ExportHandler{service: mock}

	c, rec := newExportContext(t, http.MethodGet, "/exports/job-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "job-1"}}

	handler.Status(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "FINISHED", envelope.Data["status"])
	assert.Equal(t, url, envelope.Data["downloadUrl"])
}

func TestExportHandlerStatusNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ExportHandler{service: &exportCoordinatorMock{statusErr: appErrors.ErrNotFound}}

	c, rec := newExportContext(t, http.MethodGet, "/exports/missing", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Status(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportHandlerDownloadStreamsFile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	content := "Class,Subject,Teacher,Room,Day,Period\n10A,Mathematics,Ava Stone,R101,Monday,1\n"
	path := filepath.Join(t.TempDir(), "timetable.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	file, err := os.Open(path)
	require.NoError(t, err)

	mock := &exportCoordinatorMock{download: &service.ExportDownload{
		File:      file,
		Filename:  "timetable.csv",
		Format:    models.ExportFormatCSV,
		MimeType:  "text/csv",
		SizeBytes: int64(len(content)),
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	handler := &ExportHandler{service: mock}

	c, rec := newExportContext(t, http.MethodGet, "/exports/download/tok", nil)
	c.Params = gin.Params{{Key: "token", Value: "tok"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tok", mock.captured.token)
	assert.Equal(t, content, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="timetable.csv"`)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
}

func TestExportHandlerDownloadMissingToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ExportHandler{service: &exportCoordinatorMock{}}

	c, rec := newExportContext(t, http.MethodGet, "/exports/download/", nil)

	handler.Download(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportHandlerDownloadRejectedToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ExportHandler{service: &exportCoordinatorMock{
		downloadErr: appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token"),
	}}

	c, rec := newExportContext(t, http.MethodGet, "/exports/download/bad", nil)
	c.Params = gin.Params{{Key: "token", Value: "bad"}}

	handler.Download(c)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
