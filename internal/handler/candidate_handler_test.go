package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type candidateReaderMock struct {
	list       []models.Candidate
	pagination *models.Pagination
	listErr    error
	detail     *dto.CandidateDetailResponse
	detailErr  error
	captured   struct {
		timetableID string
		schoolID    string
		page        int
		size        int
	}
}

func (m *candidateReaderMock) List(_ context.Context, timetableID, schoolID string, page, size int) ([]models.Candidate, *models.Pagination, error) {
	m.captured.timetableID = timetableID
	m.captured.schoolID = schoolID
	m.captured.page = page
	m.captured.size = size
	return m.list, m.pagination, m.listErr
}

func (m *candidateReaderMock) Get(_ context.Context, candidateID, schoolID string) (*dto.CandidateDetailResponse, error) {
	return m.detail, m.detailErr
}

type candidateAnalyzerMock struct {
	analysis *models.CandidateAnalysis
	cacheHit bool
	err      error
}

func (m *candidateAnalyzerMock) Analyze(_ context.Context, candidateID, schoolID string) (*models.CandidateAnalysis, bool, error) {
	return m.analysis, m.cacheHit, m.err
}

type candidateExplainerMock struct {
	explanation *dto.ExplanationResponse
	cacheHit    bool
	err         error
}

func (m *candidateExplainerMock) Explain(_ context.Context, candidateID, schoolID string) (*dto.ExplanationResponse, bool, error) {
	return m.explanation, m.cacheHit, m.err
}

func newCandidateContext(t *testing.T, target string) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", SchoolID: "school-1"})
	return c, rec
}

func TestCandidateHandlerListPassesPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &candidateReaderMock{
		list: []models.Candidate{
			{ID: "cand-1", TimetableID: "tt-1", Rank: 1, Score: 130.5},
			{ID: "cand-2", TimetableID: "tt-1", Rank: 2, Score: 120},
		},
		pagination: &models.Pagination{Page: 2, PageSize: 5, TotalCount: 12},
	}
	handler := &CandidateHandler{candidates: mock}

	c, rec := newCandidateContext(t, "/timetables/tt-1/candidates?page=2&limit=5")
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "tt-1", mock.captured.timetableID)
	assert.Equal(t, "school-1", mock.captured.schoolID)
	assert.Equal(t, 2, mock.captured.page)
	assert.Equal(t, 5, mock.captured.size)

	var envelope struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination map[string]interface{}   `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 2)
	assert.Equal(t, "cand-1", envelope.Data[0]["id"])
	assert.Equal(t, float64(12), envelope.Pagination["total_count"])
}

func TestCandidateHandlerListDefaultsPaging(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &candidateReaderMock{pagination: &models.Pagination{Page: 1, PageSize: 10}}
	handler := &CandidateHandler{candidates: mock}

	c, rec := newCandidateContext(t, "/timetables/tt-1/candidates?page=abc")
	c.Params = gin.Params{{Key: "id", Value: "tt-1"}}

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, mock.captured.page)
	assert.Equal(t, 10, mock.captured.size)
}

func TestCandidateHandlerListUnknownTimetable(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &CandidateHandler{candidates: &candidateReaderMock{listErr: appErrors.ErrNotFound}}

	c, rec := newCandidateContext(t, "/timetables/missing/candidates")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.List(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCandidateHandlerGetDetail(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &candidateReaderMock{detail: &dto.CandidateDetailResponse{
		ID:          "cand-1",
		TimetableID: "tt-1",
		Rank:        1,
		Score:       130.5,
		Assignments: []models.AssignmentDetail{{}},
	}}
	handler := &CandidateHandler{candidates: mock}

	c, rec := newCandidateContext(t, "/candidates/cand-1")
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Get(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "cand-1", envelope.Data["id"])
	assert.Equal(t, float64(1), envelope.Data["rank"])
}

func TestCandidateHandlerAnalysis(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &candidateAnalyzerMock{
		analysis: &models.CandidateAnalysis{
			CandidateID:     "cand-1",
			Recommendations: []string{"Balance Monday load"},
			GeneratedAt:     time.Now().UTC(),
		},
		cacheHit: true,
	}
	handler := &CandidateHandler{analysis: mock}

	c, rec := newCandidateContext(t, "/candidates/cand-1/analysis")
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Analysis(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "cand-1", envelope.Data["candidate_id"])
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestCandidateHandlerExplanation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &candidateExplainerMock{explanation: &dto.ExplanationResponse{
		CandidateID: "cand-1",
		Explanation: "Ranked #1 out of 3 candidates.",
		GeneratedAt: time.Now().UTC(),
	}}
	handler := &CandidateHandler{explanation: mock}

	c, rec := newCandidateContext(t, "/candidates/cand-1/explanation")
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Explanation(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Contains(t, envelope.Data["explanation"], "Ranked #1")
	assert.Equal(t, false, envelope.Meta["cache_hit"])
}

type responseEnvelope struct {
	Data map[string]interface{} `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}
