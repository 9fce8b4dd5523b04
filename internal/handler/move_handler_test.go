package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/middleware"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type moveDeciderMock struct {
	validateResp *dto.MoveDecisionResponse
	validateErr  error
	applyResp    *dto.MoveDecisionResponse
	applyErr     error
	captured     struct {
		candidateID string
		schoolID    string
		req         dto.MoveRequest
	}
}

func (m *moveDeciderMock) Validate(_ context.Context, candidateID, schoolID string, req dto.MoveRequest) (*dto.MoveDecisionResponse, error) {
	m.captured.candidateID = candidateID
	m.captured.schoolID = schoolID
	m.captured.req = req
	return m.validateResp, m.validateErr
}

func (m *moveDeciderMock) Apply(_ context.Context, candidateID, schoolID string, req dto.MoveRequest) (*dto.MoveDecisionResponse, error) {
	m.captured.candidateID = candidateID
	m.captured.schoolID = schoolID
	m.captured.req = req
	return m.applyResp, m.applyErr
}

func newMoveContext(t *testing.T, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", SchoolID: "school-1"})
	return c, rec
}

func TestMoveHandlerValidateAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &moveDeciderMock{validateResp: &dto.MoveDecisionResponse{Accepted: true}}
	handler := &MoveHandler{service: mock}

	c, rec := newMoveContext(t, "/candidates/cand-1/moves/validate", []byte(`{"assignmentId":"a1","day":2,"period":4}`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Validate(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cand-1", mock.captured.candidateID)
	assert.Equal(t, "school-1", mock.captured.schoolID)
	assert.Equal(t, "a1", mock.captured.req.AssignmentID)
	assert.Equal(t, 2, mock.captured.req.Day)
	assert.Equal(t, 4, mock.captured.req.Period)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Data["accepted"])
}

func TestMoveHandlerValidateRejectionStaysOK(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &moveDeciderMock{validateResp: &dto.MoveDecisionResponse{
		Accepted:   false,
		Constraint: "teacher_conflict",
		Message:    "teacher already booked in that slot",
	}}
	handler := &MoveHandler{service: mock}

	c, rec := newMoveContext(t, "/candidates/cand-1/moves/validate", []byte(`{"assignmentId":"a1","day":0,"period":0}`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Validate(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["accepted"])
	assert.Equal(t, "teacher_conflict", envelope.Data["constraint"])
}

func TestMoveHandlerValidateMalformedPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &MoveHandler{service: &moveDeciderMock{}}

	c, rec := newMoveContext(t, "/candidates/cand-1/moves/validate", []byte(`{"assignmentId":`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Validate(c)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMoveHandlerApplyAccepted(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &moveDeciderMock{applyResp: &dto.MoveDecisionResponse{Accepted: true, Applied: true}}
	handler := &MoveHandler{service: mock}

	c, rec := newMoveContext(t, "/candidates/cand-1/moves", []byte(`{"assignmentId":"a1","day":1,"period":3}`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Apply(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Data["applied"])
}

func TestMoveHandlerApplyRejectionConflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &moveDeciderMock{applyResp: &dto.MoveDecisionResponse{
		Accepted:   false,
		Applied:    false,
		Constraint: "room_conflict",
	}}
	handler := &MoveHandler{service: mock}

	c, rec := newMoveContext(t, "/candidates/cand-1/moves", []byte(`{"assignmentId":"a1","day":1,"period":3}`))
	c.Params = gin.Params{{Key: "id", Value: "cand-1"}}

	handler.Apply(c)

	require.Equal(t, http.StatusConflict, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, false, envelope.Data["accepted"])
	assert.Equal(t, "room_conflict", envelope.Data["constraint"])
}

func TestMoveHandlerApplyUnknownCandidate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &MoveHandler{service: &moveDeciderMock{applyErr: appErrors.ErrNotFound}}

	c, rec := newMoveContext(t, "/candidates/missing/moves", []byte(`{"assignmentId":"a1","day":1,"period":3}`))
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Apply(c)

	require.Equal(t, http.StatusNotFound, rec.Code)
}
