package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/solver"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type moveCandidateRepoStub struct {
	candidates  map[string]*models.Candidate
	assignments map[string][]models.AssignmentDetail
	updated     []string
	updateErr   error
}

func (r *moveCandidateRepoStub) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	cand, ok := r.candidates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *cand
	return &copied, nil
}

func (r *moveCandidateRepoStub) ListAssignments(ctx context.Context, candidateID string) ([]models.AssignmentDetail, error) {
	return r.assignments[candidateID], nil
}

func (r *moveCandidateRepoStub) UpdateAssignmentSlot(ctx context.Context, assignmentID string, day, period int) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.updated = append(r.updated, assignmentID)
	return nil
}

type cacheRepoStub struct {
	entries  map[string][]byte
	patterns []string
}

func newCacheRepoStub() *cacheRepoStub {
	return &cacheRepoStub{entries: map[string][]byte{}}
}

func (c *cacheRepoStub) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(data, dest)
}

func (c *cacheRepoStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return nil
}

func (c *cacheRepoStub) DeleteByPattern(ctx context.Context, pattern string) error {
	c.patterns = append(c.patterns, pattern)
	return nil
}

func detail(id, classID, subjectID, teacherID, roomID string, day, period int) models.AssignmentDetail {
	return models.AssignmentDetail{
		Assignment: models.Assignment{
			ID:          id,
			CandidateID: "cand-1",
			TimetableID: "tt-1",
			ClassID:     classID,
			SubjectID:   subjectID,
			TeacherID:   teacherID,
			RoomID:      roomID,
			Day:         day,
			Period:      period,
		},
	}
}

type moveFixture struct {
	svc        *MoveService
	candidates *moveCandidateRepoStub
	cache      *cacheRepoStub
}

func newMoveFixture(t *testing.T) *moveFixture {
	t.Helper()
	school := solvableSchool()
	school.classes = append(school.classes, models.Class{ID: "class-2", Name: "10B", StudentCount: 27})
	school.curriculum = append(school.curriculum, models.ClassSubject{ClassID: "class-2", SubjectID: "math"})
	school.rooms = append(school.rooms, models.Room{ID: "room-2", Name: "R102", Capacity: 30})

	timetables := newTimetableStoreStub()
	timetables.timetables["tt-1"] = &models.Timetable{
		ID:       "tt-1",
		SchoolID: "school-1",
		Status:   models.TimetableStatusCompleted,
	}

	candidates := &moveCandidateRepoStub{
		candidates: map[string]*models.Candidate{
			"cand-1": {ID: "cand-1", TimetableID: "tt-1", Rank: 1},
		},
		assignments: map[string][]models.AssignmentDetail{
			"cand-1": {
				detail("a1", "class-1", "math", "teacher-1", "room-1", 0, 0),
				detail("a2", "class-2", "math", "teacher-1", "room-2", 0, 2),
			},
		},
	}
	cache := newCacheRepoStub()
	svc := NewMoveService(candidates, timetables, school,
		NewCacheService(cache, nil, time.Minute, zap.NewNop(), true),
		nil, nil, zap.NewNop(), MoveServiceConfig{Days: 5, PeriodsPerDay: 8})
	return &moveFixture{svc: svc, candidates: candidates, cache: cache}
}

func TestMoveValidateAcceptsFreeSlot(t *testing.T) {
	f := newMoveFixture(t)

	resp, err := f.svc.Validate(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 1, Period: 0})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.False(t, resp.Applied)
	assert.Empty(t, f.candidates.updated)
}

func TestMoveValidateRejectsTeacherConflict(t *testing.T) {
	f := newMoveFixture(t)

	resp, err := f.svc.Validate(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 0, Period: 2})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.Equal(t, solver.ConstraintTeacherBusy, resp.Constraint)
	assert.Equal(t, "Teacher has another class at this time.", resp.Message)
	require.NotNil(t, resp.Conflict)
	assert.Equal(t, "a2", resp.Conflict.ID)
}

func TestMoveValidateRejectsSlotOutsideGrid(t *testing.T) {
	f := newMoveFixture(t)

	resp, err := f.svc.Validate(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 5, Period: 0})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.Equal(t, solver.ConstraintSlotOutOfRange, resp.Constraint)
}

func TestMoveValidateRejectsMalformedRequest(t *testing.T) {
	f := newMoveFixture(t)

	_, err := f.svc.Validate(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 8, Period: 0})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestMoveValidateUnknownAssignment(t *testing.T) {
	f := newMoveFixture(t)

	resp, err := f.svc.Validate(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a9", Day: 1, Period: 0})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.Equal(t, solver.ConstraintUnknownAssignment, resp.Constraint)
}

func TestMoveValidateUnknownCandidate(t *testing.T) {
	f := newMoveFixture(t)

	_, err := f.svc.Validate(context.Background(), "cand-9", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 1, Period: 0})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMoveValidateScopesBySchool(t *testing.T) {
	f := newMoveFixture(t)

	_, err := f.svc.Validate(context.Background(), "cand-1", "school-2", dto.MoveRequest{AssignmentID: "a1", Day: 1, Period: 0})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestMoveApplyPersistsAcceptedMove(t *testing.T) {
	f := newMoveFixture(t)

	resp, err := f.svc.Apply(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 1, Period: 0})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.True(t, resp.Applied)
	require.Len(t, f.candidates.updated, 1)
	assert.Equal(t, "a1", f.candidates.updated[0])
	require.Len(t, f.cache.patterns, 1)
	assert.Equal(t, "analysis:cand-1", f.cache.patterns[0])
}

func TestMoveApplyLeavesRejectedMoveUntouched(t *testing.T) {
	f := newMoveFixture(t)

	resp, err := f.svc.Apply(context.Background(), "cand-1", "school-1", dto.MoveRequest{AssignmentID: "a1", Day: 0, Period: 2})
	require.NoError(t, err)
	assert.False(t, resp.Accepted)
	assert.False(t, resp.Applied)
	assert.Empty(t, f.candidates.updated)
	assert.Empty(t, f.cache.patterns)
}
