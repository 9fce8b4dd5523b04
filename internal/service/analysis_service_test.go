package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type analysisFixture struct {
	svc        *AnalysisService
	candidates *moveCandidateRepoStub
	cache      *cacheRepoStub
}

func newAnalysisFixture(t *testing.T) *analysisFixture {
	t.Helper()
	school := &schoolDataStub{
		teachers: []models.Teacher{
			{ID: "teacher-1", SchoolID: "school-1", FullName: "Ava Stone", Active: true},
			{ID: "teacher-2", SchoolID: "school-1", FullName: "Ben Ortiz", Active: true},
			{ID: "teacher-3", SchoolID: "school-1", FullName: "Cara Voss", Active: false},
		},
		rooms: []models.Room{
			{ID: "room-1", Name: "R101", Capacity: 32},
			{ID: "room-2", Name: "R102", Capacity: 30},
		},
	}
	timetables := newTimetableStoreStub()
	timetables.timetables["tt-1"] = &models.Timetable{ID: "tt-1", SchoolID: "school-1", Status: models.TimetableStatusCompleted}

	candidates := &moveCandidateRepoStub{
		candidates: map[string]*models.Candidate{
			"cand-1": {ID: "cand-1", TimetableID: "tt-1", Rank: 1, Metrics: models.CandidateMetrics{GapCount: 2}},
		},
		assignments: map[string][]models.AssignmentDetail{
			"cand-1": {
				detail("a1", "class-1", "math", "teacher-1", "room-1", 0, 0),
				detail("a2", "class-1", "math", "teacher-1", "room-1", 0, 1),
				detail("a3", "class-2", "math", "teacher-1", "room-1", 1, 0),
				detail("a4", "class-2", "english", "teacher-2", "room-1", 0, 3),
			},
		},
	}
	cache := newCacheRepoStub()
	svc := NewAnalysisService(candidates, timetables, school,
		NewCacheService(cache, nil, time.Minute, zap.NewNop(), true),
		nil, zap.NewNop(), AnalysisConfig{Days: 5, PeriodsPerDay: 8})
	return &analysisFixture{svc: svc, candidates: candidates, cache: cache}
}

func TestAnalyzeComputesWorkloadsAndUsage(t *testing.T) {
	f := newAnalysisFixture(t)

	analysis, cacheHit, err := f.svc.Analyze(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)

	require.Len(t, analysis.TeacherWorkloads, 2, "inactive teachers stay out of the report")
	assert.Equal(t, "Ava Stone", analysis.TeacherWorkloads[0].TeacherName)
	assert.Equal(t, 3, analysis.TeacherWorkloads[0].Periods)
	assert.Equal(t, 2, analysis.TeacherWorkloads[0].DaysPresent)
	assert.Equal(t, "Ben Ortiz", analysis.TeacherWorkloads[1].TeacherName)
	assert.Equal(t, 1, analysis.TeacherWorkloads[1].Periods)

	require.Len(t, analysis.RoomUsage, 2)
	assert.Equal(t, "R101", analysis.RoomUsage[0].RoomName)
	assert.Equal(t, 4, analysis.RoomUsage[0].Periods)
	assert.InDelta(t, 10.0, analysis.RoomUsage[0].Utilization, 0.01)
	assert.Equal(t, 0, analysis.RoomUsage[1].Periods)
	assert.Zero(t, analysis.RoomUsage[1].Utilization)

	assert.Equal(t, map[int]int{0: 3, 1: 1}, analysis.DailyDistribution)
}

func TestAnalyzeRecommendations(t *testing.T) {
	f := newAnalysisFixture(t)

	analysis, _, err := f.svc.Analyze(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)

	require.Len(t, analysis.Recommendations, 5)
	assert.Contains(t, analysis.Recommendations[0], "Ava Stone has only 3 periods")
	assert.Contains(t, analysis.Recommendations[1], "Ben Ortiz has only 1 periods")
	assert.Contains(t, analysis.Recommendations[2], "Room R101 is used for 10.0%")
	assert.Contains(t, analysis.Recommendations[3], "Room R102 is used for 0.0%")
	assert.Contains(t, analysis.Recommendations[4], "2 idle gaps")
}

func TestAnalyzeFlagsOverloadedTeachers(t *testing.T) {
	f := newAnalysisFixture(t)
	rows := f.candidates.assignments["cand-1"]
	for day := 0; day < 5; day++ {
		for period := 0; period < 6; period++ {
			rows = append(rows, detail("x", "class-1", "math", "teacher-1", "room-1", day, period))
		}
	}
	f.candidates.assignments["cand-1"] = rows

	analysis, _, err := f.svc.Analyze(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	require.NotEmpty(t, analysis.Recommendations)
	assert.Contains(t, analysis.Recommendations[0], "above the high-load threshold of 25")
}

func TestAnalyzeServesCachedReport(t *testing.T) {
	f := newAnalysisFixture(t)

	first, cacheHit, err := f.svc.Analyze(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	require.Contains(t, f.cache.entries, "analysis:cand-1")

	// New assignments must not show up until the cache is invalidated.
	f.candidates.assignments["cand-1"] = append(f.candidates.assignments["cand-1"],
		detail("a5", "class-1", "math", "teacher-2", "room-2", 2, 0))

	second, cacheHit, err := f.svc.Analyze(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, first.TeacherWorkloads, second.TeacherWorkloads)

	delete(f.cache.entries, "analysis:cand-1")
	third, cacheHit, err := f.svc.Analyze(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, 2, third.TeacherWorkloads[1].Periods)
}

func TestAnalyzeUnknownCandidate(t *testing.T) {
	f := newAnalysisFixture(t)

	_, _, err := f.svc.Analyze(context.Background(), "cand-9", "school-1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestAnalyzeScopesBySchool(t *testing.T) {
	f := newAnalysisFixture(t)

	_, _, err := f.svc.Analyze(context.Background(), "cand-1", "school-2")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
