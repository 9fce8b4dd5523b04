package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

type explanationRepoStub struct {
	candidates map[string]*models.Candidate
}

func (r *explanationRepoStub) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	cand, ok := r.candidates[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *cand
	return &copied, nil
}

func (r *explanationRepoStub) ListByTimetable(ctx context.Context, timetableID string, page, size int) ([]models.Candidate, int, error) {
	var all []models.Candidate
	for _, cand := range r.candidates {
		if cand.TimetableID == timetableID {
			all = append(all, *cand)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Rank < all[j].Rank })
	total := len(all)
	if size > 0 && len(all) > size {
		all = all[:size]
	}
	return all, total, nil
}

func newExplanationFixture(t *testing.T, partial bool) (*ExplanationService, *explanationRepoStub, *cacheRepoStub) {
	t.Helper()
	timetables := newTimetableStoreStub()
	timetables.timetables["tt-1"] = &models.Timetable{
		ID:                "tt-1",
		SchoolID:          "school-1",
		Status:            models.TimetableStatusCompleted,
		GenerationMetrics: models.GenerationMetrics{Partial: partial},
	}
	repo := &explanationRepoStub{
		candidates: map[string]*models.Candidate{
			"cand-1": {
				ID: "cand-1", TimetableID: "tt-1", Rank: 1, Score: 130.5,
				Metrics: models.CandidateMetrics{
					TotalAssignments: 10, ScheduledPeriods: 12, TeachersUsed: 3, RoomsUsed: 2,
					GapCount: 1, WorkloadStdev: 0.5, TotalScore: 130.5,
				},
			},
			"cand-2": {
				ID: "cand-2", TimetableID: "tt-1", Rank: 2, Score: 120.0,
				Metrics: models.CandidateMetrics{
					TotalAssignments: 10, ScheduledPeriods: 12, TeachersUsed: 3, RoomsUsed: 2,
					GapCount: 3, PreferenceViolations: 1, WorkloadStdev: 2.4, TotalScore: 120.0,
				},
			},
		},
	}
	cache := newCacheRepoStub()
	svc := NewExplanationService(repo, timetables,
		NewCacheService(cache, nil, time.Minute, zap.NewNop(), true),
		zap.NewNop(), time.Minute)
	return svc, repo, cache
}

func TestExplainTopRankedCandidate(t *testing.T) {
	svc, _, _ := newExplanationFixture(t, false)

	resp, cacheHit, err := svc.Explain(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	assert.Equal(t, "cand-1", resp.CandidateID)
	assert.Contains(t, resp.Explanation, "ranks 1 of 2 with a score of 130.5")
	assert.Contains(t, resp.Explanation, "places 10 lessons over 12 periods using 3 teachers and 2 rooms")
	assert.Contains(t, resp.Explanation, "1 idle gaps")
	assert.Contains(t, resp.Explanation, "Every teacher scheduling preference is honoured.")
	assert.Contains(t, resp.Explanation, "evenly balanced (standard deviation 0.50)")
	assert.Contains(t, resp.Explanation, "strongest of all generated layouts")
	assert.NotContains(t, resp.Explanation, "budget")
}

func TestExplainLowerRankedCandidateNamesTheGap(t *testing.T) {
	svc, _, _ := newExplanationFixture(t, false)

	resp, _, err := svc.Explain(context.Background(), "cand-2", "school-1")
	require.NoError(t, err)
	assert.Contains(t, resp.Explanation, "ranks 2 of 2")
	assert.Contains(t, resp.Explanation, "trails the top-ranked layout by 10.5 points")
	assert.Contains(t, resp.Explanation, "2 more idle gaps and 1 more preference violations")
	assert.Contains(t, resp.Explanation, "vary noticeably (standard deviation 2.40)")
}

func TestExplainMentionsExhaustedBudget(t *testing.T) {
	svc, _, _ := newExplanationFixture(t, true)

	resp, _, err := svc.Explain(context.Background(), "cand-1", "school-1")
	require.NoError(t, err)
	assert.Contains(t, resp.Explanation, "search stopped at its budget")
}

func TestExplainIsDeterministicViaCache(t *testing.T) {
	svc, repo, cache := newExplanationFixture(t, false)

	first, cacheHit, err := svc.Explain(context.Background(), "cand-2", "school-1")
	require.NoError(t, err)
	assert.False(t, cacheHit)
	require.Contains(t, cache.entries, "explanation:cand-2")

	repo.candidates["cand-2"].Score = 50
	second, cacheHit, err := svc.Explain(context.Background(), "cand-2", "school-1")
	require.NoError(t, err)
	assert.True(t, cacheHit)
	assert.Equal(t, first.Explanation, second.Explanation)
}
