package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type explanationCandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	ListByTimetable(ctx context.Context, timetableID string, page, size int) ([]models.Candidate, int, error)
}

// ExplanationService turns a candidate's stored metrics into a short prose
// rationale for its rank. The text is a pure function of persisted data, so
// the same candidate always gets the same explanation.
type ExplanationService struct {
	candidates explanationCandidateStore
	timetables timetableStore
	cache      *CacheService
	logger     *zap.Logger
	cacheTTL   time.Duration
}

// NewExplanationService constructs the explainer. cache may be nil.
func NewExplanationService(candidates explanationCandidateStore, timetables timetableStore, cache *CacheService, logger *zap.Logger, cacheTTL time.Duration) *ExplanationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Hour
	}
	return &ExplanationService{
		candidates: candidates,
		timetables: timetables,
		cache:      cache,
		logger:     logger,
		cacheTTL:   cacheTTL,
	}
}

// Explain describes why a candidate earned its rank. The boolean reports
// whether the result came from cache.
func (s *ExplanationService) Explain(ctx context.Context, candidateID, schoolID string) (*dto.ExplanationResponse, bool, error) {
	key := "explanation:" + candidateID
	var cached dto.ExplanationResponse
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	cand, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.ErrNotFound
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	tt, err := s.timetables.FindByID(ctx, cand.TimetableID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, false, appErrors.ErrNotFound
	}

	ranked, total, err := s.candidates.ListByTimetable(ctx, cand.TimetableID, 1, 1)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ranking")
	}
	var best *models.Candidate
	if len(ranked) > 0 {
		best = &ranked[0]
	}

	resp := &dto.ExplanationResponse{
		CandidateID: cand.ID,
		Explanation: buildExplanation(cand, best, total, tt.GenerationMetrics.Partial),
		GeneratedAt: time.Now().UTC(),
	}
	if err := s.cache.Set(ctx, key, resp, s.cacheTTL); err != nil {
		s.logger.Sugar().Debugw("explanation cache write failed", "candidate_id", candidateID, "error", err)
	}
	return resp, false, nil
}

func buildExplanation(cand, best *models.Candidate, total int, partial bool) string {
	m := cand.Metrics
	var lines []string

	lines = append(lines, fmt.Sprintf("This timetable ranks %d of %d with a score of %.1f.", cand.Rank, total, cand.Score))
	lines = append(lines, fmt.Sprintf("It places %d lessons over %d periods using %d teachers and %d rooms.",
		m.TotalAssignments, m.ScheduledPeriods, m.TeachersUsed, m.RoomsUsed))

	if m.GapCount == 0 {
		lines = append(lines, "No teacher or class sits through an idle gap between lessons.")
	} else {
		lines = append(lines, fmt.Sprintf("Teachers and classes sit through %d idle gaps in total.", m.GapCount))
	}

	if m.PreferenceViolations == 0 {
		lines = append(lines, "Every teacher scheduling preference is honoured.")
	} else {
		lines = append(lines, fmt.Sprintf("%d teacher preferences could not be honoured.", m.PreferenceViolations))
	}
	if m.LastPeriodViolations > 0 {
		lines = append(lines, fmt.Sprintf("%d lessons fall on a period the teacher asked to avoid at the end of the day.", m.LastPeriodViolations))
	}

	if m.WorkloadStdev < 2 {
		lines = append(lines, fmt.Sprintf("Teacher workloads are evenly balanced (standard deviation %.2f).", m.WorkloadStdev))
	} else {
		lines = append(lines, fmt.Sprintf("Teacher workloads vary noticeably (standard deviation %.2f).", m.WorkloadStdev))
	}

	if cand.Rank == 1 {
		if total > 1 {
			lines = append(lines, "It is the strongest of all generated layouts.")
		}
	} else if best != nil {
		diff := best.Score - cand.Score
		reasons := rankDeltaReasons(m, best.Metrics)
		if len(reasons) > 0 {
			lines = append(lines, fmt.Sprintf("It trails the top-ranked layout by %.1f points because it has %s.", diff, joinReasons(reasons)))
		} else {
			lines = append(lines, fmt.Sprintf("It trails the top-ranked layout by %.1f points on overall balance.", diff))
		}
	}

	if partial {
		lines = append(lines, "The search stopped at its budget, so better layouts may still exist.")
	}
	return strings.Join(lines, " ")
}

func rankDeltaReasons(m, best models.CandidateMetrics) []string {
	var reasons []string
	if d := m.GapCount - best.GapCount; d > 0 {
		reasons = append(reasons, fmt.Sprintf("%d more idle gaps", d))
	}
	if d := m.PreferenceViolations - best.PreferenceViolations; d > 0 {
		reasons = append(reasons, fmt.Sprintf("%d more preference violations", d))
	}
	if d := m.LastPeriodViolations - best.LastPeriodViolations; d > 0 {
		reasons = append(reasons, fmt.Sprintf("%d more lessons on avoided last periods", d))
	}
	return reasons
}

func joinReasons(reasons []string) string {
	switch len(reasons) {
	case 1:
		return reasons[0]
	case 2:
		return reasons[0] + " and " + reasons[1]
	default:
		return strings.Join(reasons[:len(reasons)-1], ", ") + " and " + reasons[len(reasons)-1]
	}
}
