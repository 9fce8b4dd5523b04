package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type candidateStore interface {
	ListByTimetable(ctx context.Context, timetableID string, page, size int) ([]models.Candidate, int, error)
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	ListAssignments(ctx context.Context, candidateID string) ([]models.AssignmentDetail, error)
}

// CandidateService reads ranked candidates and their lesson grids.
type CandidateService struct {
	candidates candidateStore
	timetables timetableStore
	logger     *zap.Logger
}

// NewCandidateService constructs the service.
func NewCandidateService(candidates candidateStore, timetables timetableStore, logger *zap.Logger) *CandidateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CandidateService{candidates: candidates, timetables: timetables, logger: logger}
}

// List returns the ranked candidates of a timetable, best first.
func (s *CandidateService) List(ctx context.Context, timetableID, schoolID string, page, size int) ([]models.Candidate, *models.Pagination, error) {
	tt, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, nil, appErrors.ErrNotFound
	}
	candidates, total, err := s.candidates.ListByTimetable(ctx, timetableID, page, size)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list candidates")
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return candidates, pagination, nil
}

// Get returns one candidate with its expanded assignment rows.
func (s *CandidateService) Get(ctx context.Context, candidateID, schoolID string) (*dto.CandidateDetailResponse, error) {
	cand, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	tt, err := s.timetables.FindByID(ctx, cand.TimetableID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, appErrors.ErrNotFound
	}
	details, err := s.candidates.ListAssignments(ctx, cand.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	return &dto.CandidateDetailResponse{
		ID:          cand.ID,
		TimetableID: cand.TimetableID,
		Rank:        cand.Rank,
		Score:       cand.Score,
		Metrics:     cand.Metrics,
		CreatedAt:   cand.CreatedAt,
		Assignments: details,
	}, nil
}
