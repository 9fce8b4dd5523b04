package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/solver"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type moveCandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	ListAssignments(ctx context.Context, candidateID string) ([]models.AssignmentDetail, error)
	UpdateAssignmentSlot(ctx context.Context, assignmentID string, day, period int) error
}

type moveObserver interface {
	ObserveMove(decision string)
}

// MoveServiceConfig fixes the grid the validator checks against.
type MoveServiceConfig struct {
	Days          int
	PeriodsPerDay int
}

// MoveService validates and applies manual drag-and-drop edits on a
// candidate timetable. Validation is a pure read; Apply serialises writers
// per candidate so concurrent edits cannot interleave between check and
// update.
type MoveService struct {
	candidates moveCandidateStore
	timetables timetableStore
	school     schoolDataStore
	cache      *CacheService
	observer   moveObserver
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        MoveServiceConfig

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewMoveService constructs the move validator. cache and observer may be
// nil.
func NewMoveService(candidates moveCandidateStore, timetables timetableStore, school schoolDataStore, cache *CacheService, observer moveObserver, validate *validator.Validate, logger *zap.Logger, cfg MoveServiceConfig) *MoveService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Days <= 0 {
		cfg.Days = 5
	}
	if cfg.PeriodsPerDay <= 0 {
		cfg.PeriodsPerDay = 8
	}
	return &MoveService{
		candidates: candidates,
		timetables: timetables,
		school:     school,
		cache:      cache,
		observer:   observer,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		locks:      make(map[string]*sync.Mutex),
	}
}

// Validate answers "may this lesson go there" without changing anything.
// Repeating the same request always yields the same decision.
func (s *MoveService) Validate(ctx context.Context, candidateID, schoolID string, req dto.MoveRequest) (*dto.MoveDecisionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	snap, assignments, err := s.loadMoveContext(ctx, candidateID, schoolID)
	if err != nil {
		return nil, err
	}
	decision := solver.ValidateMove(snap, assignments, solver.MoveRequest{
		AssignmentID: req.AssignmentID,
		Day:          req.Day,
		Period:       req.Period,
	})
	s.observe(decision.Accepted)
	return moveResponse(decision, false), nil
}

// Apply validates the move and, when accepted, persists the new slot and
// drops the candidate's cached analysis.
func (s *MoveService) Apply(ctx context.Context, candidateID, schoolID string, req dto.MoveRequest) (*dto.MoveDecisionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid move payload")
	}
	lock := s.lockFor(candidateID)
	lock.Lock()
	defer lock.Unlock()

	snap, assignments, err := s.loadMoveContext(ctx, candidateID, schoolID)
	if err != nil {
		return nil, err
	}
	decision := solver.ValidateMove(snap, assignments, solver.MoveRequest{
		AssignmentID: req.AssignmentID,
		Day:          req.Day,
		Period:       req.Period,
	})
	s.observe(decision.Accepted)
	if !decision.Accepted {
		return moveResponse(decision, false), nil
	}

	if err := s.candidates.UpdateAssignmentSlot(ctx, req.AssignmentID, req.Day, req.Period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist move")
	}
	if err := s.cache.Invalidate(ctx, "analysis:"+candidateID); err != nil {
		s.logger.Sugar().Warnw("failed to invalidate analysis cache", "candidate_id", candidateID, "error", err)
	}
	s.logger.Sugar().Infow("assignment moved",
		"candidate_id", candidateID,
		"assignment_id", req.AssignmentID,
		"day", req.Day,
		"period", req.Period,
	)
	return moveResponse(decision, true), nil
}

func (s *MoveService) loadMoveContext(ctx context.Context, candidateID, schoolID string) (*solver.Snapshot, []models.Assignment, error) {
	cand, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.ErrNotFound
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	tt, err := s.timetables.FindByID(ctx, cand.TimetableID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, nil, appErrors.ErrNotFound
	}

	details, err := s.candidates.ListAssignments(ctx, candidateID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	assignments := make([]models.Assignment, 0, len(details))
	for _, d := range details {
		assignments = append(assignments, d.Assignment)
	}

	input, err := loadSolverInput(ctx, s.school, tt.SchoolID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school data")
	}
	snap, err := solver.NewSnapshot(solver.NewGrid(s.cfg.Days, s.cfg.PeriodsPerDay), input)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "school data rejected")
	}
	return snap, assignments, nil
}

func (s *MoveService) lockFor(candidateID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[candidateID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[candidateID] = lock
	}
	return lock
}

func (s *MoveService) observe(accepted bool) {
	if s.observer == nil {
		return
	}
	if accepted {
		s.observer.ObserveMove("accepted")
	} else {
		s.observer.ObserveMove("rejected")
	}
}

func moveResponse(decision solver.MoveDecision, applied bool) *dto.MoveDecisionResponse {
	return &dto.MoveDecisionResponse{
		Accepted:   decision.Accepted,
		Applied:    applied,
		Constraint: decision.Constraint,
		Message:    decision.Message,
		Conflict:   decision.Conflict,
	}
}
