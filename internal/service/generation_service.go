package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/repository"
	"github.com/noah-isme/eduschedule-api/internal/solver"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/jobs"
)

// Generation run phases surfaced to polling clients. Percentages are coarse
// checkpoints, not a linear estimate.
const (
	phaseQueued       = "queued"
	phaseFetchingData = "fetching_data"
	phaseInitializing = "initializing_solver"
	phaseSolving      = "solving"
	phaseSaving       = "saving"
	phaseFinalizing   = "finalizing"
	phaseCompleted    = "completed"
)

type timetableStore interface {
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error
	SetDefaultCandidate(ctx context.Context, id string, candidateID *string) error
	UpdateGenerationMetrics(ctx context.Context, id string, metrics models.GenerationMetrics) error
}

type generationJobStore interface {
	Create(ctx context.Context, job *models.GenerationJob) error
	GetByID(ctx context.Context, id string) (*models.GenerationJob, error)
	Update(ctx context.Context, id string, params repository.UpdateGenerationJobParams) error
	FindActiveByTimetable(ctx context.Context, timetableID string) (*models.GenerationJob, error)
	ListUnfinished(ctx context.Context, limit int) ([]models.GenerationJob, error)
	DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type candidateWriter interface {
	ReplaceForTimetable(ctx context.Context, timetableID string, candidates []models.Candidate, assignments [][]models.Assignment) error
}

type schoolDataStore interface {
	ListTeachers(ctx context.Context, schoolID string) ([]models.Teacher, error)
	ListQualifications(ctx context.Context, schoolID string) ([]models.TeacherSubject, error)
	ListRooms(ctx context.Context, schoolID string) ([]models.Room, error)
	ListSubjects(ctx context.Context, schoolID string) ([]models.Subject, error)
	ListClasses(ctx context.Context, schoolID string) ([]models.Class, error)
	ListCurriculum(ctx context.Context, schoolID string) ([]models.ClassSubject, error)
}

type progressMirror interface {
	Set(ctx context.Context, jobID string, p repository.Progress) error
	Get(ctx context.Context, jobID string) (repository.Progress, bool, error)
	Delete(ctx context.Context, jobID string) error
}

type generationDispatcher interface {
	TryEnqueue(job jobs.Job) error
}

type generationObserver interface {
	ObserveGeneration(outcome string, seconds float64, nodes int64)
}

// GenerationConfig tunes solver runs and job housekeeping.
type GenerationConfig struct {
	Days            int
	PeriodsPerDay   int
	MaxSolutions    int
	TimeBudget      time.Duration
	NodeBudget      int64
	Weights         solver.Weights
	CleanupInterval time.Duration
	CleanupMaxAge   time.Duration
}

// GenerationService coordinates timetable generation jobs: it owns the job
// lifecycle, runs the solver inside the worker pool and persists ranked
// candidates.
type GenerationService struct {
	timetables timetableStore
	repo       generationJobStore
	candidates candidateWriter
	school     schoolDataStore
	progress   progressMirror
	queue      generationDispatcher
	observer   generationObserver
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        GenerationConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewGenerationService constructs the coordinator.
func NewGenerationService(timetables timetableStore, repo generationJobStore, candidates candidateWriter, school schoolDataStore, progress progressMirror, queue generationDispatcher, observer generationObserver, validate *validator.Validate, logger *zap.Logger, cfg GenerationConfig) *GenerationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSolutions <= 0 {
		cfg.MaxSolutions = 5
	}
	if cfg.TimeBudget <= 0 {
		cfg.TimeBudget = 5 * time.Minute
	}
	if (cfg.Weights == solver.Weights{}) {
		cfg.Weights = solver.DefaultWeights()
	}
	if cfg.CleanupMaxAge <= 0 {
		cfg.CleanupMaxAge = 30 * 24 * time.Hour
	}
	return &GenerationService{
		timetables: timetables,
		repo:       repo,
		candidates: candidates,
		school:     school,
		progress:   progress,
		queue:      queue,
		observer:   observer,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		cancels:    make(map[string]context.CancelFunc),
	}
}

// Trigger validates the timetable, persists a queued job and hands it to the
// worker pool. A full queue is surfaced so clients can back off.
func (s *GenerationService) Trigger(ctx context.Context, timetableID, schoolID string, req dto.GenerateRequest, actorID string) (*models.GenerationJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid generate payload")
	}
	tt, err := s.timetables.FindByID(ctx, timetableID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, appErrors.ErrNotFound
	}

	if active, err := s.repo.FindActiveByTimetable(ctx, timetableID); err == nil && active != nil {
		return nil, appErrors.Clone(appErrors.ErrGenerationActive, "a generation job is already queued or running for this timetable")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active jobs")
	}

	maxSolutions := req.MaxSolutions
	if maxSolutions <= 0 {
		maxSolutions = s.cfg.MaxSolutions
	}
	budgetSeconds := req.TimeBudgetSeconds
	if budgetSeconds <= 0 {
		budgetSeconds = int(s.cfg.TimeBudget / time.Second)
	}

	job := &models.GenerationJob{
		TimetableID:       timetableID,
		SchoolID:          tt.SchoolID,
		Status:            models.GenerationStatusQueued,
		Phase:             phaseQueued,
		MaxSolutions:      maxSolutions,
		TimeBudgetSeconds: budgetSeconds,
		RequestedBy:       actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation job")
	}

	if err := s.queue.TryEnqueue(jobs.Job{ID: job.ID, Type: "timetable_generation"}); err != nil {
		failed := models.GenerationStatusFailed
		msg := "queue full, job rejected"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{
			Status:       &failed,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		if errors.Is(err, jobs.ErrFull) {
			return nil, appErrors.Clone(appErrors.ErrQueueFull, "generation queue is full, retry later")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue generation job")
	}

	if err := s.timetables.UpdateStatus(ctx, timetableID, models.TimetableStatusGenerating); err != nil {
		s.logger.Sugar().Warnw("failed to mark timetable generating", "timetable_id", timetableID, "error", err)
	}
	s.mirror(ctx, job.ID, string(models.GenerationStatusQueued), phaseQueued, 0)
	return job, nil
}

// Status returns job state, preferring the live Redis mirror for jobs still
// in flight.
func (s *GenerationService) Status(ctx context.Context, jobID, schoolID string) (*dto.GenerationStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	if schoolID != "" && job.SchoolID != schoolID {
		return nil, appErrors.ErrNotFound
	}

	resp := &dto.GenerationStatusResponse{
		ID:          job.ID,
		TimetableID: job.TimetableID,
		Status:      job.Status,
		Progress:    job.Progress,
		Phase:       job.Phase,
		CreatedAt:   job.CreatedAt,
		StartedAt:   job.StartedAt,
		FinishedAt:  job.FinishedAt,
	}
	if job.Status.Terminal() {
		outcome := job.Outcome
		resp.Outcome = &outcome
		if job.ErrorMessage != nil && *job.ErrorMessage != "" {
			resp.Error = job.ErrorMessage
		}
		return resp, nil
	}
	if s.progress != nil {
		if live, ok, err := s.progress.Get(ctx, jobID); err == nil && ok {
			resp.Progress = live.Percent
			resp.Phase = live.Phase
		}
	}
	return resp, nil
}

// Cancel stops a queued or running job. Running jobs are interrupted through
// their context; nothing from the interrupted run is persisted.
func (s *GenerationService) Cancel(ctx context.Context, jobID, schoolID string) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load generation job")
	}
	if schoolID != "" && job.SchoolID != schoolID {
		return appErrors.ErrNotFound
	}
	if job.Status.Terminal() {
		return appErrors.Clone(appErrors.ErrJobNotCancellable, fmt.Sprintf("job already %s", job.Status))
	}

	s.mu.Lock()
	cancel, running := s.cancels[jobID]
	s.mu.Unlock()
	if running {
		cancel()
		return nil
	}

	// Queued, or orphaned by a crashed process: settle the row directly.
	cancelled := models.GenerationStatusCancelled
	now := time.Now().UTC()
	if err := s.repo.Update(ctx, jobID, repository.UpdateGenerationJobParams{
		Status:     &cancelled,
		FinishedAt: &now,
	}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel generation job")
	}
	if err := s.timetables.UpdateStatus(ctx, job.TimetableID, models.TimetableStatusCancelled); err != nil {
		s.logger.Sugar().Warnw("failed to mark timetable cancelled", "timetable_id", job.TimetableID, "error", err)
	}
	s.dropMirror(ctx, jobID)
	return nil
}

// Handle is the worker entry point: it runs one generation job end to end.
// Bookkeeping writes use the pool context so a cancelled run can still record
// its terminal state.
func (s *GenerationService) Handle(ctx context.Context, qj jobs.Job) error {
	job, err := s.repo.GetByID(ctx, qj.ID)
	if err != nil {
		return err
	}
	if job.Status != models.GenerationStatusQueued {
		s.logger.Sugar().Infow("skipping generation job", "job_id", job.ID, "status", job.Status)
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.registerCancel(job.ID, cancel)
	defer s.unregisterCancel(job.ID)
	defer cancel()

	started := time.Now().UTC()
	running := models.GenerationStatusRunning
	if err := s.repo.Update(ctx, job.ID, repository.UpdateGenerationJobParams{Status: &running, StartedAt: &started}); err != nil {
		return err
	}
	s.phase(ctx, job.ID, phaseFetchingData, 10)

	input, err := loadSolverInput(runCtx, s.school, job.SchoolID)
	if err != nil {
		s.finishFailed(ctx, job, fmt.Errorf("load school data: %w", err))
		return nil
	}

	s.phase(ctx, job.ID, phaseInitializing, 20)
	snap, err := solver.NewSnapshot(solver.NewGrid(s.cfg.Days, s.cfg.PeriodsPerDay), input)
	if err != nil {
		s.finishFailed(ctx, job, fmt.Errorf("school data rejected: %w", err))
		return nil
	}

	s.phase(ctx, job.ID, phaseSolving, 30)
	res := solver.Solve(runCtx, snap, solver.Options{
		MaxSolutions: job.MaxSolutions,
		TimeBudget:   time.Duration(job.TimeBudgetSeconds) * time.Second,
		NodeBudget:   s.cfg.NodeBudget,
	})

	switch res.Outcome {
	case solver.OutcomeCancelled:
		s.finishCancelled(ctx, job, res)
		return nil
	case solver.OutcomeInfeasible:
		s.finishInfeasible(ctx, job, res)
		return nil
	}

	ranked := solver.Rank(snap, res.Solutions, s.cfg.Weights)
	if len(ranked) == 0 {
		// Budget ran dry before the first complete timetable.
		s.finishTerminal(ctx, job, models.GenerationStatusTimedOut, models.TimetableStatusTimedOut, outcomeRecord(res, 0), nil)
		return nil
	}

	s.phase(ctx, job.ID, phaseSaving, 70)
	candidates, assignments := buildCandidateRows(job.TimetableID, ranked)
	if err := s.candidates.ReplaceForTimetable(ctx, job.TimetableID, candidates, assignments); err != nil {
		s.finishFailed(ctx, job, fmt.Errorf("persist candidates: %w", err))
		return nil
	}

	s.phase(ctx, job.ID, phaseFinalizing, 95)
	defaultID := candidates[0].ID
	if err := s.timetables.SetDefaultCandidate(ctx, job.TimetableID, &defaultID); err != nil {
		s.logger.Sugar().Warnw("failed to set default candidate", "timetable_id", job.TimetableID, "error", err)
	}
	if err := s.timetables.UpdateGenerationMetrics(ctx, job.TimetableID, timetableMetrics(ranked, res)); err != nil {
		s.logger.Sugar().Warnw("failed to store generation metrics", "timetable_id", job.TimetableID, "error", err)
	}

	jobStatus := models.GenerationStatusCompleted
	ttStatus := models.TimetableStatusCompleted
	if res.Outcome == solver.OutcomeBudget {
		jobStatus = models.GenerationStatusTimedOut
		ttStatus = models.TimetableStatusTimedOut
	}
	s.finishTerminal(ctx, job, jobStatus, ttStatus, outcomeRecord(res, len(ranked)), nil)
	return nil
}

// RecoverPending requeues jobs that never started and fails runs orphaned by
// a restart, since their in-memory search state is gone.
func (s *GenerationService) RecoverPending(ctx context.Context) {
	pending, err := s.repo.ListUnfinished(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list unfinished generation jobs", "error", err)
		return
	}
	for i := range pending {
		job := pending[i]
		switch job.Status {
		case models.GenerationStatusQueued:
			if err := s.queue.TryEnqueue(jobs.Job{ID: job.ID, Type: "timetable_generation"}); err != nil {
				s.logger.Sugar().Warnw("failed to requeue generation job", "job_id", job.ID, "error", err)
			}
		case models.GenerationStatusRunning:
			s.finishFailed(ctx, &job, fmt.Errorf("interrupted by restart"))
		}
	}
}

// StartCleanup boots a goroutine that prunes terminal jobs past the
// retention window.
func (s *GenerationService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().UTC().Add(-s.cfg.CleanupMaxAge)
				if n, err := s.repo.DeleteFinishedBefore(ctx, cutoff); err != nil {
					s.logger.Sugar().Warnw("generation job cleanup failed", "error", err)
				} else if n > 0 {
					s.logger.Sugar().Infow("pruned old generation jobs", "count", n)
				}
			}
		}
	}()
}

// loadSolverInput gathers the six school datasets a snapshot is built from.
func loadSolverInput(ctx context.Context, store schoolDataStore, schoolID string) (solver.Input, error) {
	var in solver.Input
	var err error
	if in.Teachers, err = store.ListTeachers(ctx, schoolID); err != nil {
		return in, err
	}
	if in.Qualifications, err = store.ListQualifications(ctx, schoolID); err != nil {
		return in, err
	}
	if in.Rooms, err = store.ListRooms(ctx, schoolID); err != nil {
		return in, err
	}
	if in.Subjects, err = store.ListSubjects(ctx, schoolID); err != nil {
		return in, err
	}
	if in.Classes, err = store.ListClasses(ctx, schoolID); err != nil {
		return in, err
	}
	if in.Curriculum, err = store.ListCurriculum(ctx, schoolID); err != nil {
		return in, err
	}
	return in, nil
}

func (s *GenerationService) finishInfeasible(ctx context.Context, job *models.GenerationJob, res solver.Result) {
	s.finishTerminal(ctx, job, models.GenerationStatusInfeasible, models.TimetableStatusInfeasible, outcomeRecord(res, 0), nil)
}

func (s *GenerationService) finishCancelled(ctx context.Context, job *models.GenerationJob, res solver.Result) {
	s.finishTerminal(ctx, job, models.GenerationStatusCancelled, models.TimetableStatusCancelled, outcomeRecord(res, 0), nil)
}

func (s *GenerationService) finishFailed(ctx context.Context, job *models.GenerationJob, cause error) {
	s.logger.Sugar().Errorw("generation job failed", "job_id", job.ID, "error", cause)
	msg := cause.Error()
	s.finishTerminal(ctx, job, models.GenerationStatusFailed, models.TimetableStatusFailed, models.GenerationOutcome{}, &msg)
}

func (s *GenerationService) finishTerminal(ctx context.Context, job *models.GenerationJob, status models.GenerationStatus, ttStatus models.TimetableStatus, outcome models.GenerationOutcome, errMsg *string) {
	now := time.Now().UTC()
	progress := 100
	phase := phaseCompleted
	params := repository.UpdateGenerationJobParams{
		Status:     &status,
		Progress:   &progress,
		Phase:      &phase,
		Outcome:    &outcome,
		FinishedAt: &now,
	}
	if errMsg != nil {
		params.ErrorMessage = errMsg
	}
	if err := s.repo.Update(ctx, job.ID, params); err != nil {
		s.logger.Sugar().Errorw("failed to finalise generation job", "job_id", job.ID, "status", status, "error", err)
	}
	if err := s.timetables.UpdateStatus(ctx, job.TimetableID, ttStatus); err != nil {
		s.logger.Sugar().Warnw("failed to update timetable status", "timetable_id", job.TimetableID, "error", err)
	}
	// The job row is authoritative once terminal; the live mirror is only noise from here.
	s.dropMirror(ctx, job.ID)
	if s.observer != nil {
		s.observer.ObserveGeneration(string(status), outcome.SolveSeconds, outcome.NodesExplored)
	}
	s.logger.Sugar().Infow("generation job finished",
		"job_id", job.ID,
		"timetable_id", job.TimetableID,
		"status", status,
		"solutions", outcome.SolutionsFound,
		"candidates", outcome.CandidatesKept,
		"nodes", outcome.NodesExplored,
		"solve_seconds", outcome.SolveSeconds,
	)
}

func (s *GenerationService) phase(ctx context.Context, jobID, phase string, percent int) {
	if err := s.repo.Update(ctx, jobID, repository.UpdateGenerationJobParams{Phase: &phase, Progress: &percent}); err != nil {
		s.logger.Sugar().Warnw("failed to update job phase", "job_id", jobID, "phase", phase, "error", err)
	}
	s.mirror(ctx, jobID, string(models.GenerationStatusRunning), phase, percent)
}

func (s *GenerationService) mirror(ctx context.Context, jobID, status, phase string, percent int) {
	if s.progress == nil {
		return
	}
	p := repository.Progress{Status: status, Phase: phase, Percent: percent, UpdatedAt: time.Now().UTC()}
	if err := s.progress.Set(ctx, jobID, p); err != nil {
		s.logger.Sugar().Debugw("progress mirror write failed", "job_id", jobID, "error", err)
	}
}

func (s *GenerationService) dropMirror(ctx context.Context, jobID string) {
	if s.progress == nil {
		return
	}
	if err := s.progress.Delete(ctx, jobID); err != nil {
		s.logger.Sugar().Debugw("progress mirror delete failed", "job_id", jobID, "error", err)
	}
}

func (s *GenerationService) registerCancel(jobID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancels[jobID] = cancel
	s.mu.Unlock()
}

func (s *GenerationService) unregisterCancel(jobID string) {
	s.mu.Lock()
	delete(s.cancels, jobID)
	s.mu.Unlock()
}

func outcomeRecord(res solver.Result, kept int) models.GenerationOutcome {
	return models.GenerationOutcome{
		Infeasibilities: res.Infeasibilities,
		DominantPrune:   res.Stats.DominantPrune(),
		NodesExplored:   res.Stats.Nodes,
		Backtracks:      res.Stats.Backtracks,
		SolutionsFound:  len(res.Solutions),
		CandidatesKept:  kept,
		SolveSeconds:    res.Stats.Elapsed.Seconds(),
		Partial:         res.Outcome == solver.OutcomeBudget,
	}
}

func buildCandidateRows(timetableID string, ranked []solver.RankedCandidate) ([]models.Candidate, [][]models.Assignment) {
	candidates := make([]models.Candidate, 0, len(ranked))
	assignments := make([][]models.Assignment, 0, len(ranked))
	for _, rc := range ranked {
		candidates = append(candidates, models.Candidate{
			TimetableID: timetableID,
			Rank:        rc.Rank,
			Score:       rc.Metrics.TotalScore,
			Metrics:     rc.Metrics,
			Fingerprint: rc.Fingerprint,
		})
		rows := make([]models.Assignment, 0, len(rc.Placements))
		for _, p := range rc.Placements {
			rows = append(rows, models.Assignment{
				TimetableID: timetableID,
				ClassID:     p.ClassID,
				SubjectID:   p.SubjectID,
				TeacherID:   p.TeacherID,
				RoomID:      p.RoomID,
				Day:         p.Day,
				Period:      p.Period,
			})
		}
		assignments = append(assignments, rows)
	}
	return candidates, assignments
}

func timetableMetrics(ranked []solver.RankedCandidate, res solver.Result) models.GenerationMetrics {
	best := ranked[0]
	return models.GenerationMetrics{
		CandidateCount:   len(ranked),
		BestScore:        best.Metrics.TotalScore,
		ScheduledPeriods: best.Metrics.ScheduledPeriods,
		TeachersUsed:     best.Metrics.TeachersUsed,
		WorkloadStdev:    best.Metrics.WorkloadStdev,
		SolveSeconds:     res.Stats.Elapsed.Seconds(),
		NodesExplored:    res.Stats.Nodes,
		Partial:          res.Outcome == solver.OutcomeBudget,
	}
}
