package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// GenerationJobRepository persists generation job metadata.
type GenerationJobRepository struct {
	db *sqlx.DB
}

// NewGenerationJobRepository constructs the repository.
func NewGenerationJobRepository(db *sqlx.DB) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

const generationJobColumns = `id, timetable_id, school_id, status, progress, phase, max_solutions, time_budget_seconds, requested_by, outcome, error_message, created_at, started_at, finished_at`

// Create inserts a new generation job row with generated defaults.
func (r *GenerationJobRepository) Create(ctx context.Context, job *models.GenerationJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.GenerationStatusQueued
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO generation_jobs (id, timetable_id, school_id, status, progress, phase, max_solutions, time_budget_seconds, requested_by, outcome, error_message, created_at, started_at, finished_at)
VALUES (:id, :timetable_id, :school_id, :status, :progress, :phase, :max_solutions, :time_budget_seconds, :requested_by, :outcome, :error_message, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create generation job: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *GenerationJobRepository) GetByID(ctx context.Context, id string) (*models.GenerationJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM generation_jobs WHERE id = $1`, generationJobColumns)
	var job models.GenerationJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get generation job: %w", err)
	}
	return &job, nil
}

// UpdateGenerationJobParams defines the mutable fields.
type UpdateGenerationJobParams struct {
	Status       *models.GenerationStatus
	Progress     *int
	Phase        *string
	Outcome      *models.GenerationOutcome
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

// Update persists the provided changes for a job row.
func (r *GenerationJobRepository) Update(ctx context.Context, id string, params UpdateGenerationJobParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	argPos := 1

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Progress != nil {
		set = append(set, fmt.Sprintf("progress = $%d", argPos))
		args = append(args, *params.Progress)
		argPos++
	}
	if params.Phase != nil {
		set = append(set, fmt.Sprintf("phase = $%d", argPos))
		args = append(args, *params.Phase)
		argPos++
	}
	if params.Outcome != nil {
		set = append(set, fmt.Sprintf("outcome = $%d", argPos))
		args = append(args, *params.Outcome)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.StartedAt != nil {
		set = append(set, fmt.Sprintf("started_at = $%d", argPos))
		args = append(args, *params.StartedAt)
		argPos++
	}
	if params.FinishedAt != nil {
		set = append(set, fmt.Sprintf("finished_at = $%d", argPos))
		args = append(args, *params.FinishedAt)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE generation_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update generation job: %w", err)
	}
	return nil
}

// FindActiveByTimetable returns the queued or running job of a timetable, if any.
func (r *GenerationJobRepository) FindActiveByTimetable(ctx context.Context, timetableID string) (*models.GenerationJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM generation_jobs
WHERE timetable_id = $1 AND status IN ('queued', 'running') ORDER BY created_at DESC LIMIT 1`, generationJobColumns)
	var job models.GenerationJob
	if err := r.db.GetContext(ctx, &job, query, timetableID); err != nil {
		return nil, err
	}
	return &job, nil
}

// ListUnfinished fetches jobs the process owned before a restart.
func (r *GenerationJobRepository) ListUnfinished(ctx context.Context, limit int) ([]models.GenerationJob, error) {
	if limit <= 0 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM generation_jobs
WHERE status IN ('queued', 'running') ORDER BY created_at ASC LIMIT $1`, generationJobColumns)
	var jobs []models.GenerationJob
	if err := r.db.SelectContext(ctx, &jobs, query, limit); err != nil {
		return nil, fmt.Errorf("list unfinished generation jobs: %w", err)
	}
	return jobs, nil
}

// DeleteFinishedBefore removes terminal jobs older than the cutoff and
// reports how many rows went away.
func (r *GenerationJobRepository) DeleteFinishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM generation_jobs
WHERE finished_at IS NOT NULL AND finished_at < $1`
	res, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete finished generation jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("count deleted generation jobs: %w", err)
	}
	return n, nil
}
