package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// TimetableRepository manages persistence for timetables.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs a TimetableRepository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// FindByID fetches a timetable by ID.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.Timetable, error) {
	const query = `SELECT id, school_id, term, name, status, default_candidate_id, generation_metrics, created_at, updated_at
FROM timetables WHERE id = $1`
	var tt models.Timetable
	if err := r.db.GetContext(ctx, &tt, query, id); err != nil {
		return nil, err
	}
	return &tt, nil
}

// UpdateStatus moves the timetable into the given lifecycle state.
func (r *TimetableRepository) UpdateStatus(ctx context.Context, id string, status models.TimetableStatus) error {
	const query = `UPDATE timetables SET status = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, status, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update timetable status: %w", err)
	}
	return nil
}

// SetDefaultCandidate records which candidate readers see by default.
func (r *TimetableRepository) SetDefaultCandidate(ctx context.Context, id string, candidateID *string) error {
	const query = `UPDATE timetables SET default_candidate_id = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, candidateID, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set default candidate: %w", err)
	}
	return nil
}

// UpdateGenerationMetrics stores the aggregate result of the last run.
func (r *TimetableRepository) UpdateGenerationMetrics(ctx context.Context, id string, metrics models.GenerationMetrics) error {
	const query = `UPDATE timetables SET generation_metrics = $1, updated_at = $2 WHERE id = $3`
	if _, err := r.db.ExecContext(ctx, query, metrics, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("update generation metrics: %w", err)
	}
	return nil
}
