package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// CandidateRepository persists ranked timetable candidates and their
// assignments.
type CandidateRepository struct {
	db *sqlx.DB
}

// NewCandidateRepository constructs a CandidateRepository.
func NewCandidateRepository(db *sqlx.DB) *CandidateRepository {
	return &CandidateRepository{db: db}
}

const candidateColumns = `id, timetable_id, rank, score, metrics, fingerprint, created_at`

// ReplaceForTimetable swaps the candidate set of a timetable in one
// transaction. Assignments are aligned with candidates by index.
func (r *CandidateRepository) ReplaceForTimetable(ctx context.Context, timetableID string, candidates []models.Candidate, assignments [][]models.Assignment) error {
	if len(candidates) != len(assignments) {
		return fmt.Errorf("candidate/assignment count mismatch: %d vs %d", len(candidates), len(assignments))
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace candidates: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM assignments WHERE timetable_id = $1`, timetableID); err != nil {
		return fmt.Errorf("clear assignments: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM candidates WHERE timetable_id = $1`, timetableID); err != nil {
		return fmt.Errorf("clear candidates: %w", err)
	}

	now := time.Now().UTC()
	const insertCandidate = `INSERT INTO candidates (id, timetable_id, rank, score, metrics, fingerprint, created_at)
VALUES (:id, :timetable_id, :rank, :score, :metrics, :fingerprint, :created_at)`
	const insertAssignment = `INSERT INTO assignments (id, candidate_id, timetable_id, class_id, subject_id, teacher_id, room_id, day, period, created_at)
VALUES (:id, :candidate_id, :timetable_id, :class_id, :subject_id, :teacher_id, :room_id, :day, :period, :created_at)`

	for i := range candidates {
		cand := &candidates[i]
		if cand.ID == "" {
			cand.ID = uuid.NewString()
		}
		cand.TimetableID = timetableID
		if cand.CreatedAt.IsZero() {
			cand.CreatedAt = now
		}
		if _, err = sqlx.NamedExecContext(ctx, tx, insertCandidate, cand); err != nil {
			return fmt.Errorf("insert candidate: %w", err)
		}

		for j := range assignments[i] {
			a := &assignments[i][j]
			if a.ID == "" {
				a.ID = uuid.NewString()
			}
			a.CandidateID = cand.ID
			a.TimetableID = timetableID
			if a.CreatedAt.IsZero() {
				a.CreatedAt = now
			}
			if _, err = sqlx.NamedExecContext(ctx, tx, insertAssignment, a); err != nil {
				return fmt.Errorf("insert assignment: %w", err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit replace candidates: %w", err)
	}
	return nil
}

// ListByTimetable returns one page of candidates ordered by rank plus the
// total count.
func (r *CandidateRepository) ListByTimetable(ctx context.Context, timetableID string, page, size int) ([]models.Candidate, int, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE timetable_id = $1 ORDER BY rank ASC LIMIT %d OFFSET %d`, candidateColumns, size, offset)
	var candidates []models.Candidate
	if err := r.db.SelectContext(ctx, &candidates, query, timetableID); err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM candidates WHERE timetable_id = $1`, timetableID); err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}
	return candidates, total, nil
}

// FindByID fetches a candidate by ID.
func (r *CandidateRepository) FindByID(ctx context.Context, id string) (*models.Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE id = $1`, candidateColumns)
	var cand models.Candidate
	if err := r.db.GetContext(ctx, &cand, query, id); err != nil {
		return nil, err
	}
	return &cand, nil
}

// ListAssignments returns the full lesson grid of a candidate with the
// display names readers need.
func (r *CandidateRepository) ListAssignments(ctx context.Context, candidateID string) ([]models.AssignmentDetail, error) {
	const query = `SELECT a.id, a.candidate_id, a.timetable_id, a.class_id, a.subject_id, a.teacher_id, a.room_id, a.day, a.period, a.created_at,
c.name AS class_name, s.name AS subject_name, t.full_name AS teacher_name, rm.name AS room_name
FROM assignments a
JOIN classes c ON c.id = a.class_id
JOIN subjects s ON s.id = a.subject_id
JOIN teachers t ON t.id = a.teacher_id
JOIN rooms rm ON rm.id = a.room_id
WHERE a.candidate_id = $1
ORDER BY a.class_id ASC, a.day ASC, a.period ASC`
	var details []models.AssignmentDetail
	if err := r.db.SelectContext(ctx, &details, query, candidateID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return details, nil
}

// UpdateAssignmentSlot moves one assignment to a new day and period.
func (r *CandidateRepository) UpdateAssignmentSlot(ctx context.Context, assignmentID string, day, period int) error {
	const query = `UPDATE assignments SET day = $1, period = $2 WHERE id = $3`
	res, err := r.db.ExecContext(ctx, query, day, period, assignmentID)
	if err != nil {
		return fmt.Errorf("update assignment slot: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assignment %s not found", assignmentID)
	}
	return nil
}
