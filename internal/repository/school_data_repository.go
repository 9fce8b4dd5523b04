package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// SchoolDataRepository reads the scheduling inputs of one school: teachers,
// qualifications, rooms, subjects, classes and the curriculum linking them.
type SchoolDataRepository struct {
	db *sqlx.DB
}

// NewSchoolDataRepository constructs the repository.
func NewSchoolDataRepository(db *sqlx.DB) *SchoolDataRepository {
	return &SchoolDataRepository{db: db}
}

// ListTeachers returns every teacher of the school, including inactive ones.
func (r *SchoolDataRepository) ListTeachers(ctx context.Context, schoolID string) ([]models.Teacher, error) {
	const query = `SELECT id, school_id, email, full_name, active, constraints, created_at, updated_at
FROM teachers WHERE school_id = $1 ORDER BY full_name ASC`
	var teachers []models.Teacher
	if err := r.db.SelectContext(ctx, &teachers, query, schoolID); err != nil {
		return nil, fmt.Errorf("list teachers: %w", err)
	}
	return teachers, nil
}

// ListQualifications returns the teacher-subject links of the school.
func (r *SchoolDataRepository) ListQualifications(ctx context.Context, schoolID string) ([]models.TeacherSubject, error) {
	const query = `SELECT ts.teacher_id, ts.subject_id, ts.created_at
FROM teacher_subjects ts
JOIN teachers t ON t.id = ts.teacher_id
WHERE t.school_id = $1`
	var quals []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &quals, query, schoolID); err != nil {
		return nil, fmt.Errorf("list qualifications: %w", err)
	}
	return quals, nil
}

// ListRooms returns the rooms of the school.
func (r *SchoolDataRepository) ListRooms(ctx context.Context, schoolID string) ([]models.Room, error) {
	const query = `SELECT id, school_id, name, capacity, room_type, created_at, updated_at
FROM rooms WHERE school_id = $1 ORDER BY name ASC`
	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, schoolID); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// ListSubjects returns the subjects of the school.
func (r *SchoolDataRepository) ListSubjects(ctx context.Context, schoolID string) ([]models.Subject, error) {
	const query = `SELECT id, school_id, code, name, periods_per_week, consecutive, block_length, created_at, updated_at
FROM subjects WHERE school_id = $1 ORDER BY name ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, schoolID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// ListClasses returns the classes of the school.
func (r *SchoolDataRepository) ListClasses(ctx context.Context, schoolID string) ([]models.Class, error) {
	const query = `SELECT id, school_id, name, grade, student_count, created_at, updated_at
FROM classes WHERE school_id = $1 ORDER BY name ASC`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, schoolID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// ListCurriculum returns the class-subject demand rows of the school.
func (r *SchoolDataRepository) ListCurriculum(ctx context.Context, schoolID string) ([]models.ClassSubject, error) {
	const query = `SELECT cs.id, cs.class_id, cs.subject_id, cs.created_at
FROM class_subjects cs
JOIN classes c ON c.id = cs.class_id
WHERE c.school_id = $1`
	var curriculum []models.ClassSubject
	if err := r.db.SelectContext(ctx, &curriculum, query, schoolID); err != nil {
		return nil, fmt.Errorf("list curriculum: %w", err)
	}
	return curriculum, nil
}
