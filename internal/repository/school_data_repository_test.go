package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newSchoolDataRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSchoolDataRepositoryListTeachersDecodesConstraints(t *testing.T) {
	db, mock, cleanup := newSchoolDataRepoMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	constraints := `{"version":1,"prefers_morning":true,"max_daily_load":5,"availability":{"days":{"0":[0,1,2,3]}}}`
	rows := sqlmock.NewRows([]string{"id", "school_id", "email", "full_name", "active", "constraints", "created_at", "updated_at"}).
		AddRow("teacher-1", "school-1", "ava@school.test", "Ava Stone", true, constraints, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM teachers WHERE school_id = $1 ORDER BY full_name ASC")).
		WithArgs("school-1").
		WillReturnRows(rows)

	teachers, err := repo.ListTeachers(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, teachers, 1)
	require.True(t, teachers[0].Constraints.PrefersMorning)
	require.Equal(t, 5, teachers[0].Constraints.MaxDailyLoad)
	require.Equal(t, []int{0, 1, 2, 3}, teachers[0].Constraints.Availability.Days[0])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolDataRepositoryListSubjects(t *testing.T) {
	db, mock, cleanup := newSchoolDataRepoMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	rows := sqlmock.NewRows([]string{"id", "school_id", "code", "name", "periods_per_week", "consecutive", "block_length", "created_at", "updated_at"}).
		AddRow("math", "school-1", "MAT", "Mathematics", 4, false, 0, time.Now(), time.Now()).
		AddRow("physics", "school-1", "PHY", "Physics", 4, true, 2, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM subjects WHERE school_id = $1 ORDER BY name ASC")).
		WithArgs("school-1").
		WillReturnRows(rows)

	subjects, err := repo.ListSubjects(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	require.Equal(t, 2, subjects[1].EffectiveBlockLength())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSchoolDataRepositoryListCurriculumJoinsOnSchool(t *testing.T) {
	db, mock, cleanup := newSchoolDataRepoMock(t)
	defer cleanup()
	repo := NewSchoolDataRepository(db)

	rows := sqlmock.NewRows([]string{"id", "class_id", "subject_id", "created_at"}).
		AddRow("cs-1", "class-1", "math", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("JOIN classes c ON c.id = cs.class_id")).
		WithArgs("school-1").
		WillReturnRows(rows)

	curriculum, err := repo.ListCurriculum(context.Background(), "school-1")
	require.NoError(t, err)
	require.Len(t, curriculum, 1)
	require.Equal(t, "math", curriculum[0].SubjectID)
	require.NoError(t, mock.ExpectationsWereMet())
}
