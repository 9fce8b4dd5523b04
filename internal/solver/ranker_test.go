package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

func singlePlacement(teacher string, day, period int) Placement {
	return Placement{
		ClassID:   "class-1",
		SubjectID: "math",
		TeacherID: teacher,
		RoomID:    "room-1",
		Day:       day,
		Period:    period,
	}
}

func rankerSnapshot(t *testing.T, constraints models.TeacherConstraints) *Snapshot {
	t.Helper()
	in := Input{
		Teachers:       []models.Teacher{fixtureTeacher("teacher-1", "Ava Stone", constraints)},
		Qualifications: []models.TeacherSubject{{TeacherID: "teacher-1", SubjectID: "math"}},
		Rooms:          []models.Room{{ID: "room-1", Name: "R101", Capacity: 30}},
		Subjects:       []models.Subject{{ID: "math", Name: "Mathematics", PeriodsPerWeek: 2}},
		Classes:        []models.Class{{ID: "class-1", Name: "10A", StudentCount: 25}},
		Curriculum:     []models.ClassSubject{{ClassID: "class-1", SubjectID: "math"}},
	}
	return mustSnapshot(t, NewGrid(5, 8), in)
}

func TestRankDropsDuplicateSolutions(t *testing.T) {
	snap := rankerSnapshot(t, models.TeacherConstraints{})
	solution := []Placement{singlePlacement("teacher-1", 0, 0), singlePlacement("teacher-1", 0, 1)}
	shuffled := []Placement{solution[1], solution[0]}

	ranked := Rank(snap, [][]Placement{solution, shuffled}, DefaultWeights())

	require.Len(t, ranked, 1, "identical assignment sets must collapse to one candidate")
	assert.Equal(t, 1, ranked[0].Rank)
}

func TestRankOrderingIsTotalAndDeterministic(t *testing.T) {
	snap := rankerSnapshot(t, models.TeacherConstraints{})

	compact := []Placement{singlePlacement("teacher-1", 0, 0), singlePlacement("teacher-1", 0, 1)}
	gapped := []Placement{singlePlacement("teacher-1", 0, 0), singlePlacement("teacher-1", 0, 3)}

	first := Rank(snap, [][]Placement{gapped, compact}, DefaultWeights())
	second := Rank(snap, [][]Placement{compact, gapped}, DefaultWeights())

	require.Len(t, first, 2)
	assert.Greater(t, first[0].Score, first[1].Score, "the gap-free timetable must rank first")
	assert.Equal(t, 0, first[0].Metrics.GapCount)

	require.Len(t, second, 2)
	for i := range first {
		assert.Equal(t, first[i].Fingerprint, second[i].Fingerprint, "rank order must not depend on input order")
		assert.Equal(t, i+1, first[i].Rank)
	}
}

func TestRankPenalisesMorningPreferenceViolations(t *testing.T) {
	snap := rankerSnapshot(t, models.TeacherConstraints{PrefersMorning: true})

	morning := []Placement{singlePlacement("teacher-1", 0, 0), singlePlacement("teacher-1", 0, 1)}
	afternoon := []Placement{singlePlacement("teacher-1", 0, 6), singlePlacement("teacher-1", 0, 7)}

	ranked := Rank(snap, [][]Placement{afternoon, morning}, DefaultWeights())

	require.Len(t, ranked, 2)
	assert.Equal(t, Fingerprint(morning), ranked[0].Fingerprint)
	assert.Equal(t, 0, ranked[0].Metrics.PreferenceViolations)
	assert.Equal(t, 2, ranked[1].Metrics.PreferenceViolations)
}

func TestRankPenalisesLastPeriod(t *testing.T) {
	snap := rankerSnapshot(t, models.TeacherConstraints{AvoidLastPeriod: true})

	early := []Placement{singlePlacement("teacher-1", 0, 2), singlePlacement("teacher-1", 0, 3)}
	late := []Placement{singlePlacement("teacher-1", 0, 6), singlePlacement("teacher-1", 0, 7)}

	ranked := Rank(snap, [][]Placement{late, early}, DefaultWeights())

	require.Len(t, ranked, 2)
	assert.Equal(t, Fingerprint(early), ranked[0].Fingerprint)
	assert.Equal(t, 1, ranked[1].Metrics.LastPeriodViolations)
}

func TestFingerprintIgnoresDiscoveryOrder(t *testing.T) {
	a := []Placement{singlePlacement("teacher-1", 0, 0), singlePlacement("teacher-1", 1, 4)}
	b := []Placement{a[1], a[0]}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(a[:1]))
}

func TestScoreMetricsBreakdown(t *testing.T) {
	snap := rankerSnapshot(t, models.TeacherConstraints{})

	placements := []Placement{
		singlePlacement("teacher-1", 0, 0),
		singlePlacement("teacher-1", 0, 2),
	}

	_, metrics := Score(snap, placements, DefaultWeights())

	assert.Equal(t, 2, metrics.ScheduledPeriods)
	assert.Equal(t, 2, metrics.TotalAssignments, "non-adjacent singles are separate lessons")
	assert.Equal(t, 1, metrics.TeachersUsed)
	assert.Equal(t, 1, metrics.RoomsUsed)
	// Teacher idles period 1 and so does the class.
	assert.Equal(t, 2, metrics.GapCount)
	assert.Equal(t, 0.0, metrics.WorkloadStdev)
}

func TestScoreCountsBlockAsOneLesson(t *testing.T) {
	snap := rankerSnapshot(t, models.TeacherConstraints{})

	placements := []Placement{
		singlePlacement("teacher-1", 0, 0),
		singlePlacement("teacher-1", 0, 1),
	}

	_, metrics := Score(snap, placements, DefaultWeights())

	assert.Equal(t, 1, metrics.TotalAssignments)
	assert.Equal(t, 2, metrics.ScheduledPeriods)
	assert.Equal(t, 0, metrics.GapCount)
}
