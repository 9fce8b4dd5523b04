package solver

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// Weights are the platform-level soft constraint weights. They are fixed for
// every school; schools influence scores through teacher constraints, not by
// tuning weights.
type Weights struct {
	AssignmentReward float64
	Gap              float64
	Preference       float64
	AvoidedSlot      float64
	PreferredDay     float64
	AvoidedDay       float64
	Overload         float64
	LoadStdev        float64
}

// DefaultWeights returns the production scoring profile.
func DefaultWeights() Weights {
	return Weights{
		AssignmentReward: 10,
		Gap:              5,
		Preference:       2,
		AvoidedSlot:      5,
		PreferredDay:     3,
		AvoidedDay:       5,
		Overload:         4,
		LoadStdev:        1,
	}
}

// RankedCandidate is a deduplicated, scored solution with its final rank.
type RankedCandidate struct {
	Rank        int
	Score       float64
	Fingerprint string
	Placements  []Placement
	Metrics     models.CandidateMetrics
}

// Rank scores every solution, drops duplicates and orders the survivors
// best-first. Ordering is total and deterministic: score descending, then
// fewer idle gaps, then fingerprint.
func Rank(snap *Snapshot, solutions [][]Placement, w Weights) []RankedCandidate {
	seen := make(map[string]bool, len(solutions))
	ranked := make([]RankedCandidate, 0, len(solutions))

	for _, sol := range solutions {
		fp := Fingerprint(sol)
		if seen[fp] {
			continue
		}
		seen[fp] = true

		score, metrics := Score(snap, sol, w)
		ranked = append(ranked, RankedCandidate{
			Score:       score,
			Fingerprint: fp,
			Placements:  sol,
			Metrics:     metrics,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		if ranked[i].Metrics.GapCount != ranked[j].Metrics.GapCount {
			return ranked[i].Metrics.GapCount < ranked[j].Metrics.GapCount
		}
		return ranked[i].Fingerprint < ranked[j].Fingerprint
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Fingerprint produces a canonical identity for an assignment set. Two
// solutions with the same placements always hash identically regardless of
// the order the search discovered them in.
func Fingerprint(placements []Placement) string {
	rows := make([]string, len(placements))
	for i, p := range placements {
		rows[i] = fmt.Sprintf("%s|%s|%s|%s|%d|%d", p.ClassID, p.SubjectID, p.TeacherID, p.RoomID, p.Day, p.Period)
	}
	sort.Strings(rows)
	sum := sha1.Sum([]byte(strings.Join(rows, ";")))
	return hex.EncodeToString(sum[:])
}

// Score evaluates one solution against the soft constraints and returns the
// total alongside the metric breakdown persisted with the candidate.
func Score(snap *Snapshot, placements []Placement, w Weights) (float64, models.CandidateMetrics) {
	grid := snap.grid

	teacherSlots := make(map[int]map[int][]int)
	classSlots := make(map[int]map[int][]int)
	teacherLoad := make(map[int]int)
	roomsUsed := make(map[int]bool)

	var prefViolations, lastPeriodViolations, preferredDayHits, avoidedDayHits int

	for _, p := range placements {
		ti, ok := snap.teacherIdx[p.TeacherID]
		if !ok {
			continue
		}
		ci := snap.classIdx[p.ClassID]
		if ri, ok := snap.roomIdx[p.RoomID]; ok {
			roomsUsed[ri] = true
		}

		addSlot(teacherSlots, ti, p.Day, p.Period)
		addSlot(classSlots, ci, p.Day, p.Period)
		teacherLoad[ti]++

		teacher := snap.teachers[ti]
		if teacher.prefersMorning && p.Period >= grid.MorningEnd() {
			prefViolations++
		}
		if teacher.prefersAfternoon && p.Period < grid.MorningEnd() {
			prefViolations++
		}
		if teacher.avoidLastPeriod && p.Period == grid.LastPeriod() {
			lastPeriodViolations++
		}
		if teacher.preferredDays&(1<<uint(p.Day)) != 0 {
			preferredDayHits++
		}
		if teacher.avoidedDays&(1<<uint(p.Day)) != 0 {
			avoidedDayHits++
		}
	}

	gaps := countGaps(teacherSlots) + countGaps(classSlots)
	overload := countOverload(snap, teacherSlots, teacherLoad)
	stdev := loadStdev(teacherLoad)

	score := w.AssignmentReward*float64(len(placements)) +
		w.PreferredDay*float64(preferredDayHits) -
		w.Gap*float64(gaps) -
		w.Preference*float64(prefViolations) -
		w.AvoidedSlot*float64(lastPeriodViolations) -
		w.AvoidedDay*float64(avoidedDayHits) -
		w.Overload*float64(overload) -
		w.LoadStdev*stdev

	metrics := models.CandidateMetrics{
		TotalAssignments:     countLessons(placements),
		ScheduledPeriods:     len(placements),
		TeachersUsed:         len(teacherLoad),
		RoomsUsed:            len(roomsUsed),
		GapCount:             gaps,
		PreferenceViolations: prefViolations + avoidedDayHits,
		LastPeriodViolations: lastPeriodViolations,
		WorkloadStdev:        round2(stdev),
		TotalScore:           round2(score),
	}
	return score, metrics
}

func addSlot(m map[int]map[int][]int, key, day, period int) {
	if m[key] == nil {
		m[key] = make(map[int][]int)
	}
	m[key][day] = append(m[key][day], period)
}

// countLessons counts contiguous same-day runs per (class, subject), so a
// double period registers as one lesson.
func countLessons(placements []Placement) int {
	byGroup := make(map[string][]int)
	for _, p := range placements {
		key := fmt.Sprintf("%s|%s|%d", p.ClassID, p.SubjectID, p.Day)
		byGroup[key] = append(byGroup[key], p.Period)
	}
	lessons := 0
	for _, periods := range byGroup {
		sort.Ints(periods)
		lessons++
		for i := 1; i < len(periods); i++ {
			if periods[i] != periods[i-1]+1 {
				lessons++
			}
		}
	}
	return lessons
}

// countGaps sums the idle periods wedged between the first and last lesson
// of each day for every tracked entity.
func countGaps(slots map[int]map[int][]int) int {
	total := 0
	for _, days := range slots {
		for _, periods := range days {
			if len(periods) < 2 {
				continue
			}
			sorted := append([]int(nil), periods...)
			sort.Ints(sorted)
			span := sorted[len(sorted)-1] - sorted[0] + 1
			total += span - len(sorted)
		}
	}
	return total
}

// countOverload sums the periods exceeding each teacher's daily and weekly caps.
func countOverload(snap *Snapshot, teacherSlots map[int]map[int][]int, teacherLoad map[int]int) int {
	total := 0
	for ti, days := range teacherSlots {
		maxDaily := snap.teachers[ti].maxDailyLoad
		for _, periods := range days {
			if excess := len(periods) - maxDaily; excess > 0 {
				total += excess
			}
		}
	}
	for ti, load := range teacherLoad {
		if excess := load - snap.teachers[ti].maxWeeklyLoad; excess > 0 {
			total += excess
		}
	}
	return total
}

// loadStdev is the sample standard deviation of per-teacher period counts.
func loadStdev(teacherLoad map[int]int) float64 {
	if len(teacherLoad) < 2 {
		return 0
	}
	var sum float64
	for _, load := range teacherLoad {
		sum += float64(load)
	}
	mean := sum / float64(len(teacherLoad))
	var sq float64
	for _, load := range teacherLoad {
		d := float64(load) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(teacherLoad)-1))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
