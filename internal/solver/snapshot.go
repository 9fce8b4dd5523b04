package solver

import (
	"fmt"
	"sort"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// Input bundles the school data a generation run operates on. The snapshot
// built from it is immutable: concurrent edits to the source rows never
// affect a run already in flight.
type Input struct {
	Teachers       []models.Teacher
	Qualifications []models.TeacherSubject
	Rooms          []models.Room
	Subjects       []models.Subject
	Classes        []models.Class
	Curriculum     []models.ClassSubject
}

// Snapshot is the flattened, index-mapped constraint model the engine
// searches over. Build one with NewSnapshot; the zero value is unusable.
type Snapshot struct {
	grid Grid

	teachers []teacherInfo
	rooms    []roomInfo
	subjects []subjectInfo
	classes  []classInfo

	pairs   []pairInfo
	units   []unit
	pairKey map[[2]int]int

	teacherIdx map[string]int
	roomIdx    map[string]int
	subjectIdx map[string]int
	classIdx   map[string]int
}

type teacherInfo struct {
	id               string
	name             string
	available        bitset
	prefersMorning   bool
	prefersAfternoon bool
	avoidLastPeriod  bool
	maxDailyLoad     int
	maxWeeklyLoad    int
	preferredDays    uint32
	avoidedDays      uint32
}

type roomInfo struct {
	id       string
	name     string
	capacity int
}

type subjectInfo struct {
	id             string
	name           string
	periodsPerWeek int
	blockLength    int
	consecutive    bool
}

type classInfo struct {
	id       string
	name     string
	students int
}

// pairInfo precomputes the candidate space of one (class, subject) demand.
type pairInfo struct {
	class    int
	subject  int
	teachers []int
	rooms    []int
}

// unit is one atomic placement decision: a run of blockLength periods for
// its pair. Ordinal orders identical units so the engine can break their
// permutation symmetry.
type unit struct {
	pair    int
	length  int
	ordinal int
}

const (
	defaultMaxDailyLoad  = 6
	defaultMaxWeeklyLoad = 30
)

// NewSnapshot validates the input and builds the immutable constraint model.
func NewSnapshot(grid Grid, in Input) (*Snapshot, error) {
	s := &Snapshot{
		grid:       grid,
		pairKey:    make(map[[2]int]int, len(in.Curriculum)),
		teacherIdx: make(map[string]int, len(in.Teachers)),
		roomIdx:    make(map[string]int, len(in.Rooms)),
		subjectIdx: make(map[string]int, len(in.Subjects)),
		classIdx:   make(map[string]int, len(in.Classes)),
	}

	for _, t := range in.Teachers {
		if !t.Active {
			continue
		}
		info, err := buildTeacherInfo(grid, t)
		if err != nil {
			return nil, err
		}
		s.teacherIdx[t.ID] = len(s.teachers)
		s.teachers = append(s.teachers, info)
	}

	for _, r := range in.Rooms {
		if r.Capacity <= 0 {
			return nil, fmt.Errorf("room %s: capacity must be positive", r.Name)
		}
		s.roomIdx[r.ID] = len(s.rooms)
		s.rooms = append(s.rooms, roomInfo{id: r.ID, name: r.Name, capacity: r.Capacity})
	}

	for _, sub := range in.Subjects {
		if sub.PeriodsPerWeek <= 0 {
			return nil, fmt.Errorf("subject %s: periods_per_week must be positive", sub.Name)
		}
		length := sub.EffectiveBlockLength()
		if length > grid.PeriodsPerDay {
			return nil, fmt.Errorf("subject %s: block length %d exceeds periods per day %d", sub.Name, length, grid.PeriodsPerDay)
		}
		if sub.Consecutive && sub.PeriodsPerWeek%length != 0 {
			return nil, fmt.Errorf("subject %s: periods_per_week %d not divisible by block length %d", sub.Name, sub.PeriodsPerWeek, length)
		}
		if sub.PeriodsPerWeek > grid.Slots() {
			return nil, fmt.Errorf("subject %s: periods_per_week %d exceeds weekly slots %d", sub.Name, sub.PeriodsPerWeek, grid.Slots())
		}
		s.subjectIdx[sub.ID] = len(s.subjects)
		s.subjects = append(s.subjects, subjectInfo{
			id:             sub.ID,
			name:           sub.Name,
			periodsPerWeek: sub.PeriodsPerWeek,
			blockLength:    length,
			consecutive:    sub.Consecutive,
		})
	}

	for _, c := range in.Classes {
		if c.StudentCount <= 0 {
			return nil, fmt.Errorf("class %s: student_count must be positive", c.Name)
		}
		s.classIdx[c.ID] = len(s.classes)
		s.classes = append(s.classes, classInfo{id: c.ID, name: c.Name, students: c.StudentCount})
	}

	qualified := make(map[[2]int]bool, len(in.Qualifications))
	for _, q := range in.Qualifications {
		ti, ok := s.teacherIdx[q.TeacherID]
		if !ok {
			continue
		}
		si, ok := s.subjectIdx[q.SubjectID]
		if !ok {
			return nil, fmt.Errorf("qualification references unknown subject %s", q.SubjectID)
		}
		qualified[[2]int{ti, si}] = true
	}

	seen := make(map[[2]int]bool, len(in.Curriculum))
	for _, cs := range in.Curriculum {
		ci, ok := s.classIdx[cs.ClassID]
		if !ok {
			return nil, fmt.Errorf("curriculum references unknown class %s", cs.ClassID)
		}
		si, ok := s.subjectIdx[cs.SubjectID]
		if !ok {
			return nil, fmt.Errorf("curriculum references unknown subject %s", cs.SubjectID)
		}
		key := [2]int{ci, si}
		if seen[key] {
			return nil, fmt.Errorf("duplicate curriculum entry for class %s subject %s", s.classes[ci].name, s.subjects[si].name)
		}
		seen[key] = true
		s.addPair(ci, si, qualified)
	}

	return s, nil
}

func buildTeacherInfo(grid Grid, t models.Teacher) (teacherInfo, error) {
	c := t.Constraints
	if c.Version != 0 && c.Version != models.ConstraintsVersion {
		return teacherInfo{}, fmt.Errorf("teacher %s: unsupported constraints version %d", t.FullName, c.Version)
	}

	avail := newBitset(grid.Slots())
	if c.Availability.Unrestricted() {
		for i := 0; i < grid.Slots(); i++ {
			avail.set(i)
		}
	} else {
		for day, periods := range c.Availability.Days {
			if day < 0 || day >= grid.Days {
				return teacherInfo{}, fmt.Errorf("teacher %s: availability day %d out of range", t.FullName, day)
			}
			for _, p := range periods {
				if p < 0 || p >= grid.PeriodsPerDay {
					return teacherInfo{}, fmt.Errorf("teacher %s: availability period %d out of range", t.FullName, p)
				}
				avail.set(grid.Slot(day, p))
			}
		}
	}

	maxDaily := c.MaxDailyLoad
	if maxDaily <= 0 {
		maxDaily = defaultMaxDailyLoad
	}
	maxWeekly := c.MaxWeeklyLoad
	if maxWeekly <= 0 {
		maxWeekly = defaultMaxWeeklyLoad
	}

	preferred, err := dayMask(grid, t.FullName, c.PreferredDays)
	if err != nil {
		return teacherInfo{}, err
	}
	avoided, err := dayMask(grid, t.FullName, c.AvoidedDays)
	if err != nil {
		return teacherInfo{}, err
	}

	return teacherInfo{
		id:               t.ID,
		name:             t.FullName,
		available:        avail,
		prefersMorning:   c.PrefersMorning,
		prefersAfternoon: c.PrefersAfternoon,
		avoidLastPeriod:  c.AvoidLastPeriod,
		maxDailyLoad:     maxDaily,
		maxWeeklyLoad:    maxWeekly,
		preferredDays:    preferred,
		avoidedDays:      avoided,
	}, nil
}

func dayMask(grid Grid, teacher string, days []int) (uint32, error) {
	var mask uint32
	for _, d := range days {
		if d < 0 || d >= grid.Days {
			return 0, fmt.Errorf("teacher %s: day %d out of range", teacher, d)
		}
		mask |= 1 << uint(d)
	}
	return mask, nil
}

func (s *Snapshot) addPair(class, subject int, qualified map[[2]int]bool) {
	p := pairInfo{class: class, subject: subject}
	for ti := range s.teachers {
		if qualified[[2]int{ti, subject}] {
			p.teachers = append(p.teachers, ti)
		}
	}
	for ri, room := range s.rooms {
		if room.capacity >= s.classes[class].students {
			p.rooms = append(p.rooms, ri)
		}
	}
	// Smaller rooms first keeps large rooms free for large classes.
	sort.SliceStable(p.rooms, func(a, b int) bool {
		return s.rooms[p.rooms[a]].capacity < s.rooms[p.rooms[b]].capacity
	})

	pairIdx := len(s.pairs)
	s.pairs = append(s.pairs, p)
	s.pairKey[[2]int{class, subject}] = pairIdx

	sub := s.subjects[subject]
	count := sub.periodsPerWeek / sub.blockLength
	for ord := 0; ord < count; ord++ {
		s.units = append(s.units, unit{pair: pairIdx, length: sub.blockLength, ordinal: ord})
	}
}

// Grid exposes the week shape the snapshot was built for.
func (s *Snapshot) Grid() Grid {
	return s.grid
}

// Empty reports whether the snapshot carries no scheduling demand at all.
func (s *Snapshot) Empty() bool {
	return len(s.units) == 0
}

// Units reports the number of atomic placement decisions a full solution needs.
func (s *Snapshot) Units() int {
	return len(s.units)
}

// StructuralCheck scans every (class, subject) pair for contradictions that
// make any search futile, returning one record per offending pair.
func (s *Snapshot) StructuralCheck() []models.InfeasibilityRecord {
	var records []models.InfeasibilityRecord
	for _, p := range s.pairs {
		class := s.classes[p.class]
		sub := s.subjects[p.subject]

		record := func(reason models.InfeasibilityReason, detail string) {
			records = append(records, models.InfeasibilityRecord{
				ClassID:   class.id,
				ClassName: class.name,
				SubjectID: sub.id,
				Subject:   sub.name,
				Reason:    reason,
				Detail:    detail,
			})
		}

		if len(p.teachers) == 0 {
			record(models.InfeasibilityNoQualifiedTeacher,
				fmt.Sprintf("no active teacher is qualified to teach %s", sub.name))
			continue
		}
		if len(p.rooms) == 0 {
			record(models.InfeasibilityNoFittingRoom,
				fmt.Sprintf("no room holds %d students", class.students))
			continue
		}

		reachable := newBitset(s.grid.Slots())
		for _, ti := range p.teachers {
			s.coverReachable(reachable, s.teachers[ti].available, sub.blockLength)
		}
		if got := reachable.count(); got < sub.periodsPerWeek {
			record(models.InfeasibilityInsufficientSlots,
				fmt.Sprintf("%s needs %d periods but only %d slots are reachable", sub.name, sub.periodsPerWeek, got))
		}
	}
	return records
}

// coverReachable marks every slot coverable by some legal block start given
// the availability bitmap.
func (s *Snapshot) coverReachable(dst, available bitset, length int) {
	for day := 0; day < s.grid.Days; day++ {
		for start := 0; start+length <= s.grid.PeriodsPerDay; start++ {
			ok := true
			for off := 0; off < length; off++ {
				if !available.has(s.grid.Slot(day, start+off)) {
					ok = false
					break
				}
			}
			if ok {
				for off := 0; off < length; off++ {
					dst.set(s.grid.Slot(day, start+off))
				}
			}
		}
	}
}
