package solver

import (
	"context"
	"sort"
	"time"

	"github.com/noah-isme/eduschedule-api/internal/models"
)

// Options tune a single Solve run.
type Options struct {
	// MaxSolutions caps how many distinct complete timetables are collected.
	MaxSolutions int
	// TimeBudget bounds wall-clock search time. Zero means unbounded.
	TimeBudget time.Duration
	// NodeBudget bounds explored decision nodes. Zero means unbounded.
	NodeBudget int64
}

// Outcome classifies how a run ended.
type Outcome string

const (
	// OutcomeCompleted: search finished normally with at least one solution.
	OutcomeCompleted Outcome = "completed"
	// OutcomeInfeasible: structural contradiction or exhausted search space
	// without a single complete assignment.
	OutcomeInfeasible Outcome = "infeasible"
	// OutcomeBudget: time or node budget ran out; partial results are kept.
	OutcomeBudget Outcome = "budget_exhausted"
	// OutcomeCancelled: the context was cancelled; results are discarded upstream.
	OutcomeCancelled Outcome = "cancelled"
)

// Placement is one expanded period cell of a solution.
type Placement struct {
	ClassID   string
	SubjectID string
	TeacherID string
	RoomID    string
	Day       int
	Period    int
}

// Stats reports search effort for observability and outcome records.
type Stats struct {
	Nodes       int64
	Backtracks  int64
	Elapsed     time.Duration
	PruneCounts map[string]int64
}

// DominantPrune names the constraint that blocked the most candidate
// placements, or "" when nothing was pruned.
func (s Stats) DominantPrune() string {
	var best string
	var max int64
	for code, n := range s.PruneCounts {
		if n > max {
			best, max = code, n
		}
	}
	return best
}

// Result carries everything a coordinator needs to finish a job.
type Result struct {
	Solutions       [][]Placement
	Outcome         Outcome
	Infeasibilities []models.InfeasibilityRecord
	Stats           Stats
}

// option is one legal (teacher, room, start slot) choice for a unit.
type option struct {
	teacher int
	room    int
	slot    int
}

// frame is one entry of the explicit decision arena. The engine never
// recurses: the arena replaces the call stack, so search depth is bounded by
// the unit count and every decision stays indexable.
type frame struct {
	unit    int
	options []option
	cursor  int
}

// Solve runs the constructive backtracking search over an immutable
// snapshot. It honours ctx cancellation and the configured budgets at every
// loop step and returns all distinct solutions found, best effort.
func Solve(ctx context.Context, snap *Snapshot, opts Options) Result {
	start := time.Now()
	res := Result{Stats: Stats{PruneCounts: make(map[string]int64)}}

	if opts.MaxSolutions <= 0 {
		opts.MaxSolutions = 1
	}

	if records := snap.StructuralCheck(); len(records) > 0 {
		res.Outcome = OutcomeInfeasible
		res.Infeasibilities = records
		res.Stats.Elapsed = time.Since(start)
		return res
	}

	if snap.Empty() {
		res.Solutions = [][]Placement{{}}
		res.Outcome = OutcomeCompleted
		res.Stats.Elapsed = time.Since(start)
		return res
	}

	var deadline time.Time
	if opts.TimeBudget > 0 {
		deadline = start.Add(opts.TimeBudget)
	}

	e := &engine{
		snap:     snap,
		occ:      newOccupancy(snap),
		chosen:   make([]option, len(snap.units)),
		assigned: make([]bool, len(snap.units)),
		prunes:   res.Stats.PruneCounts,
	}

	frames := make([]frame, 0, len(snap.units))
	descend := true
	outcome := OutcomeCompleted

search:
	for {
		if err := ctx.Err(); err != nil {
			outcome = OutcomeCancelled
			break
		}
		if !deadline.IsZero() && res.Stats.Nodes&63 == 0 && time.Now().After(deadline) {
			outcome = OutcomeBudget
			break
		}
		if opts.NodeBudget > 0 && res.Stats.Nodes >= opts.NodeBudget {
			outcome = OutcomeBudget
			break
		}

		if descend {
			if len(frames) == len(snap.units) {
				res.Solutions = append(res.Solutions, e.extract())
				if len(res.Solutions) >= opts.MaxSolutions {
					break
				}
				// Force the deepest decision onto a different legal
				// alternative so the next solution cannot repeat this one.
				descend = false
				continue
			}

			res.Stats.Nodes++
			u, options := e.pickUnit()
			if options == nil {
				descend = false
				continue
			}
			e.apply(u, options[0])
			frames = append(frames, frame{unit: u, options: options})
			continue
		}

		for {
			if len(frames) == 0 {
				if len(res.Solutions) == 0 {
					outcome = OutcomeInfeasible
				}
				break search
			}
			f := &frames[len(frames)-1]
			e.undo(f.unit, f.options[f.cursor])
			res.Stats.Backtracks++
			f.cursor++
			if f.cursor < len(f.options) {
				e.apply(f.unit, f.options[f.cursor])
				descend = true
				break
			}
			frames = frames[:len(frames)-1]
		}
	}

	if outcome == OutcomeInfeasible && len(res.Solutions) == 0 {
		res.Infeasibilities = append(res.Infeasibilities, models.InfeasibilityRecord{
			Reason: models.InfeasibilitySearchExhausted,
			Detail: exhaustedDetail(res.Stats.DominantPrune()),
		})
	}

	res.Outcome = outcome
	res.Stats.Elapsed = time.Since(start)
	return res
}

func exhaustedDetail(dominant string) string {
	if dominant == "" {
		return "search space exhausted without a complete timetable"
	}
	return "search space exhausted without a complete timetable; most placements were blocked by " + dominant
}

// engine holds the mutable search state shared by all frames.
type engine struct {
	snap     *Snapshot
	occ      *occupancy
	chosen   []option
	assigned []bool
	prunes   map[string]int64
}

// pickUnit applies the most-constrained-first rule: enumerate legal options
// for every unassigned unit and descend into the one with the fewest. A unit
// with zero options forces an immediate backtrack.
func (e *engine) pickUnit() (int, []option) {
	best := -1
	var bestOptions []option
	for u := range e.snap.units {
		if e.assigned[u] {
			continue
		}
		options := e.enumerate(u)
		if len(options) == 0 {
			return u, nil
		}
		if best == -1 || len(options) < len(bestOptions) {
			best, bestOptions = u, options
		}
	}
	return best, bestOptions
}

// enumerate lists every legal (teacher, room, start) choice for the unit,
// attributing every rejection to the constraint that caused it.
func (e *engine) enumerate(u int) []option {
	un := e.snap.units[u]
	pair := e.snap.pairs[un.pair]
	grid := e.snap.grid

	lo, hi := e.siblingBounds(u)

	var options []option
	for _, ti := range pair.teachers {
		teacher := e.snap.teachers[ti]
		for day := 0; day < grid.Days; day++ {
			for startPeriod := 0; startPeriod+un.length <= grid.PeriodsPerDay; startPeriod++ {
				slot := grid.Slot(day, startPeriod)
				if slot <= lo || (hi >= 0 && slot >= hi) {
					e.prunes[ConstraintSymmetry]++
					continue
				}
				if !teacherRunAvailable(teacher.available, grid, day, startPeriod, un.length) {
					e.prunes[ConstraintAvailability]++
					continue
				}
				placedRoom := -1
				for _, ri := range pair.rooms {
					ok, cause := e.occ.free(ti, ri, pair.class, slot, un.length)
					if !ok {
						e.prunes[cause]++
						if cause != ConstraintRoomBusy {
							// Teacher or class is taken: no room can save this slot.
							placedRoom = -2
							break
						}
						continue
					}
					placedRoom = ri
					break
				}
				if placedRoom >= 0 {
					options = append(options, option{teacher: ti, room: placedRoom, slot: slot})
				}
			}
		}
	}
	return options
}

// siblingBounds confines a unit's start slot between those of its already
// placed siblings from the same (class, subject) pair. Identical units are
// interchangeable; forcing ascending starts by ordinal removes the
// permutation symmetry that would otherwise duplicate solutions.
func (e *engine) siblingBounds(u int) (lo, hi int) {
	un := e.snap.units[u]
	lo, hi = -1, -1
	for v := range e.snap.units {
		if v == u || !e.assigned[v] {
			continue
		}
		sib := e.snap.units[v]
		if sib.pair != un.pair {
			continue
		}
		slot := e.chosen[v].slot
		if sib.ordinal < un.ordinal && slot > lo {
			lo = slot
		}
		if sib.ordinal > un.ordinal && (hi < 0 || slot < hi) {
			hi = slot
		}
	}
	return lo, hi
}

func teacherRunAvailable(available bitset, grid Grid, day, startPeriod, length int) bool {
	for off := 0; off < length; off++ {
		if !available.has(grid.Slot(day, startPeriod+off)) {
			return false
		}
	}
	return true
}

func (e *engine) apply(u int, o option) {
	un := e.snap.units[u]
	pair := e.snap.pairs[un.pair]
	e.occ.place(o.teacher, o.room, pair.class, o.slot, un.length)
	e.chosen[u] = o
	e.assigned[u] = true
}

func (e *engine) undo(u int, o option) {
	un := e.snap.units[u]
	pair := e.snap.pairs[un.pair]
	e.occ.unplace(o.teacher, o.room, pair.class, o.slot, un.length)
	e.assigned[u] = false
}

// extract expands the current assignment into per-period placements in a
// deterministic order.
func (e *engine) extract() []Placement {
	var out []Placement
	for u, un := range e.snap.units {
		o := e.chosen[u]
		pair := e.snap.pairs[un.pair]
		day, startPeriod := e.snap.grid.Coords(o.slot)
		for off := 0; off < un.length; off++ {
			out = append(out, Placement{
				ClassID:   e.snap.classes[pair.class].id,
				SubjectID: e.snap.subjects[pair.subject].id,
				TeacherID: e.snap.teachers[o.teacher].id,
				RoomID:    e.snap.rooms[o.room].id,
				Day:       day,
				Period:    startPeriod + off,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ClassID != b.ClassID {
			return a.ClassID < b.ClassID
		}
		if a.Day != b.Day {
			return a.Day < b.Day
		}
		if a.Period != b.Period {
			return a.Period < b.Period
		}
		return a.SubjectID < b.SubjectID
	})
	return out
}
