package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
)

type analysisCandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	ListAssignments(ctx context.Context, candidateID string) ([]models.AssignmentDetail, error)
}

// AnalysisConfig holds the thresholds that drive recommendations.
type AnalysisConfig struct {
	Days            int
	PeriodsPerDay   int
	CacheTTL        time.Duration
	HighLoadPeriods int
	LowLoadPeriods  int
	LowUtilization  float64
}

// AnalysisService derives workload and utilisation reports from a
// candidate's assignments. Reports are cached per candidate and invalidated
// when a move changes the layout.
type AnalysisService struct {
	candidates analysisCandidateStore
	timetables timetableStore
	school     schoolDataStore
	cache      *CacheService
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        AnalysisConfig
}

// NewAnalysisService constructs the analyser. cache and metrics may be nil.
func NewAnalysisService(candidates analysisCandidateStore, timetables timetableStore, school schoolDataStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cfg AnalysisConfig) *AnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Days <= 0 {
		cfg.Days = 5
	}
	if cfg.PeriodsPerDay <= 0 {
		cfg.PeriodsPerDay = 8
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 15 * time.Minute
	}
	if cfg.HighLoadPeriods <= 0 {
		cfg.HighLoadPeriods = 25
	}
	if cfg.LowLoadPeriods <= 0 {
		cfg.LowLoadPeriods = 10
	}
	if cfg.LowUtilization <= 0 {
		cfg.LowUtilization = 30
	}
	return &AnalysisService{
		candidates: candidates,
		timetables: timetables,
		school:     school,
		cache:      cache,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
	}
}

// Analyze returns the quality report for a candidate. The boolean reports
// whether the result came from cache.
func (s *AnalysisService) Analyze(ctx context.Context, candidateID, schoolID string) (*models.CandidateAnalysis, bool, error) {
	key := "analysis:" + candidateID
	var cached models.CandidateAnalysis
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	cand, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.ErrNotFound
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	tt, err := s.timetables.FindByID(ctx, cand.TimetableID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, false, appErrors.ErrNotFound
	}

	start := time.Now()
	details, err := s.candidates.ListAssignments(ctx, candidateID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignments")
	}
	if s.metrics != nil {
		s.metrics.ObserveDBQuery("candidate_assignments", time.Since(start))
	}
	teachers, err := s.school.ListTeachers(ctx, tt.SchoolID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teachers")
	}
	rooms, err := s.school.ListRooms(ctx, tt.SchoolID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load rooms")
	}

	analysis := s.build(cand, details, teachers, rooms)
	if err := s.cache.Set(ctx, key, analysis, s.cfg.CacheTTL); err != nil {
		s.logger.Sugar().Debugw("analysis cache write failed", "candidate_id", candidateID, "error", err)
	}
	return analysis, false, nil
}

func (s *AnalysisService) build(cand *models.Candidate, details []models.AssignmentDetail, teachers []models.Teacher, rooms []models.Room) *models.CandidateAnalysis {
	teacherPeriods := make(map[string]int)
	teacherDays := make(map[string]map[int]bool)
	roomPeriods := make(map[string]int)
	daily := make(map[int]int)

	for _, d := range details {
		teacherPeriods[d.TeacherID]++
		if teacherDays[d.TeacherID] == nil {
			teacherDays[d.TeacherID] = make(map[int]bool)
		}
		teacherDays[d.TeacherID][d.Day] = true
		roomPeriods[d.RoomID]++
		daily[d.Day]++
	}

	workloads := make([]models.TeacherWorkload, 0, len(teachers))
	for _, teacher := range teachers {
		if !teacher.Active {
			continue
		}
		workloads = append(workloads, models.TeacherWorkload{
			TeacherID:   teacher.ID,
			TeacherName: teacher.FullName,
			Periods:     teacherPeriods[teacher.ID],
			DaysPresent: len(teacherDays[teacher.ID]),
		})
	}
	sort.Slice(workloads, func(i, j int) bool { return workloads[i].TeacherName < workloads[j].TeacherName })

	totalSlots := s.cfg.Days * s.cfg.PeriodsPerDay
	usage := make([]models.RoomUsage, 0, len(rooms))
	for _, room := range rooms {
		var pct float64
		if totalSlots > 0 {
			pct = math.Round(float64(roomPeriods[room.ID])/float64(totalSlots)*1000) / 10
		}
		usage = append(usage, models.RoomUsage{
			RoomID:      room.ID,
			RoomName:    room.Name,
			Periods:     roomPeriods[room.ID],
			Utilization: pct,
		})
	}
	sort.Slice(usage, func(i, j int) bool { return usage[i].RoomName < usage[j].RoomName })

	var recs []string
	for _, w := range workloads {
		if w.Periods > s.cfg.HighLoadPeriods {
			recs = append(recs, fmt.Sprintf("%s carries %d periods, above the high-load threshold of %d.", w.TeacherName, w.Periods, s.cfg.HighLoadPeriods))
		} else if w.Periods > 0 && w.Periods < s.cfg.LowLoadPeriods {
			recs = append(recs, fmt.Sprintf("%s has only %d periods, consider consolidating their schedule.", w.TeacherName, w.Periods))
		}
	}
	for _, u := range usage {
		if u.Utilization < s.cfg.LowUtilization {
			recs = append(recs, fmt.Sprintf("Room %s is used for %.1f%% of weekly slots, consider reassigning lessons to free it up.", u.RoomName, u.Utilization))
		}
	}
	if cand.Metrics.GapCount > 0 {
		recs = append(recs, fmt.Sprintf("The generated layout contains %d idle gaps between lessons.", cand.Metrics.GapCount))
	}

	return &models.CandidateAnalysis{
		CandidateID:       cand.ID,
		TeacherWorkloads:  workloads,
		RoomUsage:         usage,
		DailyDistribution: daily,
		Recommendations:   recs,
		GeneratedAt:       time.Now().UTC(),
	}
}
