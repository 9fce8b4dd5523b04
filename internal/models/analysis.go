package models

import "time"

// TeacherWorkload summarises one teacher's share of a candidate.
type TeacherWorkload struct {
	TeacherID   string `json:"teacher_id"`
	TeacherName string `json:"teacher_name"`
	Periods     int    `json:"periods"`
	DaysPresent int    `json:"days_present"`
}

// RoomUsage summarises one room's occupancy across the week.
type RoomUsage struct {
	RoomID      string  `json:"room_id"`
	RoomName    string  `json:"room_name"`
	Periods     int     `json:"periods"`
	Utilization float64 `json:"utilization_pct"`
}

// CandidateAnalysis is the quality report computed for a candidate timetable.
type CandidateAnalysis struct {
	CandidateID       string            `json:"candidate_id"`
	TeacherWorkloads  []TeacherWorkload `json:"teacher_workloads"`
	RoomUsage         []RoomUsage       `json:"room_usage"`
	DailyDistribution map[int]int       `json:"daily_distribution"`
	Recommendations   []string          `json:"recommendations"`
	GeneratedAt       time.Time         `json:"generated_at"`
}

// SystemMetrics is the aggregated process snapshot served by the ops status
// endpoint.
type SystemMetrics struct {
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	GenerationJobs           uint64    `json:"generation_jobs"`
	MoveChecks               uint64    `json:"move_checks"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
