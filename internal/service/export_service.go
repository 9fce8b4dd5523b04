package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/pkg/export"
	"github.com/noah-isme/eduschedule-api/pkg/storage"
)

type exportCandidateStore interface {
	FindByID(ctx context.Context, id string) (*models.Candidate, error)
	ListAssignments(ctx context.Context, candidateID string) ([]models.AssignmentDetail, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(rows []export.TimetableRow) ([]byte, error)
}

type pdfRenderer interface {
	Render(title string, grids []export.ClassGrid) ([]byte, error)
}

// ExportConfig tunes export rendering and download links.
type ExportConfig struct {
	APIPrefix     string
	ResultTTL     time.Duration
	Days          int
	PeriodsPerDay int
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService renders a candidate timetable into a downloadable file: CSV
// as a flat assignment list, PDF as one weekly grid page per class.
type ExportService struct {
	candidates exportCandidateStore
	timetables timetableStore
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(candidates exportCandidateStore, timetables timetableStore, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.Days <= 0 {
		cfg.Days = 5
	}
	if cfg.PeriodsPerDay <= 0 {
		cfg.PeriodsPerDay = 8
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		candidates: candidates,
		timetables: timetables,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate renders the candidate referenced by the job and stores the file.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	cand, err := s.candidates.FindByID(ctx, job.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	tt, err := s.timetables.FindByID(ctx, cand.TimetableID)
	if err != nil {
		return nil, fmt.Errorf("load timetable: %w", err)
	}
	details, err := s.candidates.ListAssignments(ctx, job.CandidateID)
	if err != nil {
		return nil, fmt.Errorf("load assignments: %w", err)
	}

	title := fmt.Sprintf("%s (%s)", tt.Name, tt.Term)
	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(buildTimetableRows(details))
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(title, s.buildClassGrids(details))
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(tt, job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/exports/download/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

var dayNames = []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

func dayName(day int) string {
	if day >= 0 && day < len(dayNames) {
		return dayNames[day]
	}
	return fmt.Sprintf("Day %d", day+1)
}

func buildTimetableRows(details []models.AssignmentDetail) []export.TimetableRow {
	rows := make([]export.TimetableRow, 0, len(details))
	for _, d := range details {
		rows = append(rows, export.TimetableRow{
			Class:   d.ClassName,
			Subject: d.SubjectName,
			Teacher: d.TeacherName,
			Room:    d.RoomName,
			Day:     dayName(d.Day),
			Period:  d.Period,
		})
	}
	return rows
}

func (s *ExportService) buildClassGrids(details []models.AssignmentDetail) []export.ClassGrid {
	days := make([]string, s.cfg.Days)
	for i := range days {
		days[i] = dayName(i)
	}
	byClass := make(map[string]*export.ClassGrid)
	for _, d := range details {
		grid, ok := byClass[d.ClassID]
		if !ok {
			grid = &export.ClassGrid{
				ClassName: d.ClassName,
				Days:      days,
				Periods:   s.cfg.PeriodsPerDay,
				Cells:     make(map[int]map[int]export.GridCell),
			}
			byClass[d.ClassID] = grid
		}
		if grid.Cells[d.Day] == nil {
			grid.Cells[d.Day] = make(map[int]export.GridCell)
		}
		grid.Cells[d.Day][d.Period] = export.GridCell{
			Subject: d.SubjectName,
			Teacher: d.TeacherName,
			Room:    d.RoomName,
		}
	}
	grids := make([]export.ClassGrid, 0, len(byClass))
	for _, grid := range byClass {
		grids = append(grids, *grid)
	}
	sort.Slice(grids, func(i, j int) bool { return grids[i].ClassName < grids[j].ClassName })
	return grids
}

func (s *ExportService) buildFilename(tt *models.Timetable, job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("timetable_%s_%s_%s.%s",
		sanitizeFilename(tt.Name), sanitizeFilename(tt.Term), timestamp, job.Format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.ToLower(replacer.Replace(raw))
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
