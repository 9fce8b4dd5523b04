package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/repository"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/jobs"
)

type exportJobStore interface {
	Create(ctx context.Context, job *models.ExportJob) error
	GetByID(ctx context.Context, id string) (*models.ExportJob, error)
	Update(ctx context.Context, id string, params repository.UpdateExportJobParams) error
	ListQueued(ctx context.Context, limit int) ([]models.ExportJob, error)
	ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ExportJob, error)
	Delete(ctx context.Context, id string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error)
}

type exportObserver interface {
	ObserveExport(status string)
}

// ExportJobConfig governs retries and result retention.
type ExportJobConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
	MaxRetries      int
}

// ExportJobService owns the export job lifecycle: enqueueing, status,
// signed downloads and retention cleanup.
type ExportJobService struct {
	repo       exportJobStore
	candidates exportCandidateStore
	timetables timetableStore
	queue      jobDispatcher
	exporter   *ExportService
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportJobConfig
}

// ExportDownload aggregates resolved download data.
type ExportDownload struct {
	File      *os.File
	Filename  string
	Format    models.ExportFormat
	MimeType  string
	SizeBytes int64
	ExpiresAt time.Time
}

// NewExportJobService constructs the export coordinator.
func NewExportJobService(repo exportJobStore, candidates exportCandidateStore, timetables timetableStore, queue jobDispatcher, exporter *ExportService, validate *validator.Validate, logger *zap.Logger, cfg ExportJobConfig) *ExportJobService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &ExportJobService{
		repo:       repo,
		candidates: candidates,
		timetables: timetables,
		queue:      queue,
		exporter:   exporter,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreateJob validates the candidate, persists a queued export and enqueues
// processing.
func (s *ExportJobService) CreateJob(ctx context.Context, candidateID, schoolID string, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export payload")
	}
	cand, err := s.candidates.FindByID(ctx, candidateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load candidate")
	}
	tt, err := s.timetables.FindByID(ctx, cand.TimetableID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	if schoolID != "" && tt.SchoolID != schoolID {
		return nil, appErrors.ErrNotFound
	}

	job := &models.ExportJob{
		CandidateID: candidateID,
		SchoolID:    tt.SchoolID,
		Format:      req.Format,
		Status:      models.ExportStatusQueued,
		RequestedBy: actorID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "candidate_export"}); err != nil {
		status := models.ExportStatusFailed
		msg := "failed to enqueue job"
		now := time.Now().UTC()
		_ = s.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
			Status:       &status,
			ErrorMessage: &msg,
			FinishedAt:   &now,
		})
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status}, nil
}

// GetStatus exposes job metadata to clients.
func (s *ExportJobService) GetStatus(ctx context.Context, id, schoolID string) (*dto.ExportStatusResponse, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if schoolID != "" && job.SchoolID != schoolID {
		return nil, appErrors.ErrNotFound
	}
	resp := &dto.ExportStatusResponse{ID: job.ID, Status: job.Status}
	if job.ResultURL != nil {
		resp.DownloadURL = job.ResultURL
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload validates the token and opens the stored export file.
func (s *ExportJobService) ResolveDownload(ctx context.Context, token string) (*ExportDownload, error) {
	jobID, relPath, expiresAt, err := s.exporter.ParseToken(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.ResultURL == nil || !strings.HasSuffix(*job.ResultURL, token) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "token mismatch")
	}
	if job.Status != models.ExportStatusFinished {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "export not ready")
	}
	file, err := s.exporter.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export file")
	}
	info, err := file.Stat()
	if err != nil {
		file.Close() //nolint:errcheck
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read export metadata")
	}
	return &ExportDownload{
		File:      file,
		Filename:  filepath.Base(relPath),
		Format:    job.Format,
		MimeType:  mimeTypeFor(job.Format),
		SizeBytes: info.Size(),
		ExpiresAt: expiresAt,
	}, nil
}

func mimeTypeFor(format models.ExportFormat) string {
	switch format {
	case models.ExportFormatPDF:
		return "application/pdf"
	case models.ExportFormatCSV:
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

// RecoverPendingJobs replays queued exports after a process restart.
func (s *ExportJobService) RecoverPendingJobs(ctx context.Context) {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Sugar().Warnw("failed to recover queued export jobs", "error", err)
		return
	}
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "candidate_export"}); err != nil {
			s.logger.Sugar().Warnw("failed to requeue export job", "job_id", job.ID, "error", err)
		}
	}
}

// StartCleanup boots a goroutine that purges expired exports periodically.
func (s *ExportJobService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanupExpired(ctx)
			}
		}
	}()
}

// cleanupExpired removes stored files and rows for exports past their TTL.
func (s *ExportJobService) cleanupExpired(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.ResultTTL)
	for {
		expired, err := s.repo.ListFinishedBefore(ctx, cutoff, 100)
		if err != nil {
			s.logger.Sugar().Warnw("export cleanup list failed", "error", err)
			return
		}
		if len(expired) == 0 {
			break
		}
		for _, job := range expired {
			if job.FilePath != nil {
				if err := s.exporter.Delete(*job.FilePath); err != nil {
					s.logger.Sugar().Warnw("export cleanup delete failed", "job_id", job.ID, "error", err)
					continue
				}
			}
			if err := s.repo.Delete(ctx, job.ID); err != nil {
				s.logger.Sugar().Warnw("export cleanup row delete failed", "job_id", job.ID, "error", err)
			}
		}
		if len(expired) < 100 {
			break
		}
	}
	if _, err := s.exporter.Cleanup(s.cfg.ResultTTL); err != nil {
		s.logger.Sugar().Warnw("filesystem cleanup failed", "error", err)
	}
}

// ExportWorker bridges queue jobs to the renderer.
type ExportWorker struct {
	repo       exportJobStore
	exporter   exportGenerator
	observer   exportObserver
	logger     *zap.Logger
	maxRetries int
}

// NewExportWorker constructs a worker.
func NewExportWorker(repo exportJobStore, exporter exportGenerator, observer exportObserver, maxRetries int, logger *zap.Logger) *ExportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &ExportWorker{
		repo:       repo,
		exporter:   exporter,
		observer:   observer,
		logger:     logger,
		maxRetries: maxRetries,
	}
}

// Handle processes one export job. A failed render goes back to the queue
// until the attempt budget is spent, then the job is marked failed.
func (w *ExportWorker) Handle(ctx context.Context, job jobs.Job) error {
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		return err
	}
	processing := models.ExportStatusProcessing
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{Status: &processing}); err != nil {
		return err
	}
	result, err := w.exporter.Generate(ctx, record)
	if err != nil {
		msg := err.Error()
		if job.Attempt >= w.maxRetries {
			failed := models.ExportStatusFailed
			now := time.Now().UTC()
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &failed,
				ErrorMessage: &msg,
				FinishedAt:   &now,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to mark export failed", "job_id", job.ID, "error", updateErr)
			}
			if w.observer != nil {
				w.observer.ObserveExport(string(failed))
			}
		} else {
			queued := models.ExportStatusQueued
			if updateErr := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
				Status:       &queued,
				ErrorMessage: &msg,
			}); updateErr != nil {
				w.logger.Sugar().Warnw("failed to requeue export", "job_id", job.ID, "error", updateErr)
			}
		}
		return err
	}
	finished := models.ExportStatusFinished
	now := time.Now().UTC()
	clear := ""
	if err := w.repo.Update(ctx, job.ID, repository.UpdateExportJobParams{
		Status:       &finished,
		FilePath:     &result.RelativePath,
		ResultURL:    &result.URL,
		ErrorMessage: &clear,
		FinishedAt:   &now,
	}); err != nil {
		w.logger.Sugar().Warnw("failed to mark export finished", "job_id", job.ID, "error", err)
		return err
	}
	if w.observer != nil {
		w.observer.ObserveExport(string(finished))
	}
	return nil
}
