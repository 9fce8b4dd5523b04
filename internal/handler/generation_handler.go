package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/service"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type generationCoordinator interface {
	Trigger(ctx context.Context, timetableID, schoolID string, req dto.GenerateRequest, actorID string) (*models.GenerationJob, error)
	Status(ctx context.Context, jobID, schoolID string) (*dto.GenerationStatusResponse, error)
	Cancel(ctx context.Context, jobID, schoolID string) error
}

// GenerationHandler exposes timetable generation endpoints.
type GenerationHandler struct {
	service generationCoordinator
}

// NewGenerationHandler constructs the handler.
func NewGenerationHandler(svc *service.GenerationService) *GenerationHandler {
	return &GenerationHandler{service: svc}
}

// Generate godoc
// @Summary Start timetable generation
// @Description Queues a solver run for the timetable. Poll the returned job for progress.
// @Tags Generation
// @Accept json
// @Produce json
// @Param id path string true "Timetable ID"
// @Param payload body dto.GenerateRequest false "Generation options"
// @Success 202 {object} response.Envelope
// @Router /timetables/{id}/generate [post]
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
			return
		}
	}
	schoolID, actorID := requestScope(c)
	job, err := h.service.Trigger(c.Request.Context(), c.Param("id"), schoolID, req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.GenerationJobResponse{
		ID:          job.ID,
		TimetableID: job.TimetableID,
		Status:      job.Status,
		Progress:    job.Progress,
		Phase:       job.Phase,
	})
}

// Status godoc
// @Summary Generation job status
// @Description Returns live progress while running and the outcome record once terminal.
// @Tags Generation
// @Produce json
// @Param id path string true "Generation job ID"
// @Success 200 {object} response.Envelope
// @Router /generation-jobs/{id} [get]
func (h *GenerationHandler) Status(c *gin.Context) {
	schoolID, _ := requestScope(c)
	status, err := h.service.Status(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Cancel godoc
// @Summary Cancel a generation job
// @Description Cancels a queued or running job. Terminal jobs respond with 409.
// @Tags Generation
// @Produce json
// @Param id path string true "Generation job ID"
// @Success 202 {object} response.Envelope
// @Router /generation-jobs/{id} [delete]
func (h *GenerationHandler) Cancel(c *gin.Context) {
	schoolID, _ := requestScope(c)
	if err := h.service.Cancel(c.Request.Context(), c.Param("id"), schoolID); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"id": c.Param("id"), "status": "cancelling"})
}
