package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/service"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type exportCoordinator interface {
	CreateJob(ctx context.Context, candidateID, schoolID string, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error)
	GetStatus(ctx context.Context, id, schoolID string) (*dto.ExportStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.ExportDownload, error)
}

// ExportHandler exposes export job endpoints and signed-token downloads.
type ExportHandler struct {
	service exportCoordinator
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc *service.ExportJobService) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Create godoc
// @Summary Export a candidate timetable
// @Description Queues rendering of the candidate into the requested format. Poll the returned job for the download link.
// @Tags Exports
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body dto.ExportRequest true "Export options"
// @Success 202 {object} response.Envelope
// @Router /candidates/{id}/exports [post]
func (h *ExportHandler) Create(c *gin.Context) {
	var req dto.ExportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export payload"))
		return
	}
	schoolID, actorID := requestScope(c)
	job, err := h.service.CreateJob(c.Request.Context(), c.Param("id"), schoolID, req, actorID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Export job status
// @Tags Exports
// @Produce json
// @Param id path string true "Export job ID"
// @Success 200 {object} response.Envelope
// @Router /exports/{id} [get]
func (h *ExportHandler) Status(c *gin.Context) {
	schoolID, _ := requestScope(c)
	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished export
// @Description Streams the rendered file. The signed token authenticates the request on its own.
// @Tags Exports
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Router /exports/download/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.service.ResolveDownload(c.Request.Context(), token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, download.SizeBytes, download.MimeType, download.File, nil)
}
