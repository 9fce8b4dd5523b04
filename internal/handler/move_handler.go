package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/service"
	appErrors "github.com/noah-isme/eduschedule-api/pkg/errors"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type moveDecider interface {
	Validate(ctx context.Context, candidateID, schoolID string, req dto.MoveRequest) (*dto.MoveDecisionResponse, error)
	Apply(ctx context.Context, candidateID, schoolID string, req dto.MoveRequest) (*dto.MoveDecisionResponse, error)
}

// MoveHandler exposes manual assignment editing endpoints.
type MoveHandler struct {
	service moveDecider
}

// NewMoveHandler constructs the handler.
func NewMoveHandler(svc *service.MoveService) *MoveHandler {
	return &MoveHandler{service: svc}
}

// Validate godoc
// @Summary Dry-run a lesson move
// @Description Checks whether the assignment may move to the slot without applying it.
// @Tags Moves
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body dto.MoveRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/moves/validate [post]
func (h *MoveHandler) Validate(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	schoolID, _ := requestScope(c)
	decision, err := h.service.Validate(c.Request.Context(), c.Param("id"), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, decision, nil)
}

// Apply godoc
// @Summary Apply a lesson move
// @Description Validates and persists the move. A rejected move changes nothing and returns the violation.
// @Tags Moves
// @Accept json
// @Produce json
// @Param id path string true "Candidate ID"
// @Param payload body dto.MoveRequest true "Move payload"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/moves [post]
func (h *MoveHandler) Apply(c *gin.Context) {
	var req dto.MoveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid move payload"))
		return
	}
	schoolID, _ := requestScope(c)
	decision, err := h.service.Apply(c.Request.Context(), c.Param("id"), schoolID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !decision.Accepted {
		status = http.StatusConflict
	}
	response.JSON(c, status, decision, nil)
}
