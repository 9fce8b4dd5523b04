package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/eduschedule-api/internal/dto"
	"github.com/noah-isme/eduschedule-api/internal/models"
	"github.com/noah-isme/eduschedule-api/internal/service"
	"github.com/noah-isme/eduschedule-api/pkg/response"
)

type candidateReader interface {
	List(ctx context.Context, timetableID, schoolID string, page, size int) ([]models.Candidate, *models.Pagination, error)
	Get(ctx context.Context, candidateID, schoolID string) (*dto.CandidateDetailResponse, error)
}

type candidateAnalyzer interface {
	Analyze(ctx context.Context, candidateID, schoolID string) (*models.CandidateAnalysis, bool, error)
}

type candidateExplainer interface {
	Explain(ctx context.Context, candidateID, schoolID string) (*dto.ExplanationResponse, bool, error)
}

// CandidateHandler exposes ranked candidate endpoints.
type CandidateHandler struct {
	candidates  candidateReader
	analysis    candidateAnalyzer
	explanation candidateExplainer
}

// NewCandidateHandler constructs the handler.
func NewCandidateHandler(candidates *service.CandidateService, analysis *service.AnalysisService, explanation *service.ExplanationService) *CandidateHandler {
	return &CandidateHandler{candidates: candidates, analysis: analysis, explanation: explanation}
}

// List godoc
// @Summary List ranked candidates of a timetable
// @Tags Candidates
// @Produce json
// @Param id path string true "Timetable ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/candidates [get]
func (h *CandidateHandler) List(c *gin.Context) {
	page := 1
	size := 10
	if v, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil {
		size = v
	}
	schoolID, _ := requestScope(c)
	candidates, pagination, err := h.candidates.List(c.Request.Context(), c.Param("id"), schoolID, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, candidates, pagination)
}

// Get godoc
// @Summary Candidate detail with assignments
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id} [get]
func (h *CandidateHandler) Get(c *gin.Context) {
	schoolID, _ := requestScope(c)
	detail, err := h.candidates.Get(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Analysis godoc
// @Summary Candidate quality analysis
// @Description Teacher workloads, room utilization, daily distribution and recommendations. Cached.
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/analysis [get]
func (h *CandidateHandler) Analysis(c *gin.Context) {
	schoolID, _ := requestScope(c)
	start := time.Now()
	analysis, cacheHit, err := h.analysis.Analyze(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, analysis, nil, meta)
}

// Explanation godoc
// @Summary Candidate ranking explanation
// @Description Deterministic summary of why the candidate ranks where it does.
// @Tags Candidates
// @Produce json
// @Param id path string true "Candidate ID"
// @Success 200 {object} response.Envelope
// @Router /candidates/{id}/explanation [get]
func (h *CandidateHandler) Explanation(c *gin.Context) {
	schoolID, _ := requestScope(c)
	start := time.Now()
	explanation, cacheHit, err := h.explanation.Explain(c.Request.Context(), c.Param("id"), schoolID)
	if err != nil {
		response.Error(c, err)
		return
	}
	meta := map[string]interface{}{
		"cache_hit":          cacheHit,
		"processing_time_ms": time.Since(start).Milliseconds(),
	}
	response.JSON(c, http.StatusOK, explanation, nil, meta)
}
