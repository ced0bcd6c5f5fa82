package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"bidflow/internal/domain"
	"bidflow/internal/service"
)

// AnalysisHandler handles consensus analysis endpoints.
type AnalysisHandler struct {
	analysisService service.AnalysisService
}

// NewAnalysisHandler creates a new AnalysisHandler.
func NewAnalysisHandler(analysisService service.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

// Analyze handles POST /api/v1/analyses
// @Summary Run a consensus analysis
// @Description Sends the plan sheets to every roster model in parallel and merges their answers
// @Tags analyses
// @Accept json
// @Produce json
// @Param request body AnalyzeRequest true "Plan sheets and options"
// @Success 201 {object} Response{data=domain.ConsensusResult} "Merged consensus result"
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Failure 422 {object} ErrorResponseBody "Model output unusable"
// @Failure 502 {object} ErrorResponseBody "Too few models succeeded"
// @Failure 503 {object} ErrorResponseBody "Providers rate limited"
// @Router /analyses [post]
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	images := make([]service.ImageInput, 0, len(req.Images))
	for _, img := range req.Images {
		images = append(images, service.ImageInput{
			URL:       img.URL,
			S3Key:     img.S3Key,
			PageIndex: img.PageIndex,
			Label:     img.Label,
		})
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), service.AnalyzeInput{
		TaskType:    req.TaskType,
		Images:      images,
		Annotations: req.Annotations,
		Options: domain.AnalysisOptions{
			TaskType:           req.TaskType,
			MaxTokens:          req.MaxTokens,
			PrioritizeAccuracy: req.PrioritizeAccuracy,
			IncludeConsensus:   req.IncludeConsensus,
		},
	})
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondCreated(c, result)
}

// Get handles GET /api/v1/analyses/:id
// @Summary Get an analysis
// @Tags analyses
// @Produce json
// @Param id path string true "Analysis ID (UUID)"
// @Success 200 {object} Response{data=domain.ConsensusResult}
// @Failure 400 {object} ErrorResponseBody "Invalid ID"
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Router /analyses/{id} [get]
func (h *AnalysisHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	result, err := h.analysisService.Get(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondOK(c, result)
}

// List handles GET /api/v1/analyses
// @Summary List analyses
// @Tags analyses
// @Produce json
// @Param offset query int false "Offset for pagination" default(0)
// @Param limit query int false "Limit for pagination (max 100)" default(20)
// @Success 200 {object} Response{data=[]domain.AnalysisRun,meta=PagMeta}
// @Router /analyses [get]
func (h *AnalysisHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)

	runs, total, err := h.analysisService.List(c.Request.Context(), offset, limit)
	if err != nil {
		HandleError(c, err)
		return
	}

	RespondPaginated(c, runs, PagMeta{Total: total, Offset: offset, Limit: limit})
}

// Export handles GET /api/v1/analyses/:id/export
// @Summary Export an analysis as an Excel workbook
// @Description Streams the workbook, or with destination=storage uploads it and returns a presigned link
// @Tags analyses
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce json
// @Param id path string true "Analysis ID (UUID)"
// @Param destination query string false "Set to storage to upload instead of streaming"
// @Success 200 {file} file "Workbook"
// @Success 201 {object} Response{data=ExportLinkResponse} "Stored export link"
// @Failure 404 {object} ErrorResponseBody "Not found"
// @Router /analyses/{id}/export [get]
func (h *AnalysisHandler) Export(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if c.Query("destination") == "storage" {
		link, err := h.analysisService.ExportToStorage(c.Request.Context(), id)
		if err != nil {
			HandleError(c, err)
			return
		}
		RespondCreated(c, ExportLinkResponse{URL: link})
		return
	}

	out, err := h.analysisService.Export(c.Request.Context(), id)
	if err != nil {
		HandleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, out.FileName))
	c.Data(http.StatusOK, out.ContentType, out.Data)
}

// parseID reads the :id path parameter. On failure the 400 response is already written.
func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ID", "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
