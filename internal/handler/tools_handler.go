package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bidflow/internal/jsonrepair"
)

// ToolsHandler exposes stateless helpers.
type ToolsHandler struct{}

// NewToolsHandler creates a new ToolsHandler.
func NewToolsHandler() *ToolsHandler {
	return &ToolsHandler{}
}

// RepairJSON handles POST /api/v1/tools/repair-json
// @Summary Repair malformed model JSON
// @Description Applies the repair pipeline used on model responses and reports whether the result parses
// @Tags tools
// @Accept json
// @Produce json
// @Param request body RepairJSONRequest true "Raw model output"
// @Success 200 {object} Response{data=RepairJSONResponse}
// @Failure 400 {object} ErrorResponseBody "Invalid request"
// @Router /tools/repair-json [post]
func (h *ToolsHandler) RepairJSON(c *gin.Context) {
	var req RepairJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	repaired := jsonrepair.Repair(req.Text)
	RespondOK(c, RepairJSONResponse{
		Repaired: repaired,
		Valid:    json.Valid([]byte(repaired)),
		Changed:  repaired != strings.TrimSpace(req.Text),
	})
}
