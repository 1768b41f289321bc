package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teaching-load-api/internal/middleware"
	"github.com/noah-isme/teaching-load-api/internal/service"
	"github.com/noah-isme/teaching-load-api/pkg/response"
)

// WorkloadHandler serves teacher workload summaries and exports.
type WorkloadHandler struct {
	workloads *service.WorkloadService
}

// NewWorkloadHandler constructs a new WorkloadHandler.
func NewWorkloadHandler(workloads *service.WorkloadService) *WorkloadHandler {
	return &WorkloadHandler{workloads: workloads}
}

// Get godoc
// @Summary Teacher workload summary
// @Tags Workload
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/workload [get]
func (h *WorkloadHandler) Get(c *gin.Context) {
	workload, err := h.workloads.GetTeacherWorkload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, workload, nil, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Export teacher workload
// @Tags Workload
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Teacher ID"
// @Param format query string false "Export format (csv, pdf)"
// @Success 200 {file} file
// @Router /teachers/{id}/workload/export [get]
func (h *WorkloadHandler) Export(c *gin.Context) {
	teacherID := c.Param("id")
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.workloads.ExportTeacherWorkload(c.Request.Context(), teacherID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	filename := fmt.Sprintf("workload-%s.%s", teacherID, ext)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
