package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teaching-load-api/internal/models"
	"github.com/noah-isme/teaching-load-api/internal/service"
	"github.com/noah-isme/teaching-load-api/pkg/response"
)

// AuditHandler exposes the audit ledger over HTTP.
type AuditHandler struct {
	audits *service.AuditService
}

// NewAuditHandler constructs a new AuditHandler.
func NewAuditHandler(audits *service.AuditService) *AuditHandler {
	return &AuditHandler{audits: audits}
}

// ListByEntity godoc
// @Summary List audit entries for one entity
// @Tags Audit
// @Produce json
// @Param entityType path string true "Entity type (TEACHING_ASSIGNMENT, TEACHER, CLASS_SUBJECT)"
// @Param entityId path string true "Entity ID"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /audit/{entityType}/{entityId} [get]
func (h *AuditHandler) ListByEntity(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	logs, total, err := h.audits.ListByEntity(c.Request.Context(), c.Param("entityType"), c.Param("entityId"), page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{
		Page:       page,
		PageSize:   pageSize,
		TotalCount: total,
	}
	response.JSON(c, http.StatusOK, logs, pagination)
}
