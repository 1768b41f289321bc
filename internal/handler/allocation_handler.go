package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teaching-load-api/internal/service"
	appErrors "github.com/noah-isme/teaching-load-api/pkg/errors"
	"github.com/noah-isme/teaching-load-api/pkg/response"
)

// AllocationHandler wires the allocation coordinator to HTTP routes.
type AllocationHandler struct {
	allocations *service.AllocationService
}

// NewAllocationHandler constructs a new AllocationHandler.
func NewAllocationHandler(allocations *service.AllocationService) *AllocationHandler {
	return &AllocationHandler{allocations: allocations}
}

func (h *AllocationHandler) actor(c *gin.Context) service.Actor {
	actor := service.Actor{
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
	if claims := claimsFromContext(c); claims != nil {
		actor.ID = claims.UserID
	}
	return actor
}

type allocateBody struct {
	Assignments []service.AllocateRequest `json:"assignments"`
}

type editBody struct {
	LessonsPerWeek int `json:"lessons_per_week"`
	NumberOfWeeks  int `json:"number_of_weeks"`
}

type batchEditBody struct {
	Edits []service.EditRequest `json:"edits"`
}

type batchDeleteBody struct {
	AssignmentIDs []string `json:"assignment_ids"`
}

type lessonCountBody struct {
	ClassID     string `json:"class_id" binding:"required"`
	SubjectID   string `json:"subject_id" binding:"required"`
	LessonCount int    `json:"lesson_count"`
}

// Allocate godoc
// @Summary Allocate teaching loads
// @Description Apply a batch of proposed teaching assignments atomically
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body allocateBody true "Proposed assignments"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /allocations [post]
func (h *AllocationHandler) Allocate(c *gin.Context) {
	var body allocateBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}
	results, err := h.allocations.Allocate(c.Request.Context(), h.actor(c), body.Assignments)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, results)
}

// Edit godoc
// @Summary Edit one teaching assignment
// @Tags Allocations
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body editBody true "New weekly load"
// @Success 200 {object} response.Envelope
// @Router /allocations/{id} [put]
func (h *AllocationHandler) Edit(c *gin.Context) {
	var body editBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid edit payload"))
		return
	}
	req := service.EditRequest{
		AssignmentID:   c.Param("id"),
		LessonsPerWeek: body.LessonsPerWeek,
		NumberOfWeeks:  body.NumberOfWeeks,
	}
	result, err := h.allocations.Edit(c.Request.Context(), h.actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete one teaching assignment
// @Tags Allocations
// @Produce json
// @Param id path string true "Assignment ID"
// @Success 204 "No Content"
// @Router /allocations/{id} [delete]
func (h *AllocationHandler) Delete(c *gin.Context) {
	if err := h.allocations.Delete(c.Request.Context(), h.actor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// BatchEdit godoc
// @Summary Edit multiple assignments atomically
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body batchEditBody true "Edits"
// @Success 200 {object} response.Envelope
// @Router /allocations/batch-edit [post]
func (h *AllocationHandler) BatchEdit(c *gin.Context) {
	var body batchEditBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch edit payload"))
		return
	}
	results, err := h.allocations.BatchEdit(c.Request.Context(), h.actor(c), body.Edits)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// BatchDelete godoc
// @Summary Delete multiple assignments atomically
// @Tags Allocations
// @Accept json
// @Produce json
// @Param payload body batchDeleteBody true "Assignment IDs"
// @Success 204 "No Content"
// @Router /allocations/batch-delete [post]
func (h *AllocationHandler) BatchDelete(c *gin.Context) {
	var body batchDeleteBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid batch delete payload"))
		return
	}
	if err := h.allocations.BatchDelete(c.Request.Context(), h.actor(c), body.AssignmentIDs); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Capacity godoc
// @Summary Remaining capacity for a class subject
// @Tags Allocations
// @Produce json
// @Param class_id query string true "Class ID"
// @Param subject_id query string true "Subject ID"
// @Success 200 {object} response.Envelope
// @Router /allocations/capacity [get]
func (h *AllocationHandler) Capacity(c *gin.Context) {
	classID := c.Query("class_id")
	subjectID := c.Query("subject_id")
	if classID == "" || subjectID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id and subject_id are required"))
		return
	}
	capacity, err := h.allocations.RemainingCapacity(c.Request.Context(), classID, subjectID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, capacity, nil)
}

// UpdateLessonCount godoc
// @Summary Update the declared lesson count of a class subject
// @Tags Declarations
// @Accept json
// @Produce json
// @Param payload body lessonCountBody true "Declaration payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /class-subjects/lesson-count [put]
func (h *AllocationHandler) UpdateLessonCount(c *gin.Context) {
	var body lessonCountBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid lesson count payload"))
		return
	}
	detail, err := h.allocations.UpdateDeclaredLessons(c.Request.Context(), h.actor(c), body.ClassID, body.SubjectID, body.LessonCount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// GrantHomeroomReduction godoc
// @Summary Grant a homeroom reduction to a teacher
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204 "No Content"
// @Router /teachers/{id}/homeroom-reduction [post]
func (h *AllocationHandler) GrantHomeroomReduction(c *gin.Context) {
	if err := h.allocations.GrantHomeroomReduction(c.Request.Context(), h.actor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// RevokeHomeroomReduction godoc
// @Summary Revoke a teacher's homeroom reduction
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 204 "No Content"
// @Router /teachers/{id}/homeroom-reduction [delete]
func (h *AllocationHandler) RevokeHomeroomReduction(c *gin.Context) {
	if err := h.allocations.RevokeHomeroomReduction(c.Request.Context(), h.actor(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
