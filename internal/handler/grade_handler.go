package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/student-portal-api/internal/models"
	"github.com/campuslink/student-portal-api/internal/service"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
	"github.com/campuslink/student-portal-api/pkg/response"
)

// GradeHandler exposes the gradebook endpoints.
type GradeHandler struct {
	service *service.GradeService
}

// NewGradeHandler creates a new handler.
func NewGradeHandler(svc *service.GradeService) *GradeHandler {
	return &GradeHandler{service: svc}
}

// List godoc
// @Summary List grades
// @Description List every grade with its student summary
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *GradeHandler) List(c *gin.Context) {
	grades, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Mine godoc
// @Summary Own grades
// @Description List the current student's grades, optionally scoped to a semester
// @Tags Grades
// @Produce json
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Router /grades/mine [get]
func (h *GradeHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	grades, err := h.service.ListByStudent(c.Request.Context(), models.GradeFilter{
		StudentID: claims.StudentID,
		Semester:  c.Query("semester"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// ByStudent godoc
// @Summary Student grades
// @Description List one student's grades, optionally scoped to a semester
// @Tags Grades
// @Produce json
// @Param id path string true "Student ID"
// @Param semester query string false "Semester"
// @Success 200 {object} response.Envelope
// @Router /grades/students/{id} [get]
func (h *GradeHandler) ByStudent(c *gin.Context) {
	grades, err := h.service.ListByStudent(c.Request.Context(), models.GradeFilter{
		StudentID: c.Param("id"),
		Semester:  c.Query("semester"),
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Create godoc
// @Summary Record grade
// @Description Record a subject result for a student
// @Tags Grades
// @Accept json
// @Produce json
// @Param payload body service.CreateGradeRequest true "Grade payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades [post]
func (h *GradeHandler) Create(c *gin.Context) {
	var req service.CreateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	grade, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grade)
}

// Update godoc
// @Summary Update grade
// @Description Amend an existing grade; ownership never changes
// @Tags Grades
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body service.UpdateGradeRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *GradeHandler) Update(c *gin.Context) {
	var req service.UpdateGradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grade payload"))
		return
	}

	grade, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grade, nil)
}

// Delete godoc
// @Summary Delete grade
// @Description Remove a grade record
// @Tags Grades
// @Produce json
// @Param id path string true "Grade ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grades/{id} [delete]
func (h *GradeHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Semesters godoc
// @Summary List graded semesters
// @Description List the distinct semesters that have recorded grades
// @Tags Grades
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /grades/semesters [get]
func (h *GradeHandler) Semesters(c *gin.Context) {
	semesters, err := h.service.Semesters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, semesters, nil)
}
