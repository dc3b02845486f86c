package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/student-portal-api/internal/service"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
	"github.com/campuslink/student-portal-api/pkg/response"
)

// ResultHandler exposes GPA and academic-standing endpoints.
type ResultHandler struct {
	service *service.AcademicService
}

// NewResultHandler creates a new handler.
func NewResultHandler(svc *service.AcademicService) *ResultHandler {
	return &ResultHandler{service: svc}
}

// Mine godoc
// @Summary Own GPA and standing
// @Description Compute the current student's GPA and standing, optionally for a specific semester
// @Tags Results
// @Produce json
// @Param semester query string false "Semester, defaults to the student's current one"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/mine [get]
func (h *ResultHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	result, err := h.service.StudentSummary(c.Request.Context(), claims.StudentID, c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Student godoc
// @Summary Student GPA and standing
// @Description Compute one student's GPA and standing
// @Tags Results
// @Produce json
// @Param id path string true "Student ID"
// @Param semester query string false "Semester, defaults to the student's current one"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /results/students/{id} [get]
func (h *ResultHandler) Student(c *gin.Context) {
	result, err := h.service.StudentSummary(c.Request.Context(), c.Param("id"), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Semester godoc
// @Summary Semester results
// @Description Compute GPA and standing rows for every student in a semester
// @Tags Results
// @Produce json
// @Param semester query string true "Semester"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /results [get]
func (h *ResultHandler) Semester(c *gin.Context) {
	results, err := h.service.SemesterResults(c.Request.Context(), c.Query("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}
