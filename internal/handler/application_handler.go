package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/student-portal-api/internal/models"
	"github.com/campuslink/student-portal-api/internal/service"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
	"github.com/campuslink/student-portal-api/pkg/response"
)

// ApplicationHandler exposes the semester-progression endpoints.
type ApplicationHandler struct {
	service *service.ProgressionService
}

// NewApplicationHandler creates a new handler.
func NewApplicationHandler(svc *service.ProgressionService) *ApplicationHandler {
	return &ApplicationHandler{service: svc}
}

// Submit godoc
// @Summary Submit progression application
// @Description Create a pending semester-progression application for the current student
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}
	req.StudentID = claims.StudentID

	app, err := h.service.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, app)
}

// ListMine godoc
// @Summary List own applications
// @Description List the current student's applications, most recent first
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/mine [get]
func (h *ApplicationHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	apps, err := h.service.ListMine(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// EnrollmentStatus godoc
// @Summary Enrollment status
// @Description Report whether the current student is fully enrolled for the semester of their latest application
// @Tags Applications
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /applications/enrollment-status [get]
func (h *ApplicationHandler) EnrollmentStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	state, err := h.service.EnrollmentStatus(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// List godoc
// @Summary List applications
// @Description List applications with student summaries for review
// @Tags Applications
// @Produce json
// @Param status query string false "Filter by status"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	filter := models.ApplicationFilter{
		Status: models.ApplicationStatus(c.Query("status")),
	}

	apps, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, apps, nil)
}

// Decide godoc
// @Summary Decide application
// @Description Approve or reject a pending application; approval promotes the student's semester
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.DecideApplicationRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id}/decision [put]
func (h *ApplicationHandler) Decide(c *gin.Context) {
	var req service.DecideApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	app, err := h.service.Decide(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Delete godoc
// @Summary Delete application
// @Description Remove an application record; past semester promotions are not reverted
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [delete]
func (h *ApplicationHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
