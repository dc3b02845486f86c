package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuslink/student-portal-api/internal/models"
	"github.com/campuslink/student-portal-api/internal/service"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
	"github.com/campuslink/student-portal-api/pkg/response"
)

// PaymentHandler exposes the tuition payment endpoints.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// CreateIntent godoc
// @Summary Create payment intent
// @Description Ask the payment provider for a new intent and return its client secret
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.CreateIntentRequest true "Intent payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /payments/intent [post]
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	var req service.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment request"))
		return
	}

	intent, err := h.service.CreateIntent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, intent, nil)
}

// Record godoc
// @Summary Record payment
// @Description Persist the outcome of a confirmed payment intent
// @Tags Payments
// @Accept json
// @Produce json
// @Param payload body service.RecordPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) Record(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	var req service.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}
	req.StudentID = claims.StudentID

	payment, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Mine godoc
// @Summary Own payment history
// @Description List the current student's payments, newest first
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments/mine [get]
func (h *PaymentHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil || claims.StudentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
		return
	}

	payments, err := h.service.History(c.Request.Context(), claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// List godoc
// @Summary List payments
// @Description List every payment for the admin ledger
// @Tags Payments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	payments, err := h.service.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// Receipt godoc
// @Summary Download receipt
// @Description Render a payment receipt PDF; students may only fetch their own
// @Tags Payments
// @Produce application/pdf
// @Param id path string true "Payment ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /payments/{id}/receipt [get]
func (h *PaymentHandler) Receipt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ownerStudentID := ""
	if claims.Role != models.RoleAdmin {
		if claims.StudentID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no student profile linked to this account"))
			return
		}
		ownerStudentID = claims.StudentID
	}

	pdf, err := h.service.Receipt(c.Request.Context(), c.Param("id"), ownerStudentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=receipt-%s.pdf", c.Param("id")))
	c.Data(http.StatusOK, "application/pdf", pdf)
}

// Export godoc
// @Summary Export payments
// @Description Download the full payment ledger as CSV
// @Tags Payments
// @Produce text/csv
// @Success 200 {file} binary
// @Router /payments/export [get]
func (h *PaymentHandler) Export(c *gin.Context) {
	data, err := h.service.ExportCSV(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=payments.csv")
	c.Data(http.StatusOK, "text/csv", data)
}
