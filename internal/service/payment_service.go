package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/gateway"
	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
	"github.com/campuslink/student-portal-api/pkg/export"
	"github.com/campuslink/student-portal-api/pkg/jobs"
)

// JobTypeRecordPayment retries persisting a payment that was charged at the
// gateway but failed to insert.
const JobTypeRecordPayment = "payment.record"

type paymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	ListAll(ctx context.Context) ([]models.Payment, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

type paymentCounter interface {
	CountPayment(status string)
}

// CreateIntentRequest asks the gateway for a new payment intent.
type CreateIntentRequest struct {
	Amount   float64 `json:"amount" validate:"required,gt=0"`
	Currency string  `json:"currency"`
}

// RecordPaymentRequest persists the outcome of a confirmed intent. The
// client reports confirmation; the succeeded status is what later gates
// enrollment confirmation.
type RecordPaymentRequest struct {
	StudentID        string  `json:"-" validate:"required"`
	StudentName      string  `json:"student_name"`
	ApplicationID    *string `json:"application_id"`
	Amount           float64 `json:"amount" validate:"required,gt=0"`
	Currency         string  `json:"currency"`
	Course           string  `json:"course"`
	RollNumber       string  `json:"roll_number"`
	Semester         string  `json:"semester"`
	Description      string  `json:"description"`
	Status           string  `json:"status" validate:"required,oneof=pending succeeded failed"`
	ProviderIntentID string  `json:"provider_intent_id" validate:"required"`
}

// PaymentService owns the tuition payment flow: intent creation against the
// gateway, recording confirmed outcomes, history, receipts and the admin
// export.
type PaymentService struct {
	payments  paymentRepository
	gateway   gateway.PaymentGateway
	notifier  Notifier
	queue     jobEnqueuer
	metrics   paymentCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPaymentService constructs PaymentService. The reconciliation queue is
// attached separately because its handler closes over the service.
func NewPaymentService(payments paymentRepository, gw gateway.PaymentGateway, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentService{payments: payments, gateway: gw, notifier: notifier, validator: validate, logger: logger}
}

// AttachQueue wires the reconciliation queue once it exists.
func (s *PaymentService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// AttachMetrics wires the recorded-payments counter once instrumentation
// exists.
func (s *PaymentService) AttachMetrics(metrics paymentCounter) {
	s.metrics = metrics
}

// CreateIntent asks the gateway for a payment intent. Gateway failures map
// to an upstream error so clients can tell "you were not charged" apart
// from a malformed request.
func (s *PaymentService) CreateIntent(ctx context.Context, req CreateIntentRequest) (*gateway.Intent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment request")
	}
	intent, err := s.gateway.CreateIntent(ctx, req.Amount, req.Currency)
	if err != nil {
		s.logger.Error("payment intent creation failed", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "payment provider rejected the request")
	}
	return intent, nil
}

// Record persists a confirmed payment outcome. Recording the same provider
// intent twice returns the existing record. If the insert fails after the
// student was already charged, the write is handed to the reconciliation
// queue instead of being lost.
func (s *PaymentService) Record(ctx context.Context, req RecordPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}

	if existing, err := s.payments.FindByIntentID(ctx, req.ProviderIntentID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing payment")
	}

	payment := &models.Payment{
		StudentID:        req.StudentID,
		StudentName:      req.StudentName,
		ApplicationID:    req.ApplicationID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Course:           req.Course,
		RollNumber:       req.RollNumber,
		Semester:         req.Semester,
		Description:      req.Description,
		Status:           models.PaymentStatus(req.Status),
		ProviderIntentID: req.ProviderIntentID,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Error("payment charged but not recorded",
			zap.String("provider_intent_id", req.ProviderIntentID),
			zap.String("student_id", req.StudentID),
			zap.Float64("amount", req.Amount),
			zap.Error(err))
		if s.queue != nil {
			if qErr := s.queue.Enqueue(jobs.Job{
				ID:      uuid.NewString(),
				Type:    JobTypeRecordPayment,
				Payload: payment,
			}); qErr == nil {
				return nil, appErrors.Clone(appErrors.ErrInternal, "payment accepted but recording is delayed")
			}
			s.logger.Error("failed to enqueue payment reconciliation",
				zap.String("provider_intent_id", req.ProviderIntentID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	if s.metrics != nil {
		s.metrics.CountPayment(string(payment.Status))
	}
	if s.notifier != nil && payment.Status == models.PaymentStatusSucceeded {
		_ = s.notifier.Publish(ctx, models.Event{
			Type:      models.EventPaymentRecorded,
			StudentID: payment.StudentID,
			Data: map[string]string{
				"payment_id": payment.ID,
				"semester":   payment.Semester,
			},
		})
	}
	return payment, nil
}

// HandleReconciliation is the queue handler that retries unrecorded
// payments. The intent lookup keeps retries idempotent.
func (s *PaymentService) HandleReconciliation(ctx context.Context, job jobs.Job) error {
	payment, ok := job.Payload.(*models.Payment)
	if !ok {
		s.logger.Error("reconciliation job carries unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	if _, err := s.payments.FindByIntentID(ctx, payment.ProviderIntentID); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CountPayment(string(payment.Status))
	}
	s.logger.Info("reconciled unrecorded payment",
		zap.String("payment_id", payment.ID),
		zap.String("provider_intent_id", payment.ProviderIntentID))
	return nil
}

// HandleReconciliationFailure runs when the queue gives up on a record job.
// The student was charged at the gateway but the payment is still absent
// from the store, so the condition is flagged for manual reconciliation.
func (s *PaymentService) HandleReconciliationFailure(job jobs.Job, err error) {
	payment, ok := job.Payload.(*models.Payment)
	if !ok {
		s.logger.Error("payment_reconciliation_required", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	s.logger.Error("payment_reconciliation_required",
		zap.String("provider_intent_id", payment.ProviderIntentID),
		zap.String("student_id", payment.StudentID),
		zap.Float64("amount", payment.Amount),
		zap.Error(err))
}

// History returns a student's payments, newest first.
func (s *PaymentService) History(ctx context.Context, studentID string) ([]models.Payment, error) {
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	return payments, nil
}

// ListAll returns every payment for the admin ledger.
func (s *PaymentService) ListAll(ctx context.Context) ([]models.Payment, error) {
	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	return payments, nil
}

// Receipt renders a payment receipt PDF. Students may only fetch their own
// receipts; ownerStudentID is empty for admins.
func (s *PaymentService) Receipt(ctx context.Context, paymentID, ownerStudentID string) ([]byte, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if ownerStudentID != "" && payment.StudentID != ownerStudentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "receipt belongs to another student")
	}
	pdf, err := export.ReceiptPDF(payment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render receipt")
	}
	return pdf, nil
}

// ExportCSV renders the full payment ledger as CSV.
func (s *PaymentService) ExportCSV(ctx context.Context) ([]byte, error) {
	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payments")
	}
	data, err := export.PaymentsCSV(payments)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return data, nil
}
