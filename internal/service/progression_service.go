package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	"github.com/campuslink/student-portal-api/internal/repository"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

type applicationRepository interface {
	Create(ctx context.Context, app *models.Application) error
	ExistsPending(ctx context.Context, studentID, targetSemester string) (bool, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Application, error)
	UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, remarks string) error
	Delete(ctx context.Context, id string) (bool, error)
}

type progressionStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	UpdateSemester(ctx context.Context, id, semester string) error
}

type qualifyingPaymentFinder interface {
	FindQualifying(ctx context.Context, studentID, applicationID, targetSemester string) (*models.Payment, error)
}

type decisionCounter interface {
	CountDecision(status string)
}

// SubmitApplicationRequest is the student-facing progression request.
// TargetSemester is caller-supplied; the UI defaults it to current+1 and the
// engine imposes no range validation.
type SubmitApplicationRequest struct {
	StudentID      string `json:"-" validate:"required"`
	TargetSemester string `json:"target_semester" validate:"required"`
	Type           string `json:"type"`
}

// DecideApplicationRequest is the admin decision payload. Remarks are stored
// verbatim; rejection without remarks is permitted.
type DecideApplicationRequest struct {
	Status  models.ApplicationStatus `json:"status" validate:"required"`
	Remarks string                   `json:"remarks"`
}

// ProgressionService governs the lifecycle of semester-progression
// applications and the payment-gated enrollment-confirmation signal.
type ProgressionService struct {
	apps      applicationRepository
	students  progressionStudentStore
	payments  qualifyingPaymentFinder
	notifier  Notifier
	metrics   decisionCounter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProgressionService constructs ProgressionService.
func NewProgressionService(apps applicationRepository, students progressionStudentStore, payments qualifyingPaymentFinder, notifier Notifier, validate *validator.Validate, logger *zap.Logger) *ProgressionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressionService{apps: apps, students: students, payments: payments, notifier: notifier, validator: validate, logger: logger}
}

// AttachMetrics wires the decision counter once instrumentation exists.
func (s *ProgressionService) AttachMetrics(metrics decisionCounter) {
	s.metrics = metrics
}

// Submit creates a Pending application for the student. A Pending
// application for the same (student, target semester) pair rejects the
// request; the store's partial unique index closes the concurrent window
// the read-then-write check leaves open.
func (s *ProgressionService) Submit(ctx context.Context, req SubmitApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student profile not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	exists, err := s.apps.ExistsPending(ctx, req.StudentID, req.TargetSemester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check pending applications")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a pending application for this semester")
	}

	appType := req.Type
	if appType == "" {
		appType = models.ApplicationTypeProgression
	}
	app := &models.Application{
		StudentID:      req.StudentID,
		TargetSemester: req.TargetSemester,
		Type:           appType,
	}
	if err := s.apps.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "you already have a pending application for this semester")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	return app, nil
}

// Decide transitions a Pending application to Approved or Rejected. Terminal
// applications are never re-decided: a second call reports not found and the
// semester promotion can never apply twice. On approval the student's
// semester is advanced to the target immediately — promotion is deliberately
// independent of payment, which only gates the enrollment-confirmed signal.
func (s *ProgressionService) Decide(ctx context.Context, id string, req DecideApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}
	if !req.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be Approved or Rejected")
	}

	app, err := s.apps.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if err := s.apps.UpdateDecision(ctx, id, req.Status, req.Remarks); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found or already decided")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update application")
	}

	if req.Status == models.ApplicationStatusApproved {
		if err := s.students.UpdateSemester(ctx, app.StudentID, app.TargetSemester); err != nil {
			s.logger.Error("approved application but semester promotion failed",
				zap.String("application_id", id),
				zap.String("student_id", app.StudentID),
				zap.String("target_semester", app.TargetSemester),
				zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to promote student")
		}
	}

	app.Status = req.Status
	app.Remarks = req.Remarks

	if s.metrics != nil {
		s.metrics.CountDecision(string(app.Status))
	}
	if s.notifier != nil {
		_ = s.notifier.Publish(ctx, models.Event{
			Type:      models.EventApplicationDecided,
			StudentID: app.StudentID,
			Data: map[string]string{
				"application_id":  app.ID,
				"status":          string(app.Status),
				"target_semester": app.TargetSemester,
			},
		})
	}
	return app, nil
}

// EnrollmentStatus reports whether the student is fully enrolled for the
// semester of their most recent application. Confirmed requires the latest
// application to be Approved plus a succeeded payment settling it — linked
// explicitly, or matched by target semester and a semester-fee/full-payment
// description for records written without a link.
func (s *ProgressionService) EnrollmentStatus(ctx context.Context, studentID string) (*models.EnrollmentState, error) {
	app, err := s.apps.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.EnrollmentState{Confirmed: false}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}

	state := &models.EnrollmentState{
		Application:    app,
		TargetSemester: app.TargetSemester,
	}
	if app.Status != models.ApplicationStatusApproved {
		return state, nil
	}

	payment, err := s.payments.FindQualifying(ctx, studentID, app.ID, app.TargetSemester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return state, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payments")
	}

	state.Confirmed = true
	state.PaymentID = payment.ID
	return state, nil
}

// List returns applications with their student summary for the admin review
// screen, most recent first.
func (s *ProgressionService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown application status")
	}
	details, err := s.apps.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return details, nil
}

// ListMine returns the student's own applications, most recent first.
func (s *ProgressionService) ListMine(ctx context.Context, studentID string) ([]models.Application, error) {
	apps, err := s.apps.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	return apps, nil
}

// Delete hard-deletes an application. Any semester promotion it caused is
// not reverted.
func (s *ProgressionService) Delete(ctx context.Context, id string) error {
	deleted, err := s.apps.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "application not found")
	}
	return nil
}
