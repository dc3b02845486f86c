package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslink/student-portal-api/internal/models"
)

const paymentColumns = `id, student_id, student_name, application_id, amount, currency, course, roll_number, semester, description, status, provider_intent_id, created_at`

// PaymentRepository handles persistence of tuition payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create persists a payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.Currency == "" {
		payment.Currency = "lkr"
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO payments (id, student_id, student_name, application_id, amount, currency, course, roll_number, semester, description, status, provider_intent_id, created_at)
        VALUES (:id, :student_id, :student_name, :application_id, :amount, :currency, :course, :roll_number, :semester, :description, :status, :provider_intent_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByID returns a payment by ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE id = $1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// FindByIntentID returns the payment recorded for a provider intent, if any.
// Recording is at-least-once; this lookup keeps it idempotent-enough.
func (r *PaymentRepository) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE provider_intent_id = $1 ORDER BY created_at DESC LIMIT 1", paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, intentID); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByStudent returns a student's payments, newest first.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments WHERE student_id = $1 ORDER BY created_at DESC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// ListAll returns every payment, newest first.
func (r *PaymentRepository) ListAll(ctx context.Context) ([]models.Payment, error) {
	query := fmt.Sprintf("SELECT %s FROM payments ORDER BY created_at DESC", paymentColumns)
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return payments, nil
}

// FindQualifying returns the most recent succeeded payment that settles the
// given application: either linked explicitly, or — for records written
// without a link — matching the target semester with a semester-fee or
// full-payment description.
func (r *PaymentRepository) FindQualifying(ctx context.Context, studentID, applicationID, targetSemester string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments
        WHERE student_id = $1 AND status = $2
        AND (application_id = $3 OR (semester = $4 AND (description ILIKE '%%semester%%' OR description ILIKE '%%full%%')))
        ORDER BY created_at DESC LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, studentID, models.PaymentStatusSucceeded, applicationID, targetSemester); err != nil {
		return nil, err
	}
	return &payment, nil
}
