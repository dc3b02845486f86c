package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/campuslink/student-portal-api/internal/gateway"
	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
	"github.com/campuslink/student-portal-api/pkg/jobs"
)

type mockPaymentRepo struct {
	payments   map[string]*models.Payment
	failCreate bool
}

func (m *mockPaymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	if m.failCreate {
		return errors.New("connection reset")
	}
	if m.payments == nil {
		m.payments = make(map[string]*models.Payment)
	}
	if payment.ID == "" {
		payment.ID = "pay" + payment.ProviderIntentID
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	stored := *payment
	m.payments[payment.ID] = &stored
	return nil
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	for _, p := range m.payments {
		if p.ProviderIntentID == intentID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	var list []models.Payment
	for _, p := range m.payments {
		if p.StudentID == studentID {
			list = append(list, *p)
		}
	}
	return list, nil
}

func (m *mockPaymentRepo) ListAll(ctx context.Context) ([]models.Payment, error) {
	var list []models.Payment
	for _, p := range m.payments {
		list = append(list, *p)
	}
	return list, nil
}

type mockGateway struct {
	fail bool
}

func (m *mockGateway) CreateIntent(ctx context.Context, amount float64, currency string) (*gateway.Intent, error) {
	if m.fail {
		return nil, errors.New("stripe: api unreachable")
	}
	return &gateway.Intent{ID: "pi_test", ClientSecret: "pi_test_secret"}, nil
}

type recordingQueue struct {
	jobs []jobs.Job
	fail bool
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.fail {
		return errors.New("queue stopped")
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func newPaymentFixture() (*PaymentService, *mockPaymentRepo, *mockGateway, *recordingQueue, *recordingNotifier) {
	repo := &mockPaymentRepo{}
	gw := &mockGateway{}
	queue := &recordingQueue{}
	notifier := &recordingNotifier{}
	svc := NewPaymentService(repo, gw, notifier, validator.New(), zap.NewNop())
	svc.AttachQueue(queue)
	return svc, repo, gw, queue, notifier
}

func TestCreateIntentSuccess(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	intent, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: 1500})
	require.NoError(t, err)
	assert.Equal(t, "pi_test", intent.ID)
	assert.NotEmpty(t, intent.ClientSecret)
}

func TestCreateIntentGatewayFailureIsUpstream(t *testing.T) {
	svc, _, gw, _, _ := newPaymentFixture()
	gw.fail = true

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: 1500})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUpstream.Code, appErrors.FromError(err).Code)
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	svc, _, _, _, _ := newPaymentFixture()

	_, err := svc.CreateIntent(context.Background(), CreateIntentRequest{Amount: 0})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRecordPersistsAndNotifies(t *testing.T) {
	svc, repo, _, _, notifier := newPaymentFixture()
	metrics := &recordingMetrics{}
	svc.AttachMetrics(metrics)

	payment, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID:        "stu1",
		Amount:           1500,
		Semester:         "Semester 3",
		Description:      "Semester Fee",
		Status:           "succeeded",
		ProviderIntentID: "pi_1",
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusSucceeded, payment.Status)
	assert.Len(t, repo.payments, 1)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.EventPaymentRecorded, notifier.events[0].Type)
	assert.Equal(t, []string{"succeeded"}, metrics.payments)
}

func TestRecordSameIntentReturnsExisting(t *testing.T) {
	svc, repo, _, _, _ := newPaymentFixture()

	req := RecordPaymentRequest{
		StudentID:        "stu1",
		Amount:           1500,
		Status:           "succeeded",
		ProviderIntentID: "pi_1",
	}
	first, err := svc.Record(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.Record(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.payments, 1)
}

func TestRecordInsertFailureEnqueuesReconciliation(t *testing.T) {
	svc, repo, _, queue, _ := newPaymentFixture()
	repo.failCreate = true

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID:        "stu1",
		Amount:           1500,
		Status:           "succeeded",
		ProviderIntentID: "pi_1",
	})
	require.Error(t, err)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeRecordPayment, queue.jobs[0].Type)
}

func TestHandleReconciliationRetriesInsert(t *testing.T) {
	svc, repo, _, queue, _ := newPaymentFixture()
	repo.failCreate = true

	_, err := svc.Record(context.Background(), RecordPaymentRequest{
		StudentID:        "stu1",
		Amount:           1500,
		Status:           "succeeded",
		ProviderIntentID: "pi_1",
	})
	require.Error(t, err)
	require.Len(t, queue.jobs, 1)

	repo.failCreate = false
	require.NoError(t, svc.HandleReconciliation(context.Background(), queue.jobs[0]))
	assert.Len(t, repo.payments, 1)

	// a replayed job is a no-op once the payment exists
	require.NoError(t, svc.HandleReconciliation(context.Background(), queue.jobs[0]))
	assert.Len(t, repo.payments, 1)
}

func TestReconciliationExhaustionFlagsPayment(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	svc := NewPaymentService(&mockPaymentRepo{}, &mockGateway{}, nil, validator.New(), zap.New(core))

	payment := &models.Payment{ProviderIntentID: "pi_9", StudentID: "stu1", Amount: 1500}
	svc.HandleReconciliationFailure(jobs.Job{
		ID:      "job1",
		Type:    JobTypeRecordPayment,
		Payload: payment,
	}, errors.New("connection reset"))

	entries := logs.FilterMessage("payment_reconciliation_required").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pi_9", entries[0].ContextMap()["provider_intent_id"])
	assert.Equal(t, "stu1", entries[0].ContextMap()["student_id"])
}

func TestReceiptOwnership(t *testing.T) {
	svc, repo, _, _, _ := newPaymentFixture()
	repo.payments = map[string]*models.Payment{
		"pay1": {ID: "pay1", StudentID: "stu1", StudentName: "Amara Silva", Amount: 1500, Currency: "lkr", Status: models.PaymentStatusSucceeded},
	}

	pdf, err := svc.Receipt(context.Background(), "pay1", "stu1")
	require.NoError(t, err)
	assert.NotEmpty(t, pdf)

	_, err = svc.Receipt(context.Background(), "pay1", "stu2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// admin path skips the ownership check
	_, err = svc.Receipt(context.Background(), "pay1", "")
	assert.NoError(t, err)
}
