package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	"github.com/campuslink/student-portal-api/internal/repository"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

type mockApplicationRepo struct {
	apps map[string]*models.Application
	seq  int
}

func (m *mockApplicationRepo) Create(ctx context.Context, app *models.Application) error {
	if m.apps == nil {
		m.apps = make(map[string]*models.Application)
	}
	for _, existing := range m.apps {
		if existing.StudentID == app.StudentID && existing.TargetSemester == app.TargetSemester && existing.Status == models.ApplicationStatusPending {
			return repository.ErrDuplicatePending
		}
	}
	m.seq++
	if app.ID == "" {
		app.ID = strings.Repeat("a", m.seq)
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC().Add(time.Duration(m.seq) * time.Second)
	}
	stored := *app
	m.apps[app.ID] = &stored
	return nil
}

func (m *mockApplicationRepo) ExistsPending(ctx context.Context, studentID, targetSemester string) (bool, error) {
	for _, app := range m.apps {
		if app.StudentID == studentID && app.TargetSemester == targetSemester && app.Status == models.ApplicationStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if app, ok := m.apps[id]; ok {
		copied := *app
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) FindLatestByStudent(ctx context.Context, studentID string) (*models.Application, error) {
	var latest *models.Application
	for _, app := range m.apps {
		if app.StudentID != studentID {
			continue
		}
		if latest == nil || app.CreatedAt.After(latest.CreatedAt) {
			latest = app
		}
	}
	if latest == nil {
		return nil, sql.ErrNoRows
	}
	copied := *latest
	return &copied, nil
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	var details []models.ApplicationDetail
	for _, app := range m.apps {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		details = append(details, models.ApplicationDetail{Application: *app})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].CreatedAt.After(details[j].CreatedAt) })
	return details, nil
}

func (m *mockApplicationRepo) ListByStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	var apps []models.Application
	for _, app := range m.apps {
		if app.StudentID == studentID {
			apps = append(apps, *app)
		}
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].CreatedAt.After(apps[j].CreatedAt) })
	return apps, nil
}

func (m *mockApplicationRepo) UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, remarks string) error {
	app, ok := m.apps[id]
	if !ok || app.Status != models.ApplicationStatusPending {
		return sql.ErrNoRows
	}
	app.Status = status
	app.Remarks = remarks
	return nil
}

func (m *mockApplicationRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.apps[id]; !ok {
		return false, nil
	}
	delete(m.apps, id)
	return true, nil
}

type mockStudentStore struct {
	students map[string]*models.Student
}

func (m *mockStudentStore) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentStore) UpdateSemester(ctx context.Context, id, semester string) error {
	s, ok := m.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	s.Semester = semester
	return nil
}

type mockPaymentFinder struct {
	payments []models.Payment
}

func (m *mockPaymentFinder) FindQualifying(ctx context.Context, studentID, applicationID, targetSemester string) (*models.Payment, error) {
	var best *models.Payment
	for i := range m.payments {
		p := &m.payments[i]
		if p.StudentID != studentID || p.Status != models.PaymentStatusSucceeded {
			continue
		}
		linked := p.ApplicationID != nil && *p.ApplicationID == applicationID
		desc := strings.ToLower(p.Description)
		heuristic := p.Semester == targetSemester && (strings.Contains(desc, "semester") || strings.Contains(desc, "full"))
		if !linked && !heuristic {
			continue
		}
		if best == nil || p.CreatedAt.After(best.CreatedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, sql.ErrNoRows
	}
	copied := *best
	return &copied, nil
}

type recordingNotifier struct {
	events []models.Event
}

func (n *recordingNotifier) Publish(ctx context.Context, event models.Event) error {
	n.events = append(n.events, event)
	return nil
}

type recordingMetrics struct {
	decisions []string
	payments  []string
}

func (m *recordingMetrics) CountDecision(status string) { m.decisions = append(m.decisions, status) }

func (m *recordingMetrics) CountPayment(status string) { m.payments = append(m.payments, status) }

func newProgressionFixture() (*ProgressionService, *mockApplicationRepo, *mockStudentStore, *mockPaymentFinder, *recordingNotifier) {
	apps := &mockApplicationRepo{}
	students := &mockStudentStore{students: map[string]*models.Student{
		"stu1": {ID: "stu1", StudentNo: "STU1001", FullName: "Amara Silva", Semester: "Semester 2"},
	}}
	payments := &mockPaymentFinder{}
	notifier := &recordingNotifier{}
	svc := NewProgressionService(apps, students, payments, notifier, validator.New(), zap.NewNop())
	return svc, apps, students, payments, notifier
}

func TestSubmitCreatesPendingApplication(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, models.ApplicationTypeProgression, app.Type)
}

func TestSubmitRejectsDuplicatePending(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSubmitAllowsNewAfterDecision(t *testing.T) {
	svc, apps, _, _, _ := newProgressionFixture()

	first, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)
	apps.apps[first.ID].Status = models.ApplicationStatusRejected

	_, err = svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	assert.NoError(t, err)
}

func TestSubmitUnknownStudent(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "ghost", TargetSemester: "Semester 3"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDecideApprovePromotesSemester(t *testing.T) {
	svc, _, students, _, notifier := newProgressionFixture()
	metrics := &recordingMetrics{}
	svc.AttachMetrics(metrics)

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved, Remarks: "all good"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, decided.Status)
	assert.Equal(t, "Semester 3", students.students["stu1"].Semester)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, models.EventApplicationDecided, notifier.events[0].Type)
	assert.Equal(t, []string{"Approved"}, metrics.decisions)
}

func TestDecideRejectKeepsSemester(t *testing.T) {
	svc, _, students, _, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)

	decided, err := svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusRejected})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, decided.Status)
	assert.Empty(t, decided.Remarks)
	assert.Equal(t, "Semester 2", students.students["stu1"].Semester)
}

func TestDecideTwiceReportsNotFound(t *testing.T) {
	svc, _, students, _, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	// promotion applied exactly once
	assert.Equal(t, "Semester 3", students.students["stu1"].Semester)
}

func TestDecideRequiresTerminalStatus(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)

	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusPending})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEnrollmentStatusNoApplications(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	state, err := svc.EnrollmentStatus(context.Background(), "stu1")
	require.NoError(t, err)
	assert.False(t, state.Confirmed)
	assert.Nil(t, state.Application)
}

func TestEnrollmentStatusPendingNotConfirmed(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	_, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)

	state, err := svc.EnrollmentStatus(context.Background(), "stu1")
	require.NoError(t, err)
	assert.False(t, state.Confirmed)
	require.NotNil(t, state.Application)
	assert.Equal(t, models.ApplicationStatusPending, state.Application.Status)
}

func TestEnrollmentStatusConfirmedByLinkedPayment(t *testing.T) {
	svc, _, _, payments, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)

	appID := app.ID
	payments.payments = append(payments.payments, models.Payment{
		ID: "pay1", StudentID: "stu1", ApplicationID: &appID,
		Status: models.PaymentStatusSucceeded, CreatedAt: time.Now().UTC(),
	})

	state, err := svc.EnrollmentStatus(context.Background(), "stu1")
	require.NoError(t, err)
	assert.True(t, state.Confirmed)
	assert.Equal(t, "pay1", state.PaymentID)
}

func TestEnrollmentStatusConfirmedByLegacyHeuristic(t *testing.T) {
	svc, _, _, payments, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)

	payments.payments = append(payments.payments, models.Payment{
		ID: "pay2", StudentID: "stu1", Semester: "Semester 3", Description: "Semester Fee",
		Status: models.PaymentStatusSucceeded, CreatedAt: time.Now().UTC(),
	})

	state, err := svc.EnrollmentStatus(context.Background(), "stu1")
	require.NoError(t, err)
	assert.True(t, state.Confirmed)
}

func TestEnrollmentStatusIgnoresUnrelatedPayment(t *testing.T) {
	svc, _, _, payments, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)

	payments.payments = append(payments.payments, models.Payment{
		ID: "pay3", StudentID: "stu1", Semester: "Semester 3", Description: "Library fine",
		Status: models.PaymentStatusSucceeded, CreatedAt: time.Now().UTC(),
	})

	state, err := svc.EnrollmentStatus(context.Background(), "stu1")
	require.NoError(t, err)
	assert.False(t, state.Confirmed)
}

func TestDeleteDoesNotRevertPromotion(t *testing.T) {
	svc, _, students, _, _ := newProgressionFixture()

	app, err := svc.Submit(context.Background(), SubmitApplicationRequest{StudentID: "stu1", TargetSemester: "Semester 3"})
	require.NoError(t, err)
	_, err = svc.Decide(context.Background(), app.ID, DecideApplicationRequest{Status: models.ApplicationStatusApproved})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), app.ID))
	assert.Equal(t, "Semester 3", students.students["stu1"].Semester)

	err = svc.Delete(context.Background(), app.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestListRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _, _ := newProgressionFixture()

	_, err := svc.List(context.Background(), models.ApplicationFilter{Status: "Denied"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
