package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuslink/student-portal-api/internal/models"
)

func newPaymentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func paymentRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "student_name", "application_id", "amount", "currency",
		"course", "roll_number", "semester", "description", "status", "provider_intent_id", "created_at",
	})
}

func TestPaymentRepositoryCreateDefaults(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectExec("INSERT INTO payments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{StudentID: "stu-1", Amount: 1500}
	require.NoError(t, repo.Create(context.Background(), payment))
	require.NotEmpty(t, payment.ID)
	require.Equal(t, "lkr", payment.Currency)
	require.Equal(t, models.PaymentStatusPending, payment.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindQualifyingArgs(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := paymentRows().
		AddRow("pay-1", "stu-1", "Amara Silva", "app-1", 1500.0, "lkr", "", "", "Semester 3", "Semester Fee", models.PaymentStatusSucceeded, "pi_1", time.Now())
	mock.ExpectQuery("SELECT .+ FROM payments\\s+WHERE student_id = \\$1 AND status = \\$2").
		WithArgs("stu-1", models.PaymentStatusSucceeded, "app-1", "Semester 3").
		WillReturnRows(rows)

	payment, err := repo.FindQualifying(context.Background(), "stu-1", "app-1", "Semester 3")
	require.NoError(t, err)
	require.Equal(t, "pay-1", payment.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindQualifyingNone(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	mock.ExpectQuery("SELECT .+ FROM payments\\s+WHERE student_id = \\$1 AND status = \\$2").
		WithArgs("stu-1", models.PaymentStatusSucceeded, "app-1", "Semester 3").
		WillReturnRows(paymentRows())

	_, err := repo.FindQualifying(context.Background(), "stu-1", "app-1", "Semester 3")
	require.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByIntentID(t *testing.T) {
	db, mock, cleanup := newPaymentRepoMock(t)
	defer cleanup()
	repo := NewPaymentRepository(db)

	rows := paymentRows().
		AddRow("pay-1", "stu-1", "Amara Silva", nil, 1500.0, "lkr", "", "", "Semester 3", "Semester Fee", models.PaymentStatusSucceeded, "pi_1", time.Now())
	mock.ExpectQuery("SELECT .+ FROM payments WHERE provider_intent_id = \\$1").
		WithArgs("pi_1").
		WillReturnRows(rows)

	payment, err := repo.FindByIntentID(context.Background(), "pi_1")
	require.NoError(t, err)
	require.Equal(t, "pay-1", payment.ID)
	require.Nil(t, payment.ApplicationID)
	require.NoError(t, mock.ExpectationsWereMet())
}
