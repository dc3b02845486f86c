package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuslink/student-portal-api/internal/models"
)

// ErrDuplicatePending is returned when a Pending application already exists
// for the same (student, target semester) pair. The check-then-insert race
// is closed by the partial unique index ux_applications_pending, so a
// concurrent duplicate surfaces here as well.
var ErrDuplicatePending = errors.New("pending application already exists")

// ApplicationRepository handles persistence of progression applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// Create persists a new application. Defaults are applied for ID, type,
// status and timestamps.
func (r *ApplicationRepository) Create(ctx context.Context, app *models.Application) error {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.Type == "" {
		app.Type = models.ApplicationTypeProgression
	}
	if app.Status == "" {
		app.Status = models.ApplicationStatusPending
	}
	now := time.Now().UTC()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = now
	}
	app.UpdatedAt = now

	const query = `INSERT INTO applications (id, student_id, type, target_semester, status, remarks, created_at, updated_at)
        VALUES (:id, :student_id, :type, :target_semester, :status, :remarks, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, app); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// ExistsPending reports whether a Pending application exists for the pair.
func (r *ApplicationRepository) ExistsPending(ctx context.Context, studentID, targetSemester string) (bool, error) {
	const query = `SELECT 1 FROM applications WHERE student_id = $1 AND target_semester = $2 AND status = $3 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, studentID, targetSemester, models.ApplicationStatusPending); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check pending application: %w", err)
	}
	return true, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, student_id, type, target_semester, status, remarks, created_at, updated_at
        FROM applications WHERE id = $1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, err
	}
	return &app, nil
}

// FindLatestByStudent returns the student's most recent application.
func (r *ApplicationRepository) FindLatestByStudent(ctx context.Context, studentID string) (*models.Application, error) {
	const query = `SELECT id, student_id, type, target_semester, status, remarks, created_at, updated_at
        FROM applications WHERE student_id = $1 ORDER BY created_at DESC LIMIT 1`
	var app models.Application
	if err := r.db.GetContext(ctx, &app, query, studentID); err != nil {
		return nil, err
	}
	return &app, nil
}

// List returns applications joined with their student summary, most recent
// first, optionally filtered by status.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.ApplicationDetail, error) {
	query := `SELECT a.id, a.student_id, a.type, a.target_semester, a.status, a.remarks, a.created_at, a.updated_at,
        s.student_no, s.full_name AS student_name, s.email AS student_email, s.semester AS student_semester
        FROM applications a
        JOIN students s ON s.id = a.student_id`
	var args []interface{}
	if filter.Status != "" {
		query += fmt.Sprintf(" WHERE a.status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	query += " ORDER BY a.created_at DESC"

	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var details []models.ApplicationDetail
	for rows.Next() {
		var row applicationDetailRow
		if err := rows.StructScan(&row); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		details = append(details, row.detail())
	}
	return details, rows.Err()
}

// applicationDetailRow is the scan target for the applications/students
// join. Kept separate from the API models so the db columns map flat.
type applicationDetailRow struct {
	ID              string                   `db:"id"`
	StudentID       string                   `db:"student_id"`
	Type            string                   `db:"type"`
	TargetSemester  string                   `db:"target_semester"`
	Status          models.ApplicationStatus `db:"status"`
	Remarks         string                   `db:"remarks"`
	CreatedAt       time.Time                `db:"created_at"`
	UpdatedAt       time.Time                `db:"updated_at"`
	StudentNo       string                   `db:"student_no"`
	StudentName     string                   `db:"student_name"`
	StudentEmail    string                   `db:"student_email"`
	StudentSemester string                   `db:"student_semester"`
}

func (r applicationDetailRow) detail() models.ApplicationDetail {
	return models.ApplicationDetail{
		Application: models.Application{
			ID:             r.ID,
			StudentID:      r.StudentID,
			Type:           r.Type,
			TargetSemester: r.TargetSemester,
			Status:         r.Status,
			Remarks:        r.Remarks,
			CreatedAt:      r.CreatedAt,
			UpdatedAt:      r.UpdatedAt,
		},
		Student: models.StudentSummary{
			ID:        r.StudentID,
			StudentNo: r.StudentNo,
			FullName:  r.StudentName,
			Email:     r.StudentEmail,
			Semester:  r.StudentSemester,
		},
	}
}

// ListByStudent returns the student's own applications, most recent first.
func (r *ApplicationRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	const query = `SELECT id, student_id, type, target_semester, status, remarks, created_at, updated_at
        FROM applications WHERE student_id = $1 ORDER BY created_at DESC`
	var apps []models.Application
	if err := r.db.SelectContext(ctx, &apps, query, studentID); err != nil {
		return nil, fmt.Errorf("list student applications: %w", err)
	}
	return apps, nil
}

// UpdateDecision transitions a Pending application to a terminal status.
// The Pending guard lives in the WHERE clause so a second decision on the
// same application affects zero rows and reports sql.ErrNoRows.
func (r *ApplicationRepository) UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, remarks string) error {
	const query = `UPDATE applications SET status = $2, remarks = $3, updated_at = $4
        WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, remarks, time.Now().UTC(), models.ApplicationStatusPending)
	if err != nil {
		return fmt.Errorf("decide application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide application: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete hard-deletes an application. It has no cascading effects and does
// not revert any semester promotion it caused.
func (r *ApplicationRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM applications WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete application: %w", err)
	}
	return affected > 0, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
