package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslink/student-portal-api/internal/models"
)

// GradeRepository handles persistence of grade entries.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// List returns all grades joined with their student, newest first.
func (r *GradeRepository) List(ctx context.Context) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.student_id, g.subject, g.code, g.letter, g.score, g.semester, g.created_at, g.updated_at,
        s.full_name AS student_name, s.student_no
        FROM grades g
        JOIN students s ON s.id = g.student_id
        ORDER BY g.created_at DESC`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}

// ListByStudent returns a student's grades, optionally scoped to a semester.
func (r *GradeRepository) ListByStudent(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	query := `SELECT id, student_id, subject, code, letter, score, semester, created_at, updated_at
        FROM grades WHERE student_id = $1`
	args := []interface{}{filter.StudentID}
	if filter.Semester != "" {
		query += fmt.Sprintf(" AND semester = $%d", len(args)+1)
		args = append(args, filter.Semester)
	}
	query += " ORDER BY created_at DESC"

	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, args...); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}

// ListBySemester returns every grade for a semester across all students.
// Backs the admin results screen.
func (r *GradeRepository) ListBySemester(ctx context.Context, semester string) ([]models.Grade, error) {
	const query = `SELECT id, student_id, subject, code, letter, score, semester, created_at, updated_at
        FROM grades WHERE semester = $1`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, semester); err != nil {
		return nil, fmt.Errorf("list semester grades: %w", err)
	}
	return grades, nil
}

// FindByID returns a grade entry by ID.
func (r *GradeRepository) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	const query = `SELECT id, student_id, subject, code, letter, score, semester, created_at, updated_at
        FROM grades WHERE id = $1`
	var grade models.Grade
	if err := r.db.GetContext(ctx, &grade, query, id); err != nil {
		return nil, err
	}
	return &grade, nil
}

// Create persists a new grade entry.
func (r *GradeRepository) Create(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	if grade.Semester == "" {
		grade.Semester = models.DefaultSemester
	}
	now := time.Now().UTC()
	grade.CreatedAt = now
	grade.UpdatedAt = now

	const query = `INSERT INTO grades (id, student_id, subject, code, letter, score, semester, created_at, updated_at)
        VALUES (:id, :student_id, :subject, :code, :letter, :score, :semester, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("create grade: %w", err)
	}
	return nil
}

// Update overwrites the mutable fields of a grade entry. Ownership is
// immutable: student_id is never part of the update set.
func (r *GradeRepository) Update(ctx context.Context, grade *models.Grade) error {
	grade.UpdatedAt = time.Now().UTC()
	const query = `UPDATE grades SET subject = :subject, code = :code, letter = :letter, score = :score,
        semester = :semester, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("update grade: %w", err)
	}
	return nil
}

// Delete removes a grade entry.
func (r *GradeRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM grades WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete grade: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete grade: %w", err)
	}
	return affected > 0, nil
}

// DistinctSemesters lists semester labels present in the grade table.
func (r *GradeRepository) DistinctSemesters(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT semester FROM grades ORDER BY semester`
	var semesters []string
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list grade semesters: %w", err)
	}
	return semesters, nil
}
