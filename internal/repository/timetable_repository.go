package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuslink/student-portal-api/internal/models"
)

// TimetableRepository handles persistence of weekly timetable entries.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// List returns timetable entries, optionally filtered by semester.
func (r *TimetableRepository) List(ctx context.Context, semester string) ([]models.TimetableEntry, error) {
	query := `SELECT id, day, subject, start_time, end_time, location, semester FROM timetable_entries`
	var args []interface{}
	if semester != "" {
		query += " WHERE semester = $1"
		args = append(args, semester)
	}
	query += " ORDER BY day, start_time"

	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable: %w", err)
	}
	return entries, nil
}

// FindByID returns a timetable entry by ID.
func (r *TimetableRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	const query = `SELECT id, day, subject, start_time, end_time, location, semester FROM timetable_entries WHERE id = $1`
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Create persists a timetable entry.
func (r *TimetableRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO timetable_entries (id, day, subject, start_time, end_time, location, semester)
        VALUES (:id, :day, :subject, :start_time, :end_time, :location, :semester)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create timetable entry: %w", err)
	}
	return nil
}

// Update overwrites a timetable entry.
func (r *TimetableRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	const query = `UPDATE timetable_entries SET day = :day, subject = :subject, start_time = :start_time,
        end_time = :end_time, location = :location, semester = :semester WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("update timetable entry: %w", err)
	}
	return nil
}

// Delete removes a timetable entry.
func (r *TimetableRepository) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM timetable_entries WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("delete timetable entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete timetable entry: %w", err)
	}
	return affected > 0, nil
}
