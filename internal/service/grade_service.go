package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

type gradeRepository interface {
	List(ctx context.Context) ([]models.GradeDetail, error)
	ListByStudent(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	FindByID(ctx context.Context, id string) (*models.Grade, error)
	Create(ctx context.Context, grade *models.Grade) error
	Update(ctx context.Context, grade *models.Grade) error
	Delete(ctx context.Context, id string) (bool, error)
	DistinctSemesters(ctx context.Context) ([]string, error)
}

type gradeStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// CreateGradeRequest records a subject result for a student.
type CreateGradeRequest struct {
	StudentID string             `json:"student_id" validate:"required"`
	Subject   string             `json:"subject" validate:"required"`
	Code      string             `json:"code"`
	Letter    models.GradeLetter `json:"grade" validate:"required"`
	Score     *float64           `json:"score" validate:"omitempty,gte=0,lte=100"`
	Semester  string             `json:"semester" validate:"required"`
}

// UpdateGradeRequest amends a grade. Ownership never changes; a grade stays
// with the student it was recorded for.
type UpdateGradeRequest struct {
	Subject  *string             `json:"subject"`
	Code     *string             `json:"code"`
	Letter   *models.GradeLetter `json:"grade"`
	Score    *float64            `json:"score" validate:"omitempty,gte=0,lte=100"`
	Semester *string             `json:"semester"`
}

// GradeService manages subject results.
type GradeService struct {
	grades    gradeRepository
	students  gradeStudentReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs GradeService.
func NewGradeService(grades gradeRepository, students gradeStudentReader, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{grades: grades, students: students, validator: validate, logger: logger}
}

// List returns every grade with its student, for the admin gradebook.
func (s *GradeService) List(ctx context.Context) ([]models.GradeDetail, error) {
	grades, err := s.grades.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// ListByStudent returns one student's grades, optionally scoped to a
// semester.
func (s *GradeService) ListByStudent(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	grades, err := s.grades.ListByStudent(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

// Create records a grade. The letter must be on the grading scale and the
// student must exist.
func (s *GradeService) Create(ctx context.Context, req CreateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if !req.Letter.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade letter")
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	grade := &models.Grade{
		StudentID: req.StudentID,
		Subject:   req.Subject,
		Code:      req.Code,
		Letter:    req.Letter,
		Score:     req.Score,
		Semester:  req.Semester,
	}
	if err := s.grades.Create(ctx, grade); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grade")
	}
	return grade, nil
}

// Update amends an existing grade.
func (s *GradeService) Update(ctx context.Context, id string, req UpdateGradeRequest) (*models.Grade, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	if req.Letter != nil && !req.Letter.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grade letter")
	}

	grade, err := s.grades.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grade")
	}

	if req.Subject != nil {
		grade.Subject = *req.Subject
	}
	if req.Code != nil {
		grade.Code = *req.Code
	}
	if req.Letter != nil {
		grade.Letter = *req.Letter
	}
	if req.Score != nil {
		grade.Score = req.Score
	}
	if req.Semester != nil {
		grade.Semester = *req.Semester
	}

	if err := s.grades.Update(ctx, grade); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grade not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grade")
	}
	return grade, nil
}

// Delete removes a grade.
func (s *GradeService) Delete(ctx context.Context, id string) error {
	deleted, err := s.grades.Delete(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete grade")
	}
	if !deleted {
		return appErrors.Clone(appErrors.ErrNotFound, "grade not found")
	}
	return nil
}

// Semesters returns the distinct semesters that have recorded grades.
func (s *GradeService) Semesters(ctx context.Context) ([]string, error) {
	semesters, err := s.grades.DistinctSemesters(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	return semesters, nil
}
