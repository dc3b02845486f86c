package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

// Academic standing labels. "No Grades" is deliberately distinct from
// "Good Standing": an empty transcript never defaults optimistically.
const (
	StandingGood     = "Good Standing"
	StandingAtRisk   = "At Risk"
	StandingNoGrades = "No Grades"
)

// ComputeGPA averages grade points over the given grades, rounded to two
// decimal places. ok is false for an empty set — the caller must treat that
// as "no data", never as 0.0.
func ComputeGPA(grades []models.Grade) (gpa float64, ok bool) {
	if len(grades) == 0 {
		return 0, false
	}
	var total float64
	for _, g := range grades {
		total += g.Letter.Points()
	}
	avg := total / float64(len(grades))
	return math.Round(avg*100) / 100, true
}

// FormatGPA renders a GPA with two decimals, e.g. 3.1 -> "3.10".
func FormatGPA(gpa float64) string {
	return fmt.Sprintf("%.2f", gpa)
}

// Standing maps a GPA to its coarse academic-health label. The 2.0 boundary
// is inclusive.
func Standing(gpa float64, ok bool) string {
	if !ok {
		return StandingNoGrades
	}
	if gpa >= 2.0 {
		return StandingGood
	}
	return StandingAtRisk
}

type academicGradeReader interface {
	ListByStudent(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error)
	ListBySemester(ctx context.Context, semester string) ([]models.Grade, error)
}

type academicStudentReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
}

// StudentResult is a per-student GPA/standing row. GPA is the two-decimal
// display string and nil when the student has no grades for the semester.
type StudentResult struct {
	StudentID  string  `json:"student_id"`
	StudentNo  string  `json:"student_no"`
	FullName   string  `json:"full_name"`
	Semester   string  `json:"semester"`
	GPA        *string `json:"gpa"`
	Standing   string  `json:"standing"`
	GradeCount int     `json:"grade_count"`
}

// AcademicService derives GPA and standing from grade records. It reads
// fresh on every call; results are never cached.
type AcademicService struct {
	grades   academicGradeReader
	students academicStudentReader
	logger   *zap.Logger
}

// NewAcademicService constructs AcademicService.
func NewAcademicService(grades academicGradeReader, students academicStudentReader, logger *zap.Logger) *AcademicService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicService{grades: grades, students: students, logger: logger}
}

// StudentSummary computes one student's GPA and standing for a semester.
// An empty semester defaults to the student's current one.
func (s *AcademicService) StudentSummary(ctx context.Context, studentID, semester string) (*StudentResult, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if semester == "" {
		semester = student.Semester
	}

	grades, err := s.grades.ListByStudent(ctx, models.GradeFilter{StudentID: studentID, Semester: semester})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	return buildResult(student, semester, grades), nil
}

// SemesterResults computes GPA/standing rows for every student, scoped to
// the given semester. Students without grades report "No Grades".
func (s *AcademicService) SemesterResults(ctx context.Context, semester string) ([]StudentResult, error) {
	if semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is required")
	}

	// The student listing is paginated; page until the reported total is
	// reached so cohorts beyond one page still produce a row per student.
	var students []models.Student
	filter := models.StudentFilter{Page: 1, PageSize: 100}
	for {
		page, total, err := s.students.List(ctx, filter)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
		}
		students = append(students, page...)
		if len(page) == 0 || len(students) >= total {
			break
		}
		filter.Page++
	}
	grades, err := s.grades.ListBySemester(ctx, semester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}

	byStudent := make(map[string][]models.Grade, len(students))
	for _, g := range grades {
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g)
	}

	results := make([]StudentResult, 0, len(students))
	for i := range students {
		student := students[i]
		results = append(results, *buildResult(&student, semester, byStudent[student.ID]))
	}
	return results, nil
}

func buildResult(student *models.Student, semester string, grades []models.Grade) *StudentResult {
	result := &StudentResult{
		StudentID:  student.ID,
		StudentNo:  student.StudentNo,
		FullName:   student.FullName,
		Semester:   semester,
		GradeCount: len(grades),
	}
	gpa, ok := ComputeGPA(grades)
	result.Standing = Standing(gpa, ok)
	if ok {
		formatted := FormatGPA(gpa)
		result.GPA = &formatted
	}
	return result
}
