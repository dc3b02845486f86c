package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
)

func TestComputeGPAEmptyIsNoData(t *testing.T) {
	gpa, ok := ComputeGPA(nil)
	assert.False(t, ok)
	assert.Equal(t, 0.0, gpa)
	assert.Equal(t, StandingNoGrades, Standing(gpa, ok))
}

func TestComputeGPARounding(t *testing.T) {
	grades := []models.Grade{
		{Letter: models.GradeA},
		{Letter: models.GradeBPlus},
		{Letter: models.GradeC},
	}
	gpa, ok := ComputeGPA(grades)
	require.True(t, ok)
	assert.InDelta(t, 3.1, gpa, 0.001)
	assert.Equal(t, "3.10", FormatGPA(gpa))
}

func TestComputeGPAUnknownLetterContributesZero(t *testing.T) {
	grades := []models.Grade{
		{Letter: models.GradeA},
		{Letter: models.GradeLetter("X")},
	}
	gpa, ok := ComputeGPA(grades)
	require.True(t, ok)
	assert.InDelta(t, 2.0, gpa, 0.001)
}

func TestStandingBoundaries(t *testing.T) {
	assert.Equal(t, StandingGood, Standing(2.0, true))
	assert.Equal(t, StandingAtRisk, Standing(1.99, true))
	assert.Equal(t, StandingGood, Standing(4.0, true))
	assert.Equal(t, StandingAtRisk, Standing(0.0, true))
	assert.Equal(t, StandingNoGrades, Standing(0.0, false))
}

type mockAcademicGrades struct {
	grades []models.Grade
}

func (m *mockAcademicGrades) ListByStudent(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	var result []models.Grade
	for _, g := range m.grades {
		if g.StudentID != filter.StudentID {
			continue
		}
		if filter.Semester != "" && g.Semester != filter.Semester {
			continue
		}
		result = append(result, g)
	}
	return result, nil
}

func (m *mockAcademicGrades) ListBySemester(ctx context.Context, semester string) ([]models.Grade, error) {
	var result []models.Grade
	for _, g := range m.grades {
		if g.Semester == semester {
			result = append(result, g)
		}
	}
	return result, nil
}

type mockAcademicStudents struct {
	students map[string]*models.Student
}

func (m *mockAcademicStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

// List mirrors the repository's paging contract, including the page size
// cap, so callers that ignore pagination are caught here.
func (m *mockAcademicStudents) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	var all []models.Student
	for _, s := range m.students {
		all = append(all, *s)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	start := (page - 1) * size
	if start > len(all) {
		start = len(all)
	}
	end := start + size
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], len(all), nil
}

func TestStudentSummaryDefaultsToCurrentSemester(t *testing.T) {
	grades := &mockAcademicGrades{grades: []models.Grade{
		{StudentID: "stu1", Letter: models.GradeA, Semester: "Semester 2"},
		{StudentID: "stu1", Letter: models.GradeF, Semester: "Semester 1"},
	}}
	students := &mockAcademicStudents{students: map[string]*models.Student{
		"stu1": {ID: "stu1", StudentNo: "STU1001", FullName: "Amara Silva", Semester: "Semester 2"},
	}}
	svc := NewAcademicService(grades, students, zap.NewNop())

	result, err := svc.StudentSummary(context.Background(), "stu1", "")
	require.NoError(t, err)
	assert.Equal(t, "Semester 2", result.Semester)
	require.NotNil(t, result.GPA)
	assert.Equal(t, "4.00", *result.GPA)
	assert.Equal(t, StandingGood, result.Standing)
	assert.Equal(t, 1, result.GradeCount)
}

func TestStudentSummaryNoGrades(t *testing.T) {
	grades := &mockAcademicGrades{}
	students := &mockAcademicStudents{students: map[string]*models.Student{
		"stu1": {ID: "stu1", Semester: "Semester 1"},
	}}
	svc := NewAcademicService(grades, students, zap.NewNop())

	result, err := svc.StudentSummary(context.Background(), "stu1", "")
	require.NoError(t, err)
	assert.Nil(t, result.GPA)
	assert.Equal(t, StandingNoGrades, result.Standing)
}

func TestSemesterResultsRequiresSemester(t *testing.T) {
	svc := NewAcademicService(&mockAcademicGrades{}, &mockAcademicStudents{}, zap.NewNop())

	_, err := svc.SemesterResults(context.Background(), "")
	assert.Error(t, err)
}

func TestSemesterResultsPagesFullCohort(t *testing.T) {
	students := &mockAcademicStudents{students: make(map[string]*models.Student)}
	for i := 0; i < 150; i++ {
		id := fmt.Sprintf("stu%03d", i)
		students.students[id] = &models.Student{ID: id, FullName: "Student " + id, Semester: "Semester 1"}
	}
	svc := NewAcademicService(&mockAcademicGrades{}, students, zap.NewNop())

	results, err := svc.SemesterResults(context.Background(), "Semester 1")
	require.NoError(t, err)
	assert.Len(t, results, 150)
}

func TestSemesterResultsMixedCohort(t *testing.T) {
	grades := &mockAcademicGrades{grades: []models.Grade{
		{StudentID: "stu1", Letter: models.GradeD, Semester: "Semester 1"},
		{StudentID: "stu1", Letter: models.GradeC, Semester: "Semester 1"},
	}}
	students := &mockAcademicStudents{students: map[string]*models.Student{
		"stu1": {ID: "stu1", FullName: "Amara Silva", Semester: "Semester 1"},
		"stu2": {ID: "stu2", FullName: "Nimal Perera", Semester: "Semester 1"},
	}}
	svc := NewAcademicService(grades, students, zap.NewNop())

	results, err := svc.SemesterResults(context.Background(), "Semester 1")
	require.NoError(t, err)
	require.Len(t, results, 2)

	byID := make(map[string]StudentResult)
	for _, r := range results {
		byID[r.StudentID] = r
	}

	atRisk := byID["stu1"]
	require.NotNil(t, atRisk.GPA)
	assert.Equal(t, "1.50", *atRisk.GPA)
	assert.Equal(t, StandingAtRisk, atRisk.Standing)

	noData := byID["stu2"]
	assert.Nil(t, noData.GPA)
	assert.Equal(t, StandingNoGrades, noData.Standing)
}
