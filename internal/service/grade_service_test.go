package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

type mockGradeRepo struct {
	grades map[string]*models.Grade
	seq    int
}

func (m *mockGradeRepo) List(ctx context.Context) ([]models.GradeDetail, error) {
	var details []models.GradeDetail
	for _, g := range m.grades {
		details = append(details, models.GradeDetail{Grade: *g})
	}
	return details, nil
}

func (m *mockGradeRepo) ListByStudent(ctx context.Context, filter models.GradeFilter) ([]models.Grade, error) {
	var list []models.Grade
	for _, g := range m.grades {
		if g.StudentID != filter.StudentID {
			continue
		}
		if filter.Semester != "" && g.Semester != filter.Semester {
			continue
		}
		list = append(list, *g)
	}
	return list, nil
}

func (m *mockGradeRepo) FindByID(ctx context.Context, id string) (*models.Grade, error) {
	if g, ok := m.grades[id]; ok {
		copied := *g
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockGradeRepo) Create(ctx context.Context, grade *models.Grade) error {
	if m.grades == nil {
		m.grades = make(map[string]*models.Grade)
	}
	m.seq++
	if grade.ID == "" {
		grade.ID = string(rune('a' + m.seq))
	}
	stored := *grade
	m.grades[grade.ID] = &stored
	return nil
}

func (m *mockGradeRepo) Update(ctx context.Context, grade *models.Grade) error {
	if _, ok := m.grades[grade.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *grade
	m.grades[grade.ID] = &stored
	return nil
}

func (m *mockGradeRepo) Delete(ctx context.Context, id string) (bool, error) {
	if _, ok := m.grades[id]; !ok {
		return false, nil
	}
	delete(m.grades, id)
	return true, nil
}

func (m *mockGradeRepo) DistinctSemesters(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var semesters []string
	for _, g := range m.grades {
		if _, ok := seen[g.Semester]; !ok {
			seen[g.Semester] = struct{}{}
			semesters = append(semesters, g.Semester)
		}
	}
	return semesters, nil
}

func newGradeFixture() (*GradeService, *mockGradeRepo) {
	grades := &mockGradeRepo{}
	students := &mockStudentStore{students: map[string]*models.Student{
		"stu1": {ID: "stu1", FullName: "Amara Silva", Semester: "Semester 2"},
	}}
	svc := NewGradeService(grades, students, validator.New(), zap.NewNop())
	return svc, grades
}

func TestGradeCreateValid(t *testing.T) {
	svc, repo := newGradeFixture()

	grade, err := svc.Create(context.Background(), CreateGradeRequest{
		StudentID: "stu1",
		Subject:   "Mathematics",
		Letter:    models.GradeBPlus,
		Semester:  "Semester 2",
	})
	require.NoError(t, err)
	assert.Len(t, repo.grades, 1)
	assert.Equal(t, models.GradeBPlus, grade.Letter)
}

func TestGradeCreateRejectsUnknownLetter(t *testing.T) {
	svc, _ := newGradeFixture()

	_, err := svc.Create(context.Background(), CreateGradeRequest{
		StudentID: "stu1",
		Subject:   "Mathematics",
		Letter:    models.GradeLetter("E"),
		Semester:  "Semester 2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestGradeCreateUnknownStudent(t *testing.T) {
	svc, _ := newGradeFixture()

	_, err := svc.Create(context.Background(), CreateGradeRequest{
		StudentID: "ghost",
		Subject:   "Mathematics",
		Letter:    models.GradeA,
		Semester:  "Semester 2",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestGradeUpdateKeepsOwnership(t *testing.T) {
	svc, repo := newGradeFixture()

	grade, err := svc.Create(context.Background(), CreateGradeRequest{
		StudentID: "stu1",
		Subject:   "Mathematics",
		Letter:    models.GradeC,
		Semester:  "Semester 2",
	})
	require.NoError(t, err)

	newLetter := models.GradeAMinus
	updated, err := svc.Update(context.Background(), grade.ID, UpdateGradeRequest{Letter: &newLetter})
	require.NoError(t, err)
	assert.Equal(t, models.GradeAMinus, updated.Letter)
	assert.Equal(t, "stu1", repo.grades[grade.ID].StudentID)
}
