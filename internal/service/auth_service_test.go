package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuslink/student-portal-api/internal/models"
	appErrors "github.com/campuslink/student-portal-api/pkg/errors"
)

type mockUserRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User), tokens: make(map[string]*models.RefreshToken)}
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		copied := *u
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user" + user.Email
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *mockUserRepo) LinkStudent(ctx context.Context, userID, studentID string) error {
	u, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	u.StudentID = &studentID
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	if u, ok := m.users[id]; ok {
		u.LastLogin = &ts
	}
	return nil
}

func (m *mockUserRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	stored := *token
	m.tokens[token.Token] = &stored
	return nil
}

func (m *mockUserRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.tokens[token]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range m.tokens {
		if t.ID == id {
			t.Revoked = true
			t.RevokedAt = &revokedAt
		}
	}
	return nil
}

type mockAuthStudents struct {
	students map[string]*models.Student
}

func newMockAuthStudents() *mockAuthStudents {
	return &mockAuthStudents{students: make(map[string]*models.Student)}
}

func (m *mockAuthStudents) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "stu" + student.Email
	}
	stored := *student
	m.students[student.ID] = &stored
	return nil
}

func (m *mockAuthStudents) FindByID(ctx context.Context, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthFixture() (*AuthService, *mockUserRepo, *mockAuthStudents) {
	users := newMockUserRepo()
	students := newMockAuthStudents()
	svc := NewAuthService(users, students, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test_secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "test",
	})
	return svc, users, students
}

func TestRegisterCreatesLinkedStudentProfile(t *testing.T) {
	svc, users, students := newAuthFixture()

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		FullName: "Amara Silva",
		Email:    "amara@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	require.NotNil(t, res.User.StudentID)

	student := students.students[*res.User.StudentID]
	require.NotNil(t, student)
	assert.Equal(t, models.DefaultSemester, student.Semester)
	assert.Equal(t, "Unassigned", student.Course)
	assert.Equal(t, 18, student.Age)
	assert.True(t, strings.HasPrefix(student.StudentNo, "STU"))

	user := users.users[res.User.ID]
	require.NotNil(t, user)
	require.NotNil(t, user.StudentID)
	assert.Equal(t, student.ID, *user.StudentID)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	svc, _, _ := newAuthFixture()

	req := models.RegisterRequest{FullName: "Amara Silva", Email: "amara@example.com", Password: "secret123"}
	_, err := svc.Register(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "A", Email: "a@example.com", Password: "123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLoginRoundTrip(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "Amara Silva", Email: "amara@example.com", Password: "secret123"})
	require.NoError(t, err)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "amara@example.com", Password: "secret123"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.NotEmpty(t, claims.StudentID)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "Amara Silva", Email: "amara@example.com", Password: "secret123"})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "amara@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInactiveAccount(t *testing.T) {
	svc, users, _ := newAuthFixture()

	res, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "Amara Silva", Email: "amara@example.com", Password: "secret123"})
	require.NoError(t, err)
	users.users[res.User.ID].Active = false

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "amara@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)
}

func TestRefreshRotatesToken(t *testing.T) {
	svc, users, _ := newAuthFixture()

	login, err := svc.Register(context.Background(), models.RegisterRequest{FullName: "Amara Silva", Email: "amara@example.com", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)
	assert.True(t, users.tokens[login.RefreshToken].Revoked)

	// the used token is spent
	_, err = svc.Refresh(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc, _, _ := newAuthFixture()

	_, err := svc.ValidateToken("not.a.token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestEnsureAdminSeedsOnce(t *testing.T) {
	svc, users, _ := newAuthFixture()

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@school.com", "admin123", "Administrator"))
	require.Len(t, users.users, 1)

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@school.com", "admin123", "Administrator"))
	assert.Len(t, users.users, 1)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@school.com", Password: "admin123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.User.Role)
}

func TestEnsureAdminSkipsWithoutPassword(t *testing.T) {
	svc, users, _ := newAuthFixture()

	require.NoError(t, svc.EnsureAdmin(context.Background(), "admin@school.com", "", "Administrator"))
	assert.Empty(t, users.users)
}
