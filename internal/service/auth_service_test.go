package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edupoint-api/internal/models"
	appErrors "github.com/noah-isme/edupoint-api/pkg/errors"
)

type mockAuthRepo struct {
	mu                sync.Mutex
	users             map[string]*models.User
	findErr           error
	updatePasswordErr error
	auditLogs         []*models.AuditLog
	lastLoginUpdated  bool
}

func newMockAuthRepo(users ...*models.User) *mockAuthRepo {
	repo := &mockAuthRepo{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockAuthRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockAuthRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	var out []models.User
	for _, u := range m.users {
		if filter.Role == "" || u.Role == filter.Role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, len(out), nil
}

func (m *mockAuthRepo) Create(ctx context.Context, tx *sqlx.Tx, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, user.Username) {
			return &pq.Error{Code: "23505"}
		}
	}
	user.ID = uuid.NewString()
	m.users[user.ID] = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	if m.updatePasswordErr != nil {
		return m.updatePasswordErr
	}
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func newTestAuthService(repo *mockAuthRepo, l *memLedger) *AuthService {
	return NewAuthService(repo, l, memStudents{l}, memTeachers{l}, validator.New(), zap.NewNop(), AuthConfig{
		AccessTokenSecret: "secret",
		AccessTokenExpiry: time.Hour,
		Issuer:            "edupoint-test",
		SignupEnabled:     true,
	})
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	studentID := uuid.NewString()
	repo := newMockAuthRepo(&models.User{ID: "u-1", Username: "ayu", PasswordHash: hashed(t, "password1"), Role: models.RoleStudent, StudentID: &studentID, Active: true})
	svc := newTestAuthService(repo, newMemLedger())

	res, err := svc.Login(context.Background(), models.LoginRequest{Username: " AYU ", Password: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
	assert.Equal(t, studentID, claims.StudentID)
	assert.Empty(t, claims.TeacherID)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: "u-1", Username: "ayu", PasswordHash: hashed(t, "password1"), Role: models.RoleAdmin, Active: true},
		&models.User{ID: "u-2", Username: "budi", PasswordHash: hashed(t, "password2"), Role: models.RoleAdmin, Active: false},
	)
	svc := newTestAuthService(repo, newMemLedger())

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ayu", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.CodeOf(err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "nobody", Password: "password1"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.CodeOf(err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "budi", Password: "wrong"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.CodeOf(err), "inactive state must not leak without the password")

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "budi", Password: "password2"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.CodeOf(err))

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "", Password: ""})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	repo.findErr = errors.New("db down")
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ayu", Password: "password1"})
	assert.Equal(t, appErrors.ErrStorage.Code, appErrors.CodeOf(err))
}

func TestAuthServiceSignupStudent(t *testing.T) {
	repo := newMockAuthRepo()
	l := newMemLedger()
	svc := newTestAuthService(repo, l)

	info, err := svc.Signup(context.Background(), models.SignupRequest{
		Username:  "ayu",
		Password:  "password1",
		FullName:  "Ayu Lestari",
		Role:      models.RoleStudent,
		ClassName: "10A",
	})
	require.NoError(t, err)
	require.NotNil(t, info.StudentID)
	assert.Nil(t, info.TeacherID)
	student := l.student(*info.StudentID)
	assert.Equal(t, "10A", student.ClassName)
	assert.Equal(t, int64(0), student.Balance)

	stored := repo.users[info.ID]
	require.NotNil(t, stored)
	assert.NotEqual(t, "password1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("password1")))
}

func TestAuthServiceSignupDuplicateRollsBack(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u-1", Username: "ayu", Role: models.RoleAdmin, Active: true})
	l := newMemLedger()
	svc := newTestAuthService(repo, l)

	_, err := svc.Signup(context.Background(), models.SignupRequest{
		Username: "Ayu",
		Password: "password1",
		FullName: "Another Ayu",
		Role:     models.RoleTeacher,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.CodeOf(err))
	teachers, _ := memTeachers{l}.List(context.Background())
	assert.Empty(t, teachers)
}

func TestAuthServiceSignupValidation(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), newMemLedger())

	cases := map[string]models.SignupRequest{
		"student without class": {Username: "ayu", Password: "password1", FullName: "Ayu", Role: models.RoleStudent},
		"admin role":            {Username: "ayu", Password: "password1", FullName: "Ayu", Role: models.RoleAdmin},
		"short password":        {Username: "ayu", Password: "short", FullName: "Ayu", Role: models.RoleTeacher},
		"space in username":     {Username: "ayu lestari", Password: "password1", FullName: "Ayu", Role: models.RoleTeacher},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Signup(context.Background(), req)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
		})
	}
}

func TestAuthServiceSignupAcceptsPlainUsernames(t *testing.T) {
	svc := newTestAuthService(newMockAuthRepo(), newMemLedger())

	for _, username := range []string{"rex", "budi2", "x0x2", "ayu.lestari"} {
		t.Run(username, func(t *testing.T) {
			info, err := svc.Signup(context.Background(), models.SignupRequest{
				Username: username,
				Password: "password1",
				FullName: "Teacher " + username,
				Role:     models.RoleTeacher,
			})
			require.NoError(t, err)
			assert.Equal(t, username, info.Username)
		})
	}
}

func TestAuthServiceSignupDisabled(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), newMemLedger(), nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret"})
	_, err := svc.Signup(context.Background(), models.SignupRequest{Username: "ayu", Password: "password1", FullName: "Ayu", Role: models.RoleTeacher})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))
}

func TestAuthServiceCreateAdmin(t *testing.T) {
	repo := newMockAuthRepo()
	svc := newTestAuthService(repo, newMemLedger())

	info, err := svc.CreateAdmin(context.Background(), "root", "password1")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, info.Role)

	_, err = svc.CreateAdmin(context.Background(), "root", "password1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.CodeOf(err))

	_, err = svc.CreateAdmin(context.Background(), "other", "short")
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))
}

func TestAuthServiceChangePassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u-1", Username: "ayu", PasswordHash: hashed(t, "password1"), Role: models.RoleTeacher, Active: true})
	svc := newTestAuthService(repo, newMemLedger())

	err := svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{OldPassword: "nope", NewPassword: "password2"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	require.NoError(t, svc.ChangePassword(context.Background(), "u-1", models.ChangePasswordRequest{OldPassword: "password1", NewPassword: "password2"}))
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "ayu", Password: "password2"})
	assert.NoError(t, err)
}

func TestAuthServiceResetPassword(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u-1", Username: "ayu", PasswordHash: hashed(t, "password1"), Role: models.RoleTeacher, Active: true})
	svc := newTestAuthService(repo, newMemLedger())
	admin := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	_, err := svc.ResetPassword(context.Background(), &models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher}, "u-1")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.CodeOf(err))

	temp, err := svc.ResetPassword(context.Background(), admin, "u-1")
	require.NoError(t, err)
	assert.Len(t, temp.Password, 12)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.users["u-1"].PasswordHash), []byte(temp.Password)))
	assert.Equal(t, models.AuditActionPasswordReset, repo.auditLogs[len(repo.auditLogs)-1].Action)

	_, err = svc.ResetPassword(context.Background(), admin, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.CodeOf(err))
}

func TestAuthServiceValidateTokenRejectsForeignIssuer(t *testing.T) {
	repo := newMockAuthRepo(&models.User{ID: "u-1", Username: "ayu", PasswordHash: hashed(t, "password1"), Role: models.RoleAdmin, Active: true})
	issuer := newTestAuthService(repo, newMemLedger())
	res, err := issuer.Login(context.Background(), models.LoginRequest{Username: "ayu", Password: "password1"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	_, err = other.ValidateToken(res.AccessToken)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.CodeOf(err))

	_, err = issuer.ValidateToken("not-a-token")
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.CodeOf(err))
}

func TestRandomPasswordAlphabet(t *testing.T) {
	pw, err := randomPassword(32)
	require.NoError(t, err)
	assert.Len(t, pw, 32)
	for _, r := range pw {
		assert.True(t, strings.ContainsRune(tempPasswordAlphabet, r))
	}
}

func TestAuthServiceListUsers(t *testing.T) {
	repo := newMockAuthRepo(
		&models.User{ID: "u-1", Username: "budi", Role: models.RoleTeacher},
		&models.User{ID: "u-2", Username: "ayu", Role: models.RoleStudent},
		&models.User{ID: "u-3", Username: "citra", Role: models.RoleStudent},
	)
	svc := newTestAuthService(repo, newMemLedger())
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	users, page, err := svc.ListUsers(context.Background(), admin, models.UserFilter{Role: models.RoleStudent})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ayu", users[0].Username)
	assert.Equal(t, 2, page.TotalCount)
	assert.Equal(t, 20, page.PageSize)

	_, _, err = svc.ListUsers(context.Background(), admin, models.UserFilter{Role: "janitor"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.CodeOf(err))

	_, _, err = svc.ListUsers(context.Background(), &models.JWTClaims{UserID: "t", Role: models.RoleTeacher}, models.UserFilter{})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))
}
