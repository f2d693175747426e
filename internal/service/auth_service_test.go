package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/campusworks/campus/internal/models"
	appErrors "github.com/campusworks/campus/pkg/errors"
)

type mockUserRepo struct {
	byEmail    map[string]*models.User
	byID       map[string]*models.User
	created    []*models.User
	lastLogins []string
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := m.byEmail[email]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.byID[id]; ok {
		cp := *user
		return &cp, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "generated"
	}
	cp := *user
	m.created = append(m.created, &cp)
	if m.byEmail == nil {
		m.byEmail = make(map[string]*models.User)
	}
	m.byEmail[user.Email] = &cp
	return nil
}

func (m *mockUserRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLogins = append(m.lastLogins, id)
	return nil
}

func newAuthService(repo *mockUserRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "campus-test",
	})
}

// Login attempts carry the caller's address and agent into the log stream,
// both on success and on a rejected password.
func TestAuthServiceLoginLogsClientMetadata(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"ada@example.com": {
			ID:           "u1",
			Email:        "ada@example.com",
			Name:         "Ada",
			Role:         models.RoleStudent,
			PasswordHash: hashPassword(t, "Str0ng!pass"),
			Active:       true,
		},
	}}
	service := NewAuthService(repo, validator.New(), zap.New(core), AuthConfig{
		TokenSecret: "test-secret",
		TokenExpiry: time.Hour,
		Issuer:      "campus-test",
	})

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:     "ada@example.com",
		Password:  "Str0ng!pass",
		IP:        "203.0.113.9",
		UserAgent: "campusctl/1.0",
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("user logged in").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "u1", fields["user_id"])
	assert.Equal(t, "203.0.113.9", fields["ip"])
	assert.Equal(t, "campusctl/1.0", fields["user_agent"])

	_, err = service.Login(context.Background(), models.LoginRequest{
		Email:     "ada@example.com",
		Password:  "wrong-password",
		IP:        "203.0.113.9",
		UserAgent: "campusctl/1.0",
	})
	require.Error(t, err)

	failed := logs.FilterMessage("failed login attempt").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "203.0.113.9", failed[0].ContextMap()["ip"])
}

func hashPassword(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceLogin(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"ada@example.com": {
			ID:           "u1",
			Email:        "ada@example.com",
			Name:         "Ada",
			Role:         models.RoleStudent,
			PasswordHash: hashPassword(t, "Str0ng!pass"),
			Active:       true,
		},
	}}
	service := newAuthService(repo)

	res, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, models.RoleStudent, res.User.Role)
	assert.Equal(t, []string{"u1"}, repo.lastLogins)

	claims, err := service.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"ada@example.com": {
			ID:           "u1",
			Email:        "ada@example.com",
			PasswordHash: hashPassword(t, "Str0ng!pass"),
			Active:       true,
		},
	}}
	service := newAuthService(repo)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "not-it",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	service := newAuthService(&mockUserRepo{})

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ghost@example.com",
		Password: "whatever",
	})
	require.Error(t, err)
	// Unknown email and wrong password are indistinguishable to the caller.
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"ada@example.com": {
			ID:           "u1",
			Email:        "ada@example.com",
			PasswordHash: hashPassword(t, "Str0ng!pass"),
			Active:       false,
		},
	}}
	service := newAuthService(repo)

	_, err := service.Login(context.Background(), models.LoginRequest{
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegister(t *testing.T) {
	repo := &mockUserRepo{}
	service := newAuthService(repo)

	res, err := service.Register(context.Background(), models.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
		Role:     models.RoleTeacher,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
	require.Len(t, repo.created, 1)
	assert.True(t, repo.created[0].Active)
	assert.NotEqual(t, "Str0ng!pass", repo.created[0].PasswordHash)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockUserRepo{byEmail: map[string]*models.User{
		"ada@example.com": {ID: "existing", Email: "ada@example.com"},
	}}
	service := newAuthService(repo)

	_, err := service.Register(context.Background(), models.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEmailTaken.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterWeakPassword(t *testing.T) {
	service := newAuthService(&mockUserRepo{})

	_, err := service.Register(context.Background(), models.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "aaaaaaaa",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWeakPassword.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterRejectsUnknownRole(t *testing.T) {
	service := newAuthService(&mockUserRepo{})

	_, err := service.Register(context.Background(), models.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
		Role:     "ADMIN",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceValidateTokenRejectsTampering(t *testing.T) {
	repo := &mockUserRepo{}
	service := newAuthService(repo)

	res, err := service.Register(context.Background(), models.RegisterRequest{
		Name:     "Ada",
		Email:    "ada@example.com",
		Password: "Str0ng!pass",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)

	_, err = service.ValidateToken(res.Token + "x")
	assert.Error(t, err)

	other := NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "different-secret",
		TokenExpiry: time.Hour,
	})
	_, err = other.ValidateToken(res.Token)
	assert.Error(t, err)
}

func TestPasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		score    int
	}{
		{"", 0},
		{"aaaaaaaa", 2},
		{"abc", 1},
		{"Abc", 2},
		{"Abc1", 3},
		{"Abc1!", 4},
		{"Abcdef1!", 5},
		{"PASSWORD1", 3},
		{"p@ssw0rd", 4},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.score, PasswordStrength(tc.password), "password %q", tc.password)
	}
}
